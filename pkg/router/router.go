package router

import (
	"context"
	"strings"

	"crisis-chat/backend/internal/api"
	"crisis-chat/backend/pkg/config"
	"crisis-chat/backend/pkg/di"
	"crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Config      *config.Config
	RateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// The logger middleware goes first so every later middleware has a request-scoped logger
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.CorrelationMiddleware())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	opts := middleware.DefaultRateLimiterOptions()
	if cfg.Security.RateLimit > 0 {
		opts.Limit = rate.Limit(cfg.Security.RateLimit)
	}
	if cfg.Security.RateLimitBurst > 0 {
		opts.Burst = cfg.Security.RateLimitBurst
	}

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		Config:      cfg,
		RateLimiter: middleware.NewRateLimiter(container.Logger, opts),
	}
}

// Run evicts idle rate limiter entries until ctx is cancelled
func (r *Router) Run(ctx context.Context) {
	r.RateLimiter.Run(ctx)
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.setupHealthRoutes()
	r.Engine.GET("/metrics", gin.WrapH(r.Container.Metrics.Handler()))

	auth := middleware.OptionalAuth(r.Container.JWTService, r.Logger)

	v1 := r.Engine.Group("/api/v1")
	v1.Use(auth, r.RateLimiter.Middleware())
	if v := r.openAPIValidator(); v != nil {
		v1.Use(v.Middleware())
	}

	api.NewChatHandler(r.Container.ChatService, r.Container.Hub).RegisterRoutesV1(v1)

	r.Engine.GET("/ws", auth, r.RateLimiter.Middleware(), r.Container.Hub.ServeWs)
}

// corsMiddleware allows the configured origins, including websocket upgrades
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowAll && origin == "":
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		default:
			if _, ok := set[origin]; ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Content-Length", "Accept", "Authorization", "Origin",
			"Upgrade", "Connection", "Cache-Control", "X-Request-ID", "X-Correlation-ID", middleware.SessionHeader,
		}, ", "))
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Correlation-ID, "+middleware.SessionHeader)
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
