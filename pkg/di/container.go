package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"crisis-chat/backend/internal/access"
	"crisis-chat/backend/internal/crisis"
	"crisis-chat/backend/internal/escalation"
	"crisis-chat/backend/internal/notify"
	"crisis-chat/backend/internal/service"
	"crisis-chat/backend/internal/session"
	"crisis-chat/backend/internal/ws"
	"crisis-chat/backend/pkg/config"
	"crisis-chat/backend/pkg/health"
	"crisis-chat/backend/pkg/jwt"
	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/pkg/secrets"
	"crisis-chat/backend/shared/observability"
	"crisis-chat/backend/shared/redis"
)

// Container holds all the dependencies for the application
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *gorm.DB
	Redis       *goredis.Client
	Secrets     secrets.Manager
	Metrics     *observability.MetricsProvider
	JWTService  *jwt.Service
	Store       session.Store
	Dispatcher  *notify.Dispatcher
	Trigger     *escalation.Trigger
	ChatService *service.ChatService
	Hub         *ws.Hub
	Health      *health.Checker

	closers []func()
}

// Options replaces parts of the container, mostly for tests
type Options struct {
	// DB skips opening the database when the outbox sink is enabled
	DB *gorm.DB
	// Redis skips creating a client when the redis sink is enabled
	Redis *goredis.Client
	// Secrets replaces the Vault-backed manager
	Secrets secrets.Manager
}

// New creates a new dependency injection container from cfg
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Container, error) {
	c := &Container{Config: cfg, Logger: log, DB: opts.DB, Redis: opts.Redis, Secrets: opts.Secrets}

	if c.Secrets == nil {
		manager, err := secrets.NewVaultManager(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize secrets manager: %w", err)
		}
		c.Secrets = manager
	}

	jwtSecret, err := c.jwtSecret(ctx)
	if err != nil {
		return nil, err
	}
	c.JWTService, err = jwt.NewService(jwtSecret, cfg.JWT.Expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	c.Metrics, err = observability.SetupPrometheusMetrics(cfg.Observability.ServiceName)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() { _ = c.Metrics.Shutdown(context.Background()) })
	metrics, err := observability.NewMetrics(c.Metrics.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	c.Health = health.NewChecker(log, 30*time.Second)

	if err := c.connectSinks(ctx); err != nil {
		c.Close()
		return nil, err
	}

	notifiers, err := notify.BuildNotifiers(cfg, notify.SinkDeps{
		Log:          log,
		Redis:        c.redisCmdable(),
		DB:           c.DB,
		HTTPClient:   &http.Client{Timeout: cfg.Escalation.NotifyTimeout},
		WebhookToken: c.Secrets.GetSecretWithDefault(ctx, secrets.KeyWebhookToken, ""),
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build notification sinks: %w", err)
	}
	for _, n := range notifiers {
		if outbox, ok := n.(*notify.OutboxNotifier); ok {
			if err := outbox.Migrate(); err != nil {
				c.Close()
				return nil, fmt.Errorf("failed to migrate escalation outbox: %w", err)
			}
		}
	}

	dcfg := notify.DefaultConfig()
	dcfg.Workers = cfg.Escalation.Workers
	dcfg.QueueSize = cfg.Escalation.QueueSize
	dcfg.Timeout = cfg.Escalation.NotifyTimeout
	c.Dispatcher = notify.NewDispatcher(dcfg, notifiers, log, metrics)
	c.Health.RegisterBreakerCheck("notifications", c.Dispatcher.BreakerStats)

	c.Store = session.NewMemoryStore()
	c.Trigger = escalation.NewTrigger(escalation.Config{
		Policy:        escalation.PolicyFromFlag(cfg.Escalation.HighForcesEmergency),
		ExcerptLength: cfg.Chat.ExcerptLength,
	}, c.Store, c.Dispatcher, log, metrics)

	c.ChatService = service.NewChatService(c.Store, crisis.NewDefault(), c.Trigger, access.NewGuard(), log, metrics, service.Options{
		MaxContentLength: cfg.Chat.MaxContentLength,
		DefaultLanguage:  cfg.Chat.DefaultLanguage,
	})

	c.Hub = ws.NewHub(c.ChatService, log, cfg.Security.AllowedOrigins)
	c.Dispatcher.OnResult(c.Hub.PublishResult)

	c.Dispatcher.Start()
	c.closers = append(c.closers, c.Dispatcher.Close, c.Hub.Close)

	log.Info("Container ready",
		"sinks", c.Dispatcher.SinkNames(),
		"escalationPolicy", string(c.Trigger.Policy()),
		"vault", c.vaultEnabled(),
	)
	return c, nil
}

// Close releases everything the container opened, in reverse order
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Container) jwtSecret(ctx context.Context) (string, error) {
	secret := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, c.Config.JWT.Secret)
	if secret != "" {
		return secret, nil
	}
	if c.Config.Server.Env == "production" {
		return "", errors.New("JWT_SECRET is required in production")
	}
	c.Logger.Warn("No JWT secret configured, using an ephemeral one; tokens will not survive a restart")
	return jwt.RandomSecret()
}

// connectSinks opens the connections the enabled sinks need
func (c *Container) connectSinks(ctx context.Context) error {
	cfg := c.Config

	if cfg.SinkEnabled("redis") {
		if c.Redis == nil {
			c.Redis = redis.NewClient(cfg)
			client := c.Redis
			c.closers = append(c.closers, func() { _ = client.Close() })
			if err := redis.Connect(ctx, client, cfg.Database.Retries, 2*time.Second); err != nil {
				return err
			}
		}
		c.Health.RegisterRedisCheck(c.Redis)
	}

	if cfg.SinkEnabled("outbox") {
		if c.DB == nil {
			db, err := config.NewDB(cfg)
			if err != nil {
				return err
			}
			c.DB = db
			c.closers = append(c.closers, func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			})
		}
		c.Health.RegisterDatabaseCheck(c.DB)
	}
	return nil
}

func (c *Container) redisCmdable() goredis.Cmdable {
	if c.Redis == nil {
		return nil
	}
	return c.Redis
}

func (c *Container) vaultEnabled() bool {
	v, ok := c.Secrets.(interface{ Enabled() bool })
	return ok && v.Enabled()
}
