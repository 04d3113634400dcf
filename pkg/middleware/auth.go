package middleware

import (
	"strings"

	apperrors "crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/jwt"
	"crisis-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// OptionalAuth validates a bearer token when one is present and stores its
// claims on the context. Requests without a token pass through as anonymous;
// a token that does not validate is rejected.
func OptionalAuth(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid JWT token", "error", err.Error(), "path", c.Request.URL.Path)
			c.Error(apperrors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Set("userID", claims.UserID())
		c.Set("userRole", string(claims.Role))

		c.Next()
	}
}

// RequireAuth rejects requests that carry no valid token. It must run after OptionalAuth.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ClaimsFrom(c); !ok {
			c.Error(apperrors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAnyRole returns middleware that requires the user to hold at least one of roles
func RequireAnyRole(roles ...jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.Error(apperrors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}

		for _, role := range roles {
			if claims.HasRole(role) {
				c.Next()
				return
			}
		}

		c.Error(apperrors.NewForbiddenError("INSUFFICIENT_ROLE", "Your role does not allow this operation"))
		c.Abort()
	}
}

// ClaimsFrom returns the validated claims, if the request carried a token
func ClaimsFrom(c *gin.Context) (*jwt.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		// browsers cannot set headers on a websocket upgrade
		return c.Query("access_token")
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
