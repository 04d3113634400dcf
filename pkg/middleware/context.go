package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Key types for context values
type contextKey string

const (
	// RequestIDKey is the key for request ID values in contexts
	RequestIDKey contextKey = "requestID"
	// UserIDKey is the key for user ID values in contexts
	UserIDKey contextKey = "userID"
	// CorrelationIDKey is the key for correlation ID values in contexts
	CorrelationIDKey contextKey = "correlationID"

	// SessionHeader carries the session identifier for callers without an account
	SessionHeader = "X-Session-ID"
)

// CorrelationMiddleware propagates X-Correlation-ID, defaulting to the request
// ID, so escalation hand-offs can be traced back to the request that caused them.
// It must run after the logger middleware, which assigns the request ID.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = c.GetString("requestID")
		}
		c.Header("X-Correlation-ID", correlationID)
		c.Set("correlationID", correlationID)

		c.Next()
	}
}

// WithRequestContext adds standard context values to a context for downstream operations
func WithRequestContext(parent context.Context, c *gin.Context) context.Context {
	ctx := parent

	if requestID, exists := c.Get("requestID"); exists {
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
	}
	if userID, exists := c.Get("userID"); exists {
		ctx = context.WithValue(ctx, UserIDKey, userID)
	}
	if correlationID, exists := c.Get("correlationID"); exists {
		ctx = context.WithValue(ctx, CorrelationIDKey, correlationID)
	}

	return ctx
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetUserID extracts the user ID from a context
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

// GetCorrelationID extracts the correlation ID from a context
func GetCorrelationID(ctx context.Context) string {
	return stringValue(ctx, CorrelationIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
