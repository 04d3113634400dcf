package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crisis-chat/backend/api"
	apperrors "crisis-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := NewOpenAPIValidator(api.OpenAPISpec)
	require.NoError(t, err)
	require.NotNil(t, v.Document().Paths.Find("/api/v1/messages"))

	r := gin.New()
	r.Use(apperrors.ErrorHandler(), v.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.POST("/api/v1/messages", ok)
	r.PATCH("/api/v1/sessions/:id/status", ok)
	r.GET("/health", ok)
	return r
}

func TestMiddleware(t *testing.T) {
	r := newEngine(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"valid message", http.MethodPost, "/api/v1/messages", `{"content":"hello","senderName":"Sam"}`, http.StatusNoContent},
		{"missing content", http.MethodPost, "/api/v1/messages", `{"senderName":"Sam"}`, http.StatusBadRequest},
		{"unknown message type", http.MethodPost, "/api/v1/messages", `{"content":"x","messageType":"video"}`, http.StatusBadRequest},
		{"emergency cannot be set by hand", http.MethodPatch, "/api/v1/sessions/s1/status", `{"status":"emergency"}`, http.StatusBadRequest},
		{"transfer", http.MethodPatch, "/api/v1/sessions/s1/status", `{"status":"transferred"}`, http.StatusNoContent},
		{"undocumented route", http.MethodGet, "/health", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusBadRequest {
				assert.Contains(t, w.Body.String(), apperrors.CodeInvalidInput)
			}
		})
	}
}

func TestRejectsBrokenDocument(t *testing.T) {
	_, err := NewOpenAPIValidator([]byte("openapi: 3.0.3\npaths: {}\n"))
	assert.Error(t, err)
}
