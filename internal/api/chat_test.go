package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crisis-chat/backend/internal/access"
	"crisis-chat/backend/internal/escalation"
	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/internal/service"
	"crisis-chat/backend/internal/session"
	apperrors "crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/jwt"
	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/pkg/middleware"
)

type countingDispatcher struct {
	mu      sync.Mutex
	records []models.EscalationRecord
}

func (d *countingDispatcher) Dispatch(_ context.Context, rec models.EscalationRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, rec)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []service.IngestResult
}

func (p *recordingPublisher) PublishIngest(r service.IngestResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
}

type server struct {
	t          *testing.T
	engine     *gin.Engine
	tokens     *jwt.Service
	dispatcher *countingDispatcher
	publisher  *recordingPublisher
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewMemoryStore()
	d := &countingDispatcher{}
	trigger := escalation.NewTrigger(escalation.Config{}, store, d, logger.Nop(), nil)
	chat := service.NewChatService(store, nil, trigger, access.NewGuard(), logger.Nop(), nil, service.Options{MaxContentLength: 500})

	tokens, err := jwt.NewService("api-test-secret", time.Hour)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	engine := gin.New()
	engine.Use(apperrors.ErrorHandler(), middleware.OptionalAuth(tokens, logger.Nop()))
	NewChatHandler(chat, pub).RegisterRoutesV1(engine.Group("/api/v1"))

	return &server{t: t, engine: engine, tokens: tokens, dispatcher: d, publisher: pub}
}

func (s *server) token(userID string, role jwt.Role) string {
	tok, err := s.tokens.GenerateToken(userID, "", role)
	require.NoError(s.t, err)
	return tok
}

func (s *server) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}](t, w)
	return body.Error.Code
}

func TestAnonymousConversation(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/api/v1/messages", models.SendMessageRequest{
		Content:     "I feel scared tonight",
		SenderName:  "Anon",
		IsAnonymous: true,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	first := decode[service.IngestResponse](t, w)
	sessionID := first.Session.ID
	require.NotEmpty(t, sessionID)
	assert.Equal(t, sessionID, w.Header().Get(middleware.SessionHeader))
	assert.Equal(t, models.CrisisMedium, first.Message.CrisisLevel)
	assert.Nil(t, first.Escalation)

	w = s.do(http.MethodPost, "/api/v1/messages", models.SendMessageRequest{
		Content:    "I want to kill myself",
		SessionID:  sessionID,
		SenderName: "Anon",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := decode[service.IngestResponse](t, w)
	require.NotNil(t, second.Escalation)
	assert.Equal(t, models.SessionEmergency, second.Session.Status)
	assert.Empty(t, second.NotificationError)
	assert.Len(t, s.dispatcher.records, 1)
	assert.Len(t, s.publisher.results, 2)

	w = s.do(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess := decode[models.ChatSession](t, w)
	assert.Len(t, sess.Messages, 2)
	assert.Equal(t, models.CrisisCritical, sess.CrisisLevel)

	w = s.do(http.MethodGet, "/api/v1/sessions/"+sessionID+"/messages", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode[map[string]any](t, w)["count"])

	msgPath := "/api/v1/messages/" + first.Message.ID
	w = s.do(http.MethodGet, msgPath, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "message lookups need the session capability")
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, w))

	w = s.do(http.MethodGet, msgPath, nil, map[string]string{middleware.SessionHeader: sessionID})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOwnedSessionIsPrivate(t *testing.T) {
	s := newServer(t)
	owner := bearer(s.token("owner-1", jwt.RoleUser))

	w := s.do(http.MethodPost, "/api/v1/messages", models.SendMessageRequest{
		Content:    "hello",
		SenderName: "Owner",
	}, owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sessionID := decode[service.IngestResponse](t, w).Session.ID

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, owner).Code)

	w = s.do(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "knowing the id is not enough for an owned session")

	stranger := bearer(s.token("stranger", jwt.RoleUser))
	w = s.do(http.MethodPost, "/api/v1/messages", models.SendMessageRequest{
		Content:    "let me in",
		SessionID:  sessionID,
		SenderName: "Stranger",
	}, stranger)
	assert.Equal(t, http.StatusForbidden, w.Code)

	specialist := bearer(s.token("spec-1", jwt.RoleSpecialist))
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, specialist).Code)
}

func TestDeleteMessageIsIdempotent(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodPost, "/api/v1/messages", models.SendMessageRequest{Content: "hi", SenderName: "A", IsAnonymous: true}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	res := decode[service.IngestResponse](t, w)

	path := "/api/v1/sessions/" + res.Session.ID + "/messages/" + res.Message.ID
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, nil, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, nil, nil).Code)

	w = s.do(http.MethodDelete, "/api/v1/sessions/missing/messages/x", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeSessionNotFound, errorCode(t, w))
}

func TestStatusUpdates(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodPost, "/api/v1/messages", models.SendMessageRequest{Content: "hi", SenderName: "A", IsAnonymous: true}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	res := decode[service.IngestResponse](t, w)
	capability := map[string]string{middleware.SessionHeader: res.Session.ID}

	statusPath := "/api/v1/messages/" + res.Message.ID + "/status"
	w = s.do(http.MethodPatch, statusPath, models.UpdateMessageStatusRequest{Status: models.StatusRead}, capability)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusRead, decode[models.ChatMessage](t, w).Status)

	w = s.do(http.MethodPatch, statusPath, models.UpdateMessageStatusRequest{Status: models.StatusDelivered}, capability)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeInvalidStatusTransition, errorCode(t, w))

	sessionPath := "/api/v1/sessions/" + res.Session.ID + "/status"
	w = s.do(http.MethodPatch, sessionPath, models.UpdateSessionStatusRequest{Status: models.SessionEmergency}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPatch, sessionPath, models.UpdateSessionStatusRequest{Status: models.SessionTransferred}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionTransferred, decode[models.SessionSummary](t, w).Status)
}

func TestSendMessageValidation(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"blank content", models.SendMessageRequest{Content: "  ", SenderName: "A"}, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"missing sender name", models.SendMessageRequest{Content: "hi"}, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"file without name", map[string]any{"content": "doc", "senderName": "A", "messageType": "file", "metadata": map[string]any{}}, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"unknown session", models.SendMessageRequest{Content: "hi", SenderName: "A", SessionID: "nope"}, http.StatusNotFound, apperrors.CodeSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/v1/messages", tt.body, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
	assert.Empty(t, s.publisher.results)
}

func TestQueue(t *testing.T) {
	s := newServer(t)
	for _, content := range []string{"hello there", "I want to kill myself", "I feel scared"} {
		w := s.do(http.MethodPost, "/api/v1/messages", models.SendMessageRequest{Content: content, SenderName: "A", IsAnonymous: true}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/queue", nil, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/queue", nil, bearer(s.token("u", jwt.RoleUser))).Code)

	specialist := bearer(s.token("spec", jwt.RoleSpecialist))
	w := s.do(http.MethodGet, "/api/v1/queue", nil, specialist)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Sessions []models.SessionSummary `json:"sessions"`
		Count    int                     `json:"count"`
	}](t, w)
	require.Equal(t, 3, body.Count)
	assert.Equal(t, models.CrisisCritical, body.Sessions[0].CrisisLevel)
	assert.Equal(t, models.CrisisMedium, body.Sessions[1].CrisisLevel)

	w = s.do(http.MethodGet, "/api/v1/queue?minLevel=high", nil, specialist)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodGet, "/api/v1/queue?minLevel=urgent", nil, specialist)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
