package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crisis-chat/backend/internal/access"
	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/internal/service"
	"crisis-chat/backend/internal/session"
	apperrors "crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/jwt"
	"crisis-chat/backend/pkg/middleware"
)

// Publisher relays stored messages to live websocket clients
type Publisher interface {
	PublishIngest(result service.IngestResult)
}

// ChatHandler serves the chat REST endpoints
type ChatHandler struct {
	chat      *service.ChatService
	publisher Publisher
}

// NewChatHandler creates a new chat handler. publisher may be nil.
func NewChatHandler(chat *service.ChatService, publisher Publisher) *ChatHandler {
	return &ChatHandler{chat: chat, publisher: publisher}
}

// RegisterRoutesV1 registers the chat routes on the /api/v1 group.
// Authentication is optional except for the specialist queue.
func (h *ChatHandler) RegisterRoutesV1(v1 *gin.RouterGroup) {
	v1.POST("/messages", h.SendMessage)
	v1.GET("/messages/:id", h.GetMessage)
	v1.PATCH("/messages/:id/status", h.UpdateMessageStatus)

	sessions := v1.Group("/sessions")
	{
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/messages", h.ListMessages)
		sessions.DELETE("/:id/messages/:messageId", h.DeleteMessage)
		sessions.PATCH("/:id/status", h.UpdateSessionStatus)
	}

	v1.GET("/queue", middleware.RequireAnyRole(jwt.RoleSpecialist), h.Queue)
}

// actor builds the caller from the token and the session identifier they presented
func actor(c *gin.Context, sessionID string) access.Actor {
	claims, _ := middleware.ClaimsFrom(c)
	if sessionID == "" {
		sessionID = c.GetHeader(middleware.SessionHeader)
	}
	return access.FromClaims(claims, sessionID)
}

// SendMessage ingests one message, creating a session when none is given
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.InvalidInput("invalid request body: %v", err).Wrap(err))
		return
	}

	in, err := service.InputFromRequest(req)
	if err != nil {
		c.Error(err)
		return
	}

	ctx := middleware.WithRequestContext(c.Request.Context(), c)
	result, err := h.chat.IngestAs(ctx, actor(c, req.SessionID), in)
	if err != nil {
		c.Error(err)
		return
	}

	if h.publisher != nil {
		h.publisher.PublishIngest(result)
	}
	c.Header(middleware.SessionHeader, result.Session.ID)
	c.JSON(http.StatusCreated, result.Response())
}

// GetSession returns a session with its full history
func (h *ChatHandler) GetSession(c *gin.Context) {
	id := c.Param("id")
	sess, err := h.chat.GetSession(c.Request.Context(), actor(c, id), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ListMessages returns the messages of a session in order
func (h *ChatHandler) ListMessages(c *gin.Context) {
	id := c.Param("id")
	messages, err := h.chat.ListMessages(c.Request.Context(), actor(c, id), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": id,
		"messages":  messages,
		"count":     len(messages),
	})
}

// GetMessage returns one message. Anonymous callers present the session in X-Session-ID.
func (h *ChatHandler) GetMessage(c *gin.Context) {
	msg, err := h.chat.GetMessage(c.Request.Context(), actor(c, ""), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes a message; deleting a missing message succeeds
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	id := c.Param("id")
	if err := h.chat.DeleteMessage(c.Request.Context(), actor(c, id), id, c.Param("messageId")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateMessageStatus advances the delivery status of a message
func (h *ChatHandler) UpdateMessageStatus(c *gin.Context) {
	var req models.UpdateMessageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.InvalidInput("invalid request body: %v", err).Wrap(err))
		return
	}

	msg, err := h.chat.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, actor(c, ""))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// UpdateSessionStatus hands a session over or closes it
func (h *ChatHandler) UpdateSessionStatus(c *gin.Context) {
	var req models.UpdateSessionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.InvalidInput("invalid request body: %v", err).Wrap(err))
		return
	}

	id := c.Param("id")
	sess, err := h.chat.UpdateSessionStatus(c.Request.Context(), actor(c, id), id, req.Status)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sess.Summary())
}

// Queue lists sessions for specialists, most urgent first
func (h *ChatHandler) Queue(c *gin.Context) {
	var filter session.ListFilter
	if raw := c.Query("minLevel"); raw != "" {
		level, err := models.ParseCrisisLevel(raw)
		if err != nil {
			c.Error(apperrors.InvalidInput("%v", err))
			return
		}
		filter.MinLevel = level
	}
	for _, raw := range c.QueryArray("status") {
		status := models.SessionStatus(raw)
		if !status.Valid() {
			c.Error(apperrors.InvalidInput("unknown session status %q", raw))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	sessions, err := h.chat.Queue(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
