package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/internal/service"
	apperrors "crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/jwt"
	"crisis-chat/backend/pkg/logger"
)

// Client is one websocket connection
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	claims *jwt.Claims
	log    *logger.Logger

	mu      sync.Mutex
	session string
}

func (c *Client) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// readPump handles frames in arrival order until the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Websocket read failed", "client", c.ID, "error", err.Error())
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError(apperrors.InvalidInput("malformed frame"))
			continue
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame Frame) {
	switch frame.Type {
	case FrameChat:
		c.handleChat(frame.Content)
	case FramePing:
		c.sendFrame(FramePong, nil)
	default:
		c.sendError(apperrors.InvalidInput("unknown frame type %q", frame.Type))
	}
}

func (c *Client) handleChat(content json.RawMessage) {
	var req models.SendMessageRequest
	if err := json.Unmarshal(content, &req); err != nil {
		c.sendError(apperrors.InvalidInput("invalid chat frame: %v", err))
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.sessionID()
	}

	in, err := service.InputFromRequest(req)
	if err != nil {
		c.sendError(err)
		return
	}

	result, err := c.hub.ingest(context.Background(), c, in)
	if err != nil {
		c.sendError(err)
		return
	}

	c.mu.Lock()
	if c.session == "" {
		c.session = result.Session.ID
	}
	c.mu.Unlock()
	c.hub.bind(c, result.Session.ID)

	c.hub.PublishIngest(result)
}

func (c *Client) sendFrame(frameType string, content any) {
	data, err := encode(frameType, content)
	if err != nil {
		c.log.LogError(err, "Failed to encode frame", "type", frameType)
		return
	}
	c.hub.sendTo(c, data)
}

func (c *Client) sendError(err error) {
	appErr := apperrors.FromError(err)
	c.sendFrame(FrameError, ErrorContent{Code: appErr.Code, Message: appErr.Message})
}

// writePump owns all writes to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
