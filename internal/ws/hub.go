// Package ws serves live chat over websockets. Clients join one session, or,
// for specialists, watch the escalation feed of every session.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"crisis-chat/backend/internal/access"
	"crisis-chat/backend/internal/notify"
	"crisis-chat/backend/internal/service"
	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/pkg/middleware"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Time allowed to ingest one chat frame
	ingestTimeout = 10 * time.Second

	sendBuffer = 64
)

// Hub tracks connected clients by session and fans frames out to them
type Hub struct {
	chat     *service.ChatService
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*Client]string
	sessions map[string]map[*Client]struct{}
	watchers map[*Client]struct{}
	closed   bool
}

// NewHub creates a hub. allowedOrigins of ["*"] or nil accepts every origin.
func NewHub(chat *service.ChatService, log *logger.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		chat:     chat,
		log:      log,
		clients:  make(map[*Client]string),
		sessions: make(map[string]map[*Client]struct{}),
		watchers: make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

// ServeWs upgrades GET /ws?sessionId=. Without a session the first chat frame
// creates one; specialists without a session watch every escalation instead.
func (h *Hub) ServeWs(c *gin.Context) {
	sessionID := c.Query("sessionId")
	claims, _ := middleware.ClaimsFrom(c)
	actor := access.FromClaims(claims, sessionID)

	if sessionID != "" {
		if _, err := h.chat.GetSession(c.Request.Context(), actor, sessionID); err != nil {
			c.Error(err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		ID:      uuid.New().String(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		claims:  claims,
		session: sessionID,
		log:     logger.FromGin(c).WithSessionID(sessionID),
	}
	if !h.register(client, sessionID, actor.Staff && sessionID == "") {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// PublishIngest sends a stored message, and its escalation if any, to the
// clients of its session. Escalations also go to every watcher.
func (h *Hub) PublishIngest(result service.IngestResult) {
	msg, err := encode(FrameMessage, result.Response())
	if err != nil {
		h.log.LogError(err, "Failed to encode message frame")
		return
	}
	h.toSession(result.Session.ID, msg)

	if result.Escalation == nil {
		return
	}
	esc, err := encode(FrameEscalation, result.Escalation)
	if err != nil {
		h.log.LogError(err, "Failed to encode escalation frame")
		return
	}
	h.toSession(result.Session.ID, esc)
	h.toWatchers(esc)
}

// PublishResult tells watchers how an escalation hand-off ended
func (h *Hub) PublishResult(result notify.Result) {
	data, err := encode(FrameEscalation, result.Record)
	if err != nil {
		h.log.LogError(err, "Failed to encode escalation frame")
		return
	}
	h.toWatchers(data)
}

// Connections reports the number of connected clients
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) register(c *Client, sessionID string, watcher bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = sessionID
	switch {
	case watcher:
		h.watchers[c] = struct{}{}
	case sessionID != "":
		h.joinLocked(c, sessionID)
	}
	h.log.Debug("Websocket client registered", "client", c.ID, "sessionId", sessionID, "watcher", watcher)
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// bind attaches a client that connected without a session to the one its first message created
func (h *Hub) bind(c *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[c]
	if !ok || current != "" {
		return
	}
	if _, watching := h.watchers[c]; watching {
		return
	}
	h.clients[c] = sessionID
	h.joinLocked(c, sessionID)
}

func (h *Hub) joinLocked(c *Client, sessionID string) {
	members, ok := h.sessions[sessionID]
	if !ok {
		members = make(map[*Client]struct{})
		h.sessions[sessionID] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) dropLocked(c *Client) {
	sessionID, ok := h.clients[c]
	if !ok {
		return
	}
	delete(h.clients, c)
	delete(h.watchers, c)
	if members, ok := h.sessions[sessionID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	close(c.send)
}

func (h *Hub) toSession(sessionID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.sessions[sessionID] {
		h.deliverLocked(c, data)
	}
}

func (h *Hub) toWatchers(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.watchers {
		h.deliverLocked(c, data)
	}
}

// deliverLocked drops clients that cannot keep up
func (h *Hub) deliverLocked(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("Websocket client removed due to blocked channel", "client", c.ID)
		h.dropLocked(c)
	}
}

// sendTo queues a frame for one client
func (h *Hub) sendTo(c *Client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.deliverLocked(c, data)
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ingest runs one chat frame through the chat service
func (h *Hub) ingest(ctx context.Context, c *Client, in service.IngestInput) (service.IngestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	actor := access.FromClaims(c.claims, in.SessionID)
	return h.chat.IngestAs(ctx, actor, in)
}
