package session

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"crisis-chat/backend/internal/models"
	apperrors "crisis-chat/backend/pkg/errors"
)

type entry struct {
	mu      sync.Mutex
	session models.ChatSession
}

// MemoryStore keeps sessions in process memory.
// mu guards only the maps; each session has its own lock.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*entry
	messageIndex map[string]string // message id -> session id
	ids          IDGenerator
	now          func() time.Time
}

// Option configures a MemoryStore
type Option func(*MemoryStore)

// WithIDGenerator replaces the default UUID generator
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *MemoryStore) { s.ids = ids }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:     make(map[string]*entry),
		messageIndex: make(map[string]string),
		ids:          UUIDGenerator{},
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession allocates a fresh session and runs opts.Init on it. A
// generated ID that already exists means the generator is broken and is
// reported as an invariant violation.
func (s *MemoryStore) CreateSession(ctx context.Context, opts CreateOptions) (models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return models.ChatSession{}, err
	}

	id := s.ids.NewID()
	if id == "" {
		return models.ChatSession{}, apperrors.StoreInvariantViolation("id generator returned an empty session id")
	}

	now := s.now()
	sess := models.ChatSession{
		ID:           id,
		OwnerID:      opts.OwnerID,
		Participants: []models.Participant{},
		Messages:     []models.ChatMessage{},
		Status:       models.SessionActive,
		CrisisLevel:  models.CrisisLow,
		Priority:     models.CrisisLow.Priority(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Anonymous:    opts.Anonymous,
		Language:     opts.Language,
	}

	e := &entry{session: sess}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &memTx{store: s, work: sess.Clone()}
	if opts.Init != nil {
		if err := opts.Init(tx); err != nil {
			return models.ChatSession{}, err
		}
		if err := tx.verify(0, sess.UpdatedAt); err != nil {
			return models.ChatSession{}, err
		}
	}
	e.session = tx.work

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		return models.ChatSession{}, apperrors.StoreInvariantViolation("session id collision").
			WithDetails(map[string]string{"sessionId": id})
	}
	s.sessions[id] = e
	for _, msgID := range tx.added {
		s.messageIndex[msgID] = id
	}
	s.mu.Unlock()

	for _, hook := range tx.hooks {
		hook()
	}

	return e.session.Clone(), nil
}

// GetSession returns a snapshot of the session
func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return models.ChatSession{}, err
	}

	e := s.lookup(sessionID)
	if e == nil {
		return models.ChatSession{}, apperrors.SessionNotFound(sessionID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// ListSessions returns summaries ordered by priority (highest first), then by
// creation time so the longest-waiting session comes first
func (s *MemoryStore) ListSessions(ctx context.Context, filter ListFilter) ([]models.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	type row struct {
		summary   models.SessionSummary
		createdAt time.Time
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		sess := e.session
		summary := sess.Summary()
		e.mu.Unlock()

		if filter.MinLevel != "" && !sess.CrisisLevel.AtLeast(filter.MinLevel) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, sess.Status) {
			continue
		}
		rows = append(rows, row{summary: summary, createdAt: sess.CreatedAt})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].summary.Priority != rows[j].summary.Priority {
			return rows[i].summary.Priority > rows[j].summary.Priority
		}
		if !rows[i].createdAt.Equal(rows[j].createdAt) {
			return rows[i].createdAt.Before(rows[j].createdAt)
		}
		return rows[i].summary.ID < rows[j].summary.ID
	})

	out := make([]models.SessionSummary, len(rows))
	for i, r := range rows {
		out[i] = r.summary
	}
	return out, nil
}

// Update runs fn against a working copy of the session while holding the
// session lock, and commits the copy only when fn succeeds
func (s *MemoryStore) Update(ctx context.Context, sessionID string, fn func(Tx) error) (models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return models.ChatSession{}, err
	}

	e := s.lookup(sessionID)
	if e == nil {
		return models.ChatSession{}, apperrors.SessionNotFound(sessionID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before := len(e.session.Messages)
	tx := &memTx{store: s, work: e.session.Clone()}
	if err := fn(tx); err != nil {
		return models.ChatSession{}, err
	}

	if err := tx.verify(before, e.session.UpdatedAt); err != nil {
		return models.ChatSession{}, err
	}

	e.session = tx.work

	if len(tx.added) > 0 || len(tx.removed) > 0 {
		s.mu.Lock()
		for _, id := range tx.removed {
			delete(s.messageIndex, id)
		}
		for _, id := range tx.added {
			s.messageIndex[id] = sessionID
		}
		s.mu.Unlock()
	}

	for _, hook := range tx.hooks {
		hook()
	}

	return e.session.Clone(), nil
}

// AppendMessage adds a message to the end of the session history
func (s *MemoryStore) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) (models.ChatMessage, error) {
	var stored models.ChatMessage
	_, err := s.Update(ctx, sessionID, func(tx Tx) error {
		var err error
		stored, err = tx.AppendMessage(msg)
		return err
	})
	return stored, err
}

// UpdateAggregateCrisisLevel raises the session level; a lower level is a no-op
func (s *MemoryStore) UpdateAggregateCrisisLevel(ctx context.Context, sessionID string, level models.CrisisLevel) (models.ChatSession, error) {
	return s.Update(ctx, sessionID, func(tx Tx) error {
		tx.RaiseCrisisLevel(level)
		return nil
	})
}

// SetStatus changes the session status
func (s *MemoryStore) SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) (models.ChatSession, error) {
	if !status.Valid() {
		return models.ChatSession{}, apperrors.InvalidInput("unknown session status %q", status)
	}
	return s.Update(ctx, sessionID, func(tx Tx) error {
		tx.SetStatus(status)
		return nil
	})
}

// DeleteMessage removes a message from the session. Deleting a message that
// is not there succeeds without changing anything.
func (s *MemoryStore) DeleteMessage(ctx context.Context, sessionID, messageID string) error {
	_, err := s.Update(ctx, sessionID, func(tx Tx) error {
		tx.RemoveMessage(messageID)
		return nil
	})
	return err
}

// GetMessage finds a message by ID across all sessions
func (s *MemoryStore) GetMessage(ctx context.Context, messageID string) (models.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return models.ChatMessage{}, err
	}

	e, ok := s.owner(messageID)
	if !ok {
		return models.ChatMessage{}, apperrors.MessageNotFound(messageID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if i := indexOf(e.session.Messages, messageID); i >= 0 {
		return e.session.Messages[i], nil
	}
	return models.ChatMessage{}, apperrors.MessageNotFound(messageID)
}

// ListMessages returns the session history in arrival order
func (s *MemoryStore) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

// UpdateMessageStatus moves a message forward along its delivery states
func (s *MemoryStore) UpdateMessageStatus(ctx context.Context, messageID string, status models.DeliveryStatus) (models.ChatMessage, error) {
	if !status.Valid() {
		return models.ChatMessage{}, apperrors.InvalidInput("unknown delivery status %q", status)
	}

	s.mu.RLock()
	sessionID, ok := s.messageIndex[messageID]
	s.mu.RUnlock()
	if !ok {
		return models.ChatMessage{}, apperrors.MessageNotFound(messageID)
	}

	var updated models.ChatMessage
	_, err := s.Update(ctx, sessionID, func(tx Tx) error {
		var err error
		updated, err = tx.UpdateMessage(messageID, func(m *models.ChatMessage) error {
			if !m.Status.CanTransitionTo(status) {
				return apperrors.InvalidStatusTransition(string(m.Status), string(status))
			}
			m.Status = status
			return nil
		})
		return err
	})
	return updated, err
}

func (s *MemoryStore) lookup(sessionID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

func (s *MemoryStore) owner(messageID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.messageIndex[messageID]
	if !ok {
		return nil, false
	}
	e, ok := s.sessions[sessionID]
	return e, ok
}

func (s *MemoryStore) messageIDTaken(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messageIndex[messageID]
	return ok
}

func indexOf(messages []models.ChatMessage, messageID string) int {
	for i := range messages {
		if messages[i].ID == messageID {
			return i
		}
	}
	return -1
}
