// Package session owns chat sessions and their message histories.
//
// Every mutation of a session runs inside that session's exclusive scope, so
// mutations of one session are totally ordered while unrelated sessions never
// wait on each other. Everything handed back to callers is a snapshot.
package session

import (
	"context"
	"time"

	"crisis-chat/backend/internal/models"
)

// CreateOptions describe a new session
type CreateOptions struct {
	OwnerID   string
	Anonymous bool
	Language  string
	// Init, when set, populates the session before anyone else can see it.
	// If it fails the session is not created.
	Init func(Tx) error
}

// ListFilter narrows ListSessions. Zero values match everything.
type ListFilter struct {
	MinLevel models.CrisisLevel
	Statuses []models.SessionStatus
}

// Tx is a handle on one session, valid only inside Store.Update.
// Changes become visible when the update function returns nil.
type Tx interface {
	// Session returns a snapshot of the working copy
	Session() models.ChatSession
	// Now returns the store clock
	Now() time.Time
	// AppendMessage adds msg to the end of the history, assigning an ID and timestamp if missing
	AppendMessage(msg models.ChatMessage) (models.ChatMessage, error)
	// RemoveMessage drops a message; it reports false when there was nothing to drop
	RemoveMessage(messageID string) bool
	// UpdateMessage mutates one message in place
	UpdateMessage(messageID string, fn func(*models.ChatMessage) error) (models.ChatMessage, error)
	// RaiseCrisisLevel applies the never-decrease policy and recomputes priority
	RaiseCrisisLevel(level models.CrisisLevel) bool
	// SetStatus changes the session status
	SetStatus(status models.SessionStatus)
	// AddParticipant registers or refreshes a participant
	AddParticipant(p models.Participant)
	// Touch refreshes UpdatedAt
	Touch()
	// OnCommit registers fn to run after a successful commit, still inside the
	// session scope, so hooks of consecutive updates run in commit order
	OnCommit(fn func())
}

// Store is the session persistence boundary used by the chat service
type Store interface {
	CreateSession(ctx context.Context, opts CreateOptions) (models.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (models.ChatSession, error)
	ListSessions(ctx context.Context, filter ListFilter) ([]models.SessionSummary, error)

	// Update runs fn in the session's exclusive scope and returns the committed snapshot
	Update(ctx context.Context, sessionID string, fn func(Tx) error) (models.ChatSession, error)

	AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) (models.ChatMessage, error)
	UpdateAggregateCrisisLevel(ctx context.Context, sessionID string, level models.CrisisLevel) (models.ChatSession, error)
	SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) (models.ChatSession, error)
	DeleteMessage(ctx context.Context, sessionID, messageID string) error

	GetMessage(ctx context.Context, messageID string) (models.ChatMessage, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	UpdateMessageStatus(ctx context.Context, messageID string, status models.DeliveryStatus) (models.ChatMessage, error)
}
