// Package access decides who may read or change a session and its messages.
package access

import (
	"crisis-chat/backend/internal/models"
	apperrors "crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/jwt"
)

// Actor is the caller. UserID comes from the identity provider and is empty
// for anonymous callers. SessionID is the session identifier the caller
// presented, which acts as a capability for sessions without a registered owner.
// Staff marks crisis specialists and admins, who may work on any session.
type Actor struct {
	UserID    string
	SessionID string
	Staff     bool
}

// Anonymous reports whether the actor carries no identity
func (a Actor) Anonymous() bool {
	return a.UserID == ""
}

// Guard evaluates access rules. The zero value is ready to use.
type Guard struct{}

// NewGuard creates a Guard
func NewGuard() *Guard {
	return &Guard{}
}

// CanAccessSession reports whether actor may see sess.
// Sessions with a registered owner belong to that owner alone; all other
// sessions are open to whoever holds their identifier.
func (g *Guard) CanAccessSession(actor Actor, sess models.ChatSession) bool {
	if actor.Staff {
		return true
	}
	if sess.HasRegisteredOwner() {
		return actor.UserID != "" && actor.UserID == sess.OwnerID
	}
	return actor.SessionID != "" && actor.SessionID == sess.ID
}

// CanAccessMessage reports whether actor may see or change msg
func (g *Guard) CanAccessMessage(actor Actor, sess models.ChatSession, msg models.ChatMessage) bool {
	if msg.SessionID != "" && msg.SessionID != sess.ID {
		return false
	}
	if actor.Staff {
		return true
	}
	if actor.UserID != "" && actor.UserID == msg.SenderID {
		return true
	}
	if sess.HasRegisteredOwner() {
		return actor.UserID != "" && actor.UserID == sess.OwnerID
	}
	return actor.SessionID != "" && actor.SessionID == sess.ID
}

// AuthorizeSession returns Unauthorized when actor may not see sess
func (g *Guard) AuthorizeSession(actor Actor, sess models.ChatSession) error {
	if !g.CanAccessSession(actor, sess) {
		return apperrors.Unauthorized("not allowed to access this session")
	}
	return nil
}

// AuthorizeMessage returns Unauthorized when actor may not touch msg
func (g *Guard) AuthorizeMessage(actor Actor, sess models.ChatSession, msg models.ChatMessage) error {
	if !g.CanAccessMessage(actor, sess, msg) {
		return apperrors.Unauthorized("not allowed to access this message")
	}
	return nil
}

// FromClaims builds the actor for a request. claims is nil for callers
// without a token; sessionID is the identifier they presented, if any.
func FromClaims(claims *jwt.Claims, sessionID string) Actor {
	actor := Actor{SessionID: sessionID}
	if claims != nil {
		actor.UserID = claims.UserID()
		actor.Staff = claims.Role.Staff()
	}
	return actor
}
