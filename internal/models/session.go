package models

import (
	"slices"
	"time"
)

// SessionStatus is the lifecycle state of a chat session
type SessionStatus string

const (
	SessionActive      SessionStatus = "active"
	SessionTransferred SessionStatus = "transferred"
	SessionClosed      SessionStatus = "closed"
	SessionEmergency   SessionStatus = "emergency"
)

// Valid reports whether s is a known session status
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionTransferred, SessionClosed, SessionEmergency:
		return true
	}
	return false
}

// ParticipantType describes who is on the other end of a message
type ParticipantType string

const (
	ParticipantClient     ParticipantType = "client"
	ParticipantLawyer     ParticipantType = "lawyer"
	ParticipantSpecialist ParticipantType = "specialist"
	ParticipantSystem     ParticipantType = "system"
)

// Valid reports whether t is a known participant type
func (t ParticipantType) Valid() bool {
	switch t {
	case ParticipantClient, ParticipantLawyer, ParticipantSpecialist, ParticipantSystem:
		return true
	}
	return false
}

// Participant describes a sender taking part in a session
type Participant struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name"`
	Type   ParticipantType `json:"type"`
	Online bool            `json:"isOnline"`
}

// ChatSession is a conversation together with its aggregate risk state
type ChatSession struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"userId,omitempty"`
	Participants []Participant `json:"participants"`
	Messages     []ChatMessage `json:"messages"`
	Status       SessionStatus `json:"status"`
	CrisisLevel  CrisisLevel   `json:"crisisLevel"`
	Priority     int           `json:"priority"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Anonymous    bool          `json:"isAnonymous"`
	Language     string        `json:"language"`
}

// HasRegisteredOwner reports whether the session belongs to a known, non-anonymous user
func (s ChatSession) HasRegisteredOwner() bool {
	return s.OwnerID != "" && !s.Anonymous
}

// Clone returns a deep copy so callers never share slices with the store
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Participants = slices.Clone(s.Participants)
	out.Messages = slices.Clone(s.Messages)
	return out
}

// Summary returns the compact view relayed with every ingested message
func (s ChatSession) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		CrisisLevel:  s.CrisisLevel,
		Priority:     s.Priority,
		Status:       s.Status,
		MessageCount: len(s.Messages),
		UpdatedAt:    s.UpdatedAt,
	}
}

// SessionSummary is a content-free view of a session, safe for triage lists
type SessionSummary struct {
	ID           string        `json:"id"`
	CrisisLevel  CrisisLevel   `json:"crisisLevel"`
	Priority     int           `json:"priority"`
	Status       SessionStatus `json:"status"`
	MessageCount int           `json:"messageCount"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}
