package models

import "time"

// Resolution is where an escalation record is in its hand-off
type Resolution string

const (
	ResolutionPending    Resolution = "pending"
	ResolutionDispatched Resolution = "dispatched"
	ResolutionFailed     Resolution = "failed"
)

// EmergencyChannels selects which outside services should be contacted
type EmergencyChannels struct {
	Police     bool `json:"police"`
	Ambulance  bool `json:"ambulance"`
	CrisisTeam bool `json:"crisisTeam"`
}

// Any reports whether at least one channel is selected
func (c EmergencyChannels) Any() bool {
	return c.Police || c.Ambulance || c.CrisisTeam
}

// EscalationRecord is handed to the notification collaborators when a
// message crosses the escalation threshold. Excerpt is bounded and never
// carries the full message.
type EscalationRecord struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"sessionId"`
	MessageID  string            `json:"messageId"`
	Level      CrisisLevel       `json:"level"`
	Reason     string            `json:"reason"`
	Excerpt    string            `json:"excerpt"`
	Timestamp  time.Time         `json:"timestamp"`
	Channels   EmergencyChannels `json:"channels"`
	Resolution Resolution        `json:"resolution"`
}
