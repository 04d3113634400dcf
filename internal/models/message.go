package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeliveryStatus tracks a message along sending → sent → delivered → read
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

var deliveryRank = map[DeliveryStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Valid reports whether s is a known delivery status
func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryRank[s]
	return ok
}

// CanTransitionTo reports whether a message in status s may move to next.
// Statuses only move forward; re-applying the current status is allowed.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return deliveryRank[next] >= deliveryRank[s]
}

// MessageType is the kind of a chat message
type MessageType string

const (
	MessageText      MessageType = "text"
	MessageFile      MessageType = "file"
	MessageSystem    MessageType = "system"
	MessageEmergency MessageType = "emergency"
)

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageSystem, MessageEmergency:
		return true
	}
	return false
}

// ChatMessage is a single message inside a session
type ChatMessage struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"sessionId"`
	SenderID    string         `json:"senderId,omitempty"`
	Sender      Participant    `json:"sender"`
	Content     string         `json:"content"`
	Timestamp   time.Time      `json:"timestamp"`
	Status      DeliveryStatus `json:"status"`
	Type        MessageType    `json:"type"`
	CrisisLevel CrisisLevel    `json:"crisisLevel"`
	Encrypted   bool           `json:"isEncrypted"`
	ReplyToID   string         `json:"replyToId,omitempty"`
	Metadata    Metadata       `json:"metadata,omitempty"`
}

// UnmarshalJSON decodes the metadata variant selected by the message type
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type plain ChatMessage
	var raw struct {
		plain
		Metadata json.RawMessage `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	meta, err := DecodeMetadata(raw.Type, raw.Metadata)
	if err != nil {
		return fmt.Errorf("message %s: %w", raw.ID, err)
	}

	*m = ChatMessage(raw.plain)
	m.Metadata = meta
	return nil
}
