package models

import "encoding/json"

// SendMessageRequest is the body of POST /messages and of websocket chat frames.
// The sender identity never comes from the body; it is taken from the token.
type SendMessageRequest struct {
	Content     string          `json:"content"`
	SessionID   string          `json:"sessionId,omitempty"`
	SenderName  string          `json:"senderName"`
	SenderType  ParticipantType `json:"senderType,omitempty"`
	IsAnonymous bool            `json:"isAnonymous"`
	MessageType MessageType     `json:"messageType,omitempty"`
	ReplyToID   string          `json:"replyToId,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Language    string          `json:"language,omitempty"`
}

// Kind returns the message type, defaulting to text
func (r SendMessageRequest) Kind() MessageType {
	if r.MessageType == "" {
		return MessageText
	}
	return r.MessageType
}

// DecodeMetadata decodes the raw metadata according to the message type
func (r SendMessageRequest) DecodeMetadata() (Metadata, error) {
	return DecodeMetadata(r.Kind(), r.Metadata)
}

// UpdateMessageStatusRequest is the body of PATCH /messages/:id/status
type UpdateMessageStatusRequest struct {
	Status DeliveryStatus `json:"status"`
}

// UpdateSessionStatusRequest is the body of PATCH /sessions/:id/status
type UpdateSessionStatusRequest struct {
	Status SessionStatus `json:"status"`
}
