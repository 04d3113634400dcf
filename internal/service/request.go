package service

import (
	"crisis-chat/backend/internal/models"
	apperrors "crisis-chat/backend/pkg/errors"
)

// InputFromRequest turns a transport request into an IngestInput. The sender
// ID is left empty; IngestAs fills it from the caller.
func InputFromRequest(req models.SendMessageRequest) (IngestInput, error) {
	meta, err := req.DecodeMetadata()
	if err != nil {
		return IngestInput{}, apperrors.InvalidInput("invalid metadata: %v", err).Wrap(err)
	}

	return IngestInput{
		Content:     req.Content,
		SessionID:   req.SessionID,
		SenderName:  req.SenderName,
		SenderType:  req.SenderType,
		IsAnonymous: req.IsAnonymous,
		MessageType: req.Kind(),
		ReplyToID:   req.ReplyToID,
		Metadata:    meta,
		Language:    req.Language,
	}, nil
}

// NotificationError returns the hand-off error code, empty when there was none
func (r IngestResult) NotificationError() string {
	if r.NotificationErr == nil {
		return ""
	}
	return apperrors.GetErrorCode(r.NotificationErr)
}

// IngestResponse is the client view of an IngestResult
type IngestResponse struct {
	Message           models.ChatMessage       `json:"message"`
	Session           models.SessionSummary    `json:"session"`
	Escalation        *models.EscalationRecord `json:"escalation,omitempty"`
	NotificationError string                   `json:"notificationError,omitempty"`
}

// Response shapes the result for clients
func (r IngestResult) Response() IngestResponse {
	return IngestResponse{
		Message:           r.Message,
		Session:           r.Session,
		Escalation:        r.Escalation,
		NotificationError: r.NotificationError(),
	}
}
