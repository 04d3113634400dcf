package session

import (
	"fmt"
	"slices"
	"time"

	"crisis-chat/backend/internal/models"
	apperrors "crisis-chat/backend/pkg/errors"
)

type memTx struct {
	store   *MemoryStore
	work    models.ChatSession
	added   []string
	removed []string
	hooks   []func()
}

func (t *memTx) Session() models.ChatSession {
	return t.work.Clone()
}

// Now never returns a time before the session's last update
func (t *memTx) Now() time.Time {
	now := t.store.now()
	if now.Before(t.work.UpdatedAt) {
		return t.work.UpdatedAt
	}
	return now
}

func (t *memTx) Touch() {
	t.work.UpdatedAt = t.Now()
}

func (t *memTx) AppendMessage(msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = t.store.ids.NewID()
	}
	if msg.ID == "" || slices.Contains(t.added, msg.ID) || t.store.messageIDTaken(msg.ID) {
		return models.ChatMessage{}, apperrors.StoreInvariantViolation("message id collision").
			WithDetails(map[string]string{"messageId": msg.ID, "sessionId": t.work.ID})
	}
	if msg.SessionID != "" && msg.SessionID != t.work.ID {
		return models.ChatMessage{}, apperrors.StoreInvariantViolation(
			fmt.Sprintf("message bound to session %s appended to %s", msg.SessionID, t.work.ID))
	}

	msg.SessionID = t.work.ID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = t.Now()
	}

	t.work.Messages = append(t.work.Messages, msg)
	t.added = append(t.added, msg.ID)
	t.Touch()
	return msg, nil
}

func (t *memTx) RemoveMessage(messageID string) bool {
	i := indexOf(t.work.Messages, messageID)
	if i < 0 {
		return false
	}

	t.work.Messages = slices.Delete(t.work.Messages, i, i+1)
	if j := slices.Index(t.added, messageID); j >= 0 {
		t.added = slices.Delete(t.added, j, j+1)
	} else {
		t.removed = append(t.removed, messageID)
	}
	t.Touch()
	return true
}

func (t *memTx) UpdateMessage(messageID string, fn func(*models.ChatMessage) error) (models.ChatMessage, error) {
	i := indexOf(t.work.Messages, messageID)
	if i < 0 {
		return models.ChatMessage{}, apperrors.MessageNotFound(messageID)
	}

	msg := t.work.Messages[i]
	id, sessionID := msg.ID, msg.SessionID
	if err := fn(&msg); err != nil {
		return models.ChatMessage{}, err
	}
	if msg.ID != id || msg.SessionID != sessionID {
		return models.ChatMessage{}, apperrors.StoreInvariantViolation("message identity changed during update")
	}

	t.work.Messages[i] = msg
	t.Touch()
	return msg, nil
}

func (t *memTx) RaiseCrisisLevel(level models.CrisisLevel) bool {
	next := models.MaxCrisisLevel(t.work.CrisisLevel, level)
	changed := next != t.work.CrisisLevel
	t.work.CrisisLevel = next
	t.work.Priority = next.Priority()
	if changed {
		t.Touch()
	}
	return changed
}

func (t *memTx) SetStatus(status models.SessionStatus) {
	t.work.Status = status
	t.Touch()
}

func (t *memTx) AddParticipant(p models.Participant) {
	for i, existing := range t.work.Participants {
		if samePerson(existing, p) {
			t.work.Participants[i].Online = p.Online
			return
		}
	}
	t.work.Participants = append(t.work.Participants, p)
	t.Touch()
}

func (t *memTx) OnCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

func samePerson(a, b models.Participant) bool {
	if a.ID != "" || b.ID != "" {
		return a.ID == b.ID
	}
	return a.Name == b.Name && a.Type == b.Type
}

// verify checks the working copy before it replaces the committed session
func (t *memTx) verify(before int, lastUpdate time.Time) error {
	want := before + len(t.added) - len(t.removed)
	if len(t.work.Messages) != want {
		return apperrors.StoreInvariantViolation(
			fmt.Sprintf("message sequence corrupted: have %d messages, expected %d", len(t.work.Messages), want))
	}
	if t.work.UpdatedAt.Before(lastUpdate) || t.work.UpdatedAt.Before(t.work.CreatedAt) {
		return apperrors.StoreInvariantViolation("updatedAt regressed")
	}
	return nil
}
