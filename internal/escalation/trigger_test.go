package escalation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crisis-chat/backend/internal/crisis"
	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/internal/session"
	apperrors "crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/logger"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	records []models.EscalationRecord
	err     error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, rec models.EscalationRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.records = append(d.records, rec)
	return nil
}

func (d *recordingDispatcher) Records() []models.EscalationRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.EscalationRecord(nil), d.records...)
}

func setup(t *testing.T, policy StatusPolicy, d Dispatcher) (*Trigger, *session.MemoryStore, string) {
	t.Helper()
	store := session.NewMemoryStore()
	sess, err := store.CreateSession(context.Background(), session.CreateOptions{Anonymous: true})
	require.NoError(t, err)
	trigger := NewTrigger(Config{Policy: policy, ExcerptLength: 20}, store, d, logger.Nop(), nil)
	return trigger, store, sess.ID
}

func TestEscalateCriticalMovesSessionToEmergency(t *testing.T) {
	d := &recordingDispatcher{}
	trigger, store, id := setup(t, CriticalOnly, d)

	rec, err := trigger.Escalate(context.Background(), id, models.CrisisCritical, "I want to kill myself tonight, please")
	require.NoError(t, err)

	assert.Equal(t, id, rec.SessionID)
	assert.Equal(t, models.CrisisCritical, rec.Level)
	assert.Equal(t, models.ResolutionPending, rec.Resolution)
	assert.Equal(t, models.EmergencyChannels{Police: true, Ambulance: true, CrisisTeam: true}, rec.Channels)
	assert.LessOrEqual(t, utf8.RuneCountInString(rec.Excerpt), 20)
	assert.NotEmpty(t, rec.ID)

	sess, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEmergency, sess.Status)
	assert.Equal(t, models.CrisisCritical, sess.CrisisLevel)
	assert.Equal(t, 10, sess.Priority)

	require.Len(t, d.Records(), 1)
	assert.Equal(t, rec.ID, d.Records()[0].ID)
}

func TestEscalateHighRespectsPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   StatusPolicy
		expected models.SessionStatus
	}{
		{"critical only keeps status", CriticalOnly, models.SessionActive},
		{"high and critical forces emergency", HighAndCritical, models.SessionEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			trigger, store, id := setup(t, tt.policy, d)

			before, err := store.GetSession(context.Background(), id)
			require.NoError(t, err)

			rec, err := trigger.Escalate(context.Background(), id, models.CrisisHigh, "he hits me")
			require.NoError(t, err)
			assert.Equal(t, models.EmergencyChannels{CrisisTeam: true}, rec.Channels)

			sess, err := store.GetSession(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sess.Status)
			assert.Equal(t, 7, sess.Priority)
			assert.False(t, sess.UpdatedAt.Before(before.UpdatedAt))
			assert.Len(t, d.Records(), 1)
		})
	}
}

func TestEscalateBelowThreshold(t *testing.T) {
	trigger, _, id := setup(t, CriticalOnly, &recordingDispatcher{})

	_, err := trigger.Escalate(context.Background(), id, models.CrisisMedium, "worried")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestEscalateUnknownSession(t *testing.T) {
	trigger, _, _ := setup(t, CriticalOnly, &recordingDispatcher{})

	_, err := trigger.Escalate(context.Background(), "missing", models.CrisisCritical, "x")
	assert.True(t, errors.Is(err, apperrors.ErrSessionNotFound))
}

func TestDispatchFailureKeepsState(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("queue full")}
	trigger, store, id := setup(t, CriticalOnly, d)

	rec, err := trigger.Escalate(context.Background(), id, models.CrisisCritical, "suicide")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotificationDispatchFailed))
	assert.Equal(t, models.ResolutionFailed, rec.Resolution)

	sess, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEmergency, sess.Status, "state is committed even when notification fails")
}

func TestNilDispatcherFails(t *testing.T) {
	trigger, _, id := setup(t, CriticalOnly, nil)

	_, err := trigger.Escalate(context.Background(), id, models.CrisisCritical, "suicide")
	assert.True(t, errors.Is(err, apperrors.ErrNotificationDispatchFailed))
}

func TestApplyIgnoresLowLevels(t *testing.T) {
	trigger, store, id := setup(t, HighAndCritical, &recordingDispatcher{})

	var rec *models.EscalationRecord
	_, err := store.Update(context.Background(), id, func(tx session.Tx) error {
		rec = trigger.Apply(tx, models.ChatMessage{Content: "scared", CrisisLevel: models.CrisisMedium},
			crisis.Assessment{Level: models.CrisisMedium, Phrase: "scared"})
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestApplyUsesMatchedPhraseAsReason(t *testing.T) {
	trigger, store, id := setup(t, CriticalOnly, &recordingDispatcher{})

	var rec *models.EscalationRecord
	_, err := store.Update(context.Background(), id, func(tx session.Tx) error {
		msg, err := tx.AppendMessage(models.ChatMessage{Content: "he has a knife", CrisisLevel: models.CrisisCritical})
		if err != nil {
			return err
		}
		rec = trigger.Apply(tx, msg, crisis.Assessment{Level: models.CrisisCritical, Phrase: "has a knife", Confidence: 0.9})
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "has a knife", rec.Reason)
	assert.NotEmpty(t, rec.MessageID)
}

func TestParseStatusPolicy(t *testing.T) {
	p, err := ParseStatusPolicy("")
	require.NoError(t, err)
	assert.Equal(t, CriticalOnly, p)

	p, err = ParseStatusPolicy(" High-And-Critical ")
	require.NoError(t, err)
	assert.Equal(t, HighAndCritical, p)

	_, err = ParseStatusPolicy("always")
	assert.Error(t, err)

	assert.Equal(t, HighAndCritical, PolicyFromFlag(true))
	assert.Equal(t, CriticalOnly, PolicyFromFlag(false))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("  short \n text ", 20))

	long := strings.Repeat("ä", 50)
	got := Excerpt(long, 10)
	assert.Equal(t, 10, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))

	assert.Equal(t, "…", Excerpt("abc", 1))
	assert.Equal(t, DefaultExcerptLength, utf8.RuneCountInString(Excerpt(strings.Repeat("x", 200), 0)))
}
