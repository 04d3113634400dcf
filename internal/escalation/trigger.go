// Package escalation turns high-risk messages into escalation records and
// hands them to the notification dispatcher.
package escalation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"crisis-chat/backend/internal/crisis"
	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/internal/session"
	apperrors "crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/shared/observability"
)

// Dispatcher accepts escalation records for delivery. Dispatch returns once
// the record is queued, not when it is delivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec models.EscalationRecord) error
}

// Config holds the trigger settings
type Config struct {
	Policy        StatusPolicy
	ExcerptLength int
}

// Trigger applies the escalation rules to a session
type Trigger struct {
	policy        StatusPolicy
	excerptLength int
	store         session.Store
	dispatcher    Dispatcher
	newID         func() string
	log           *logger.Logger
	metrics       *observability.Metrics
}

// NewTrigger creates a Trigger. A nil dispatcher makes every hand-off fail.
func NewTrigger(cfg Config, store session.Store, dispatcher Dispatcher, log *logger.Logger, metrics *observability.Metrics) *Trigger {
	if cfg.Policy == "" {
		cfg.Policy = DefaultStatusPolicy
	}
	if cfg.ExcerptLength <= 0 {
		cfg.ExcerptLength = DefaultExcerptLength
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Trigger{
		policy:        cfg.Policy,
		excerptLength: cfg.ExcerptLength,
		store:         store,
		dispatcher:    dispatcher,
		newID:         uuid.NewString,
		log:           log,
		metrics:       metrics,
	}
}

// Policy returns the status policy in force
func (t *Trigger) Policy() StatusPolicy {
	return t.policy
}

// Apply runs inside the session scope. It updates the session status per the
// policy and returns the record for msg, or nil when msg does not escalate.
func (t *Trigger) Apply(tx session.Tx, msg models.ChatMessage, assessment crisis.Assessment) *models.EscalationRecord {
	level := msg.CrisisLevel
	if !Escalates(level) {
		return nil
	}

	if t.policy.ForcesEmergency(level) {
		tx.SetStatus(models.SessionEmergency)
	} else {
		tx.Touch()
	}

	reason := assessment.Phrase
	if reason == "" {
		reason = fmt.Sprintf("message classified %s", level)
	}

	channels := ChannelsFor(level)
	if requested, ok := msg.Metadata.(models.EmergencyMetadata); ok {
		channels.Police = channels.Police || requested.Police
		channels.Ambulance = channels.Ambulance || requested.Ambulance
		channels.CrisisTeam = channels.CrisisTeam || requested.CrisisTeam
	}

	return &models.EscalationRecord{
		ID:         t.newID(),
		SessionID:  tx.Session().ID,
		MessageID:  msg.ID,
		Level:      level,
		Reason:     reason,
		Excerpt:    Excerpt(msg.Content, t.excerptLength),
		Timestamp:  tx.Now(),
		Channels:   channels,
		Resolution: models.ResolutionPending,
	}
}

// Hand queues rec with the dispatcher. On failure rec is marked failed and a
// NotificationDispatchFailed error is returned; session state is left as is.
// The session change is already committed, so cancellation of ctx is ignored.
func (t *Trigger) Hand(ctx context.Context, rec *models.EscalationRecord) error {
	ctx = context.WithoutCancel(ctx)
	t.metrics.EscalationRaised(ctx, string(rec.Level))

	log := t.log.WithSessionID(rec.SessionID)

	var err error
	if t.dispatcher == nil {
		err = fmt.Errorf("no notification dispatcher configured")
	} else {
		err = t.dispatcher.Dispatch(ctx, *rec)
	}
	if err != nil {
		rec.Resolution = models.ResolutionFailed
		log.Alert("Crisis notification could not be dispatched",
			"escalationId", rec.ID,
			"messageId", rec.MessageID,
			"level", rec.Level,
			"error", err.Error(),
		)
		return apperrors.NotificationDispatchFailed(rec.ID, err)
	}

	log.Info("Escalation queued for notification",
		"escalationId", rec.ID,
		"messageId", rec.MessageID,
		"level", rec.Level,
		"reason", rec.Reason,
	)
	return nil
}

// Escalate escalates a session outside the ingestion pipeline, taking its own
// session scope. The session state change is committed even when the
// hand-off fails; that failure comes back as NotificationDispatchFailed
// together with the record.
func (t *Trigger) Escalate(ctx context.Context, sessionID string, level models.CrisisLevel, excerptSource string) (models.EscalationRecord, error) {
	if !Escalates(level) {
		return models.EscalationRecord{}, apperrors.InvalidInput("crisis level %q does not escalate", level)
	}

	var (
		rec     *models.EscalationRecord
		handErr error
	)
	_, err := t.store.Update(ctx, sessionID, func(tx session.Tx) error {
		tx.RaiseCrisisLevel(level)
		rec = t.Apply(tx, models.ChatMessage{Content: excerptSource, CrisisLevel: level}, crisis.Assessment{Level: level})
		tx.OnCommit(func() { handErr = t.Hand(ctx, rec) })
		return nil
	})
	if err != nil {
		return models.EscalationRecord{}, err
	}
	return *rec, handErr
}
