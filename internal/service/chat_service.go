package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"crisis-chat/backend/internal/access"
	"crisis-chat/backend/internal/crisis"
	"crisis-chat/backend/internal/escalation"
	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/internal/session"
	apperrors "crisis-chat/backend/pkg/errors"
	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/shared/observability"
)

const tracerName = "crisis-chat/internal/service"

// IngestInput is one inbound message as delivered by a transport
type IngestInput struct {
	Content     string
	SessionID   string
	SenderID    string
	SenderName  string
	SenderType  models.ParticipantType
	IsAnonymous bool
	MessageType models.MessageType
	ReplyToID   string
	Metadata    models.Metadata
	Language    string
}

// IngestResult is what a transport relays back to the client.
// NotificationErr is set when the escalation could not be handed off; the
// message and session state are committed regardless.
type IngestResult struct {
	Message         models.ChatMessage       `json:"message"`
	Session         models.SessionSummary    `json:"session"`
	Escalation      *models.EscalationRecord `json:"escalation,omitempty"`
	NotificationErr error                    `json:"-"`
}

// Options tune the chat service
type Options struct {
	MaxContentLength int
	DefaultLanguage  string
}

// ChatService runs the message ingestion pipeline and the guarded read and
// update operations around it
type ChatService struct {
	store      session.Store
	classifier *crisis.Classifier
	trigger    *escalation.Trigger
	guard      *access.Guard
	log        *logger.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer
	opts       Options
}

// NewChatService creates a new chat service
func NewChatService(
	store session.Store,
	classifier *crisis.Classifier,
	trigger *escalation.Trigger,
	guard *access.Guard,
	log *logger.Logger,
	metrics *observability.Metrics,
	opts Options,
) *ChatService {
	if classifier == nil {
		classifier = crisis.NewDefault()
	}
	if guard == nil {
		guard = access.NewGuard()
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	return &ChatService{
		store:      store,
		classifier: classifier,
		trigger:    trigger,
		guard:      guard,
		log:        log,
		metrics:    metrics,
		tracer:     otel.Tracer(tracerName),
		opts:       opts,
	}
}

// Ingest validates, classifies and stores one message. A new session is
// created when in.SessionID is empty. Messages at high or critical level
// always go through the escalation trigger within the same session update.
func (s *ChatService) Ingest(ctx context.Context, in IngestInput) (IngestResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ChatService.Ingest")
	defer span.End()

	in, err := s.normalize(in)
	if err != nil {
		s.fail(span, err)
		return IngestResult{}, err
	}

	assessment := s.classifier.Assess(in.Content)
	if in.MessageType == models.MessageEmergency {
		assessment = emergencyAssessment(assessment)
	}

	var (
		stored    models.ChatMessage
		rec       *models.EscalationRecord
		notifyErr error
	)
	apply := func(tx session.Tx) error {
		if in.ReplyToID != "" && !hasMessage(tx.Session(), in.ReplyToID) {
			return apperrors.InvalidInput("replyToId %s is not part of this session", in.ReplyToID)
		}

		sender := models.Participant{ID: in.SenderID, Name: in.SenderName, Type: in.SenderType, Online: true}
		msg, err := tx.AppendMessage(models.ChatMessage{
			SenderID:    in.SenderID,
			Sender:      sender,
			Content:     in.Content,
			Status:      models.StatusSent,
			Type:        in.MessageType,
			CrisisLevel: assessment.Level,
			Encrypted:   false,
			ReplyToID:   in.ReplyToID,
			Metadata:    in.Metadata,
		})
		if err != nil {
			return err
		}
		stored = msg

		tx.AddParticipant(sender)
		tx.RaiseCrisisLevel(msg.CrisisLevel)

		rec = s.trigger.Apply(tx, msg, assessment)
		if rec != nil {
			tx.OnCommit(func() { notifyErr = s.trigger.Hand(ctx, rec) })
		}
		return nil
	}

	var sess models.ChatSession
	if in.SessionID == "" {
		anonymous := in.IsAnonymous || in.SenderID == ""
		owner := in.SenderID
		if anonymous {
			owner = ""
		}
		sess, err = s.store.CreateSession(ctx, session.CreateOptions{
			OwnerID:   owner,
			Anonymous: anonymous,
			Language:  in.Language,
			Init:      apply,
		})
	} else {
		sess, err = s.store.Update(ctx, in.SessionID, apply)
	}
	if err != nil {
		s.fail(span, err)
		if apperrors.IsFatal(err) {
			s.metrics.InvariantViolation(ctx)
			s.log.WithSessionID(in.SessionID).Alert("Session store invariant violated", "error", err.Error())
		}
		return IngestResult{}, err
	}

	span.SetAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("crisis.level", string(stored.CrisisLevel)),
		attribute.Bool("crisis.escalated", rec != nil),
	)
	s.metrics.MessageIngested(ctx, string(stored.CrisisLevel), time.Since(start))

	s.log.WithSessionID(sess.ID).Info("Message ingested",
		"messageId", stored.ID,
		"type", stored.Type,
		"level", stored.CrisisLevel,
		"sessionLevel", sess.CrisisLevel,
		"status", sess.Status,
	)

	result := IngestResult{
		Message:         stored,
		Session:         sess.Summary(),
		Escalation:      rec,
		NotificationErr: notifyErr,
	}
	if notifyErr != nil {
		span.AddEvent("notification dispatch failed")
	}
	return result, nil
}

// IngestAs is Ingest for a caller that must already have access to the target session
func (s *ChatService) IngestAs(ctx context.Context, actor access.Actor, in IngestInput) (IngestResult, error) {
	if in.SessionID != "" {
		sess, err := s.store.GetSession(ctx, in.SessionID)
		if err != nil {
			return IngestResult{}, err
		}
		if err := s.guard.AuthorizeSession(actor, sess); err != nil {
			return IngestResult{}, err
		}
	}
	in.SenderID = actor.UserID
	return s.Ingest(ctx, in)
}

// GetSession returns the session if actor may see it
func (s *ChatService) GetSession(ctx context.Context, actor access.Actor, sessionID string) (models.ChatSession, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if err := s.guard.AuthorizeSession(actor, sess); err != nil {
		return models.ChatSession{}, err
	}
	return sess, nil
}

// ListMessages returns the session history if actor may see the session
func (s *ChatService) ListMessages(ctx context.Context, actor access.Actor, sessionID string) ([]models.ChatMessage, error) {
	sess, err := s.GetSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

// GetMessage returns one message if actor may see it
func (s *ChatService) GetMessage(ctx context.Context, actor access.Actor, messageID string) (models.ChatMessage, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	sess, err := s.store.GetSession(ctx, msg.SessionID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	if err := s.guard.AuthorizeMessage(actor, sess, msg); err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

// DeleteMessage removes a message. A message that does not exist is not an
// error; a message actor may not touch is.
func (s *ChatService) DeleteMessage(ctx context.Context, actor access.Actor, sessionID, messageID string) error {
	_, err := s.store.Update(ctx, sessionID, func(tx session.Tx) error {
		sess := tx.Session()
		i := indexOf(sess.Messages, messageID)
		if i < 0 {
			return nil
		}
		if err := s.guard.AuthorizeMessage(actor, sess, sess.Messages[i]); err != nil {
			return err
		}
		tx.RemoveMessage(messageID)
		return nil
	})
	if err == nil {
		s.log.WithSessionID(sessionID).Info("Message deleted", "messageId", messageID)
	}
	return err
}

// UpdateStatus moves a message along sending, sent, delivered and read.
// It never moves backwards.
func (s *ChatService) UpdateStatus(ctx context.Context, messageID string, status models.DeliveryStatus, actor access.Actor) (models.ChatMessage, error) {
	if !status.Valid() {
		return models.ChatMessage{}, apperrors.InvalidInput("unknown delivery status %q", status)
	}

	current, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return models.ChatMessage{}, err
	}

	var updated models.ChatMessage
	_, err = s.store.Update(ctx, current.SessionID, func(tx session.Tx) error {
		sess := tx.Session()
		i := indexOf(sess.Messages, messageID)
		if i < 0 {
			return apperrors.MessageNotFound(messageID)
		}
		if err := s.guard.AuthorizeMessage(actor, sess, sess.Messages[i]); err != nil {
			return err
		}
		var uerr error
		updated, uerr = tx.UpdateMessage(messageID, func(m *models.ChatMessage) error {
			if !m.Status.CanTransitionTo(status) {
				return apperrors.InvalidStatusTransition(string(m.Status), string(status))
			}
			m.Status = status
			return nil
		})
		return uerr
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	return updated, nil
}

// UpdateSessionStatus hands a session over or closes it. Emergency status is
// only ever set by the escalation trigger.
func (s *ChatService) UpdateSessionStatus(ctx context.Context, actor access.Actor, sessionID string, status models.SessionStatus) (models.ChatSession, error) {
	if !status.Valid() {
		return models.ChatSession{}, apperrors.InvalidInput("unknown session status %q", status)
	}

	sess, err := s.store.Update(ctx, sessionID, func(tx session.Tx) error {
		current := tx.Session()
		if err := s.guard.AuthorizeSession(actor, current); err != nil {
			return err
		}
		if current.Status == status {
			return nil
		}
		if !canMoveSession(current.Status, status) {
			return apperrors.InvalidStatusTransition(string(current.Status), string(status))
		}
		tx.SetStatus(status)
		return nil
	})
	if err != nil {
		return models.ChatSession{}, err
	}

	s.log.WithSessionID(sessionID).Info("Session status changed", "status", sess.Status)
	return sess, nil
}

// Queue lists sessions for specialists, most urgent first
func (s *ChatService) Queue(ctx context.Context, filter session.ListFilter) ([]models.SessionSummary, error) {
	return s.store.ListSessions(ctx, filter)
}

func (s *ChatService) normalize(in IngestInput) (IngestInput, error) {
	if strings.TrimSpace(in.Content) == "" {
		return in, apperrors.InvalidInput("content is required")
	}
	in.SenderName = strings.TrimSpace(in.SenderName)
	if in.SenderName == "" {
		return in, apperrors.InvalidInput("senderName is required")
	}
	if s.opts.MaxContentLength > 0 && utf8.RuneCountInString(in.Content) > s.opts.MaxContentLength {
		return in, apperrors.InvalidInput("content exceeds %d characters", s.opts.MaxContentLength)
	}

	if in.MessageType == "" {
		in.MessageType = models.MessageText
	}
	if !in.MessageType.Valid() {
		return in, apperrors.InvalidInput("unknown message type %q", in.MessageType)
	}
	if in.SenderType == "" {
		in.SenderType = models.ParticipantClient
	}
	if !in.SenderType.Valid() {
		return in, apperrors.InvalidInput("unknown sender type %q", in.SenderType)
	}
	if err := models.ValidateMetadata(in.MessageType, in.Metadata); err != nil {
		return in, apperrors.InvalidInput("invalid metadata: %v", err)
	}
	if in.Language == "" {
		in.Language = s.opts.DefaultLanguage
	}
	return in, nil
}

func (s *ChatService) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, apperrors.GetErrorCode(err))
}

// emergencyAssessment makes an explicit emergency request critical even when
// its wording matches nothing in the lexicon
func emergencyAssessment(a crisis.Assessment) crisis.Assessment {
	if a.Level == models.CrisisCritical {
		return a
	}
	return crisis.Assessment{Level: models.CrisisCritical, Confidence: 1, Phrase: "emergency request"}
}

// canMoveSession is the manual session lifecycle: closed is final and
// emergency can only be entered through escalation
func canMoveSession(from, to models.SessionStatus) bool {
	if from == models.SessionClosed || to == models.SessionEmergency {
		return false
	}
	switch to {
	case models.SessionTransferred, models.SessionClosed:
		return true
	case models.SessionActive:
		return from == models.SessionTransferred
	}
	return false
}

func hasMessage(sess models.ChatSession, messageID string) bool {
	return indexOf(sess.Messages, messageID) >= 0
}

func indexOf(messages []models.ChatMessage, messageID string) int {
	for i := range messages {
		if messages[i].ID == messageID {
			return i
		}
	}
	return -1
}
