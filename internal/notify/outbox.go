package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"crisis-chat/backend/internal/models"
)

// OutboxEntry is one escalation persisted for the audit trail and for
// relays that poll the database
type OutboxEntry struct {
	ID          string    `gorm:"type:varchar(64);primaryKey"`
	SessionID   string    `gorm:"type:varchar(64);index;not null"`
	MessageID   string    `gorm:"type:varchar(64)"`
	Level       string    `gorm:"type:varchar(16);not null"`
	Reason      string    `gorm:"type:varchar(255)"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"not null"`
	PublishedAt *time.Time
}

// TableName overrides the table name used by OutboxEntry
func (OutboxEntry) TableName() string {
	return "escalation_outbox"
}

// OutboxNotifier writes escalations to the Postgres outbox table
type OutboxNotifier struct {
	db *gorm.DB
}

// NewOutboxNotifier creates an OutboxNotifier
func NewOutboxNotifier(db *gorm.DB) *OutboxNotifier {
	return &OutboxNotifier{db: db}
}

// Migrate creates or updates the outbox table
func (n *OutboxNotifier) Migrate() error {
	return n.db.AutoMigrate(&OutboxEntry{})
}

func (n *OutboxNotifier) Name() string { return "outbox" }

func (n *OutboxNotifier) Notify(ctx context.Context, rec models.EscalationRecord) error {
	entry, err := newOutboxEntry(rec)
	if err != nil {
		return err
	}
	if err := n.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write escalation outbox: %w", err)
	}
	return nil
}

func newOutboxEntry(rec models.EscalationRecord) (OutboxEntry, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("failed to marshal escalation: %w", err)
	}
	return OutboxEntry{
		ID:        rec.ID,
		SessionID: rec.SessionID,
		MessageID: rec.MessageID,
		Level:     string(rec.Level),
		Reason:    rec.Reason,
		Payload:   string(payload),
		CreatedAt: rec.Timestamp,
	}, nil
}
