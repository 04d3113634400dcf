// Package notify delivers escalation records to the people and systems that
// act on them: specialist routing, emergency integrations and the audit outbox.
package notify

import (
	"context"
	"time"

	"crisis-chat/backend/internal/models"
)

// Notifier is one delivery channel for escalation records.
// Notify must return once the receiving side has acknowledged the record.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, rec models.EscalationRecord) error
}

// Delivery is the outcome of handing one record to one sink
type Delivery struct {
	Sink     string        `json:"sink"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Result is reported once every sink has been tried for a record
type Result struct {
	Record     models.EscalationRecord
	Deliveries []Delivery
}

// Failed returns the deliveries that did not succeed
func (r Result) Failed() []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc struct {
	SinkName string
	Fn       func(ctx context.Context, rec models.EscalationRecord) error
}

// Name returns the sink name
func (f NotifierFunc) Name() string { return f.SinkName }

// Notify calls Fn
func (f NotifierFunc) Notify(ctx context.Context, rec models.EscalationRecord) error {
	return f.Fn(ctx, rec)
}
