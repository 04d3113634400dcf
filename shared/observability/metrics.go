package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "crisis-chat"

// Metrics are the instruments recorded by the chat engine
type Metrics struct {
	messages      metric.Int64Counter
	escalations   metric.Int64Counter
	notifications metric.Int64Counter
	ingestLatency metric.Float64Histogram
	violations    metric.Int64Counter
}

// NewMetrics registers the chat engine instruments on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.messages, err = meter.Int64Counter("chat_messages_ingested_total",
		metric.WithDescription("Messages accepted by the ingestion pipeline, by crisis level")); err != nil {
		return nil, err
	}
	if m.escalations, err = meter.Int64Counter("chat_escalations_total",
		metric.WithDescription("Escalation records produced, by crisis level")); err != nil {
		return nil, err
	}
	if m.notifications, err = meter.Int64Counter("chat_notifications_total",
		metric.WithDescription("Escalation notification outcomes, by sink and result")); err != nil {
		return nil, err
	}
	if m.ingestLatency, err = meter.Float64Histogram("chat_ingest_duration_seconds",
		metric.WithDescription("Time spent in the ingestion pipeline"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.violations, err = meter.Int64Counter("chat_store_invariant_violations_total",
		metric.WithDescription("Session store invariant violations")); err != nil {
		return nil, err
	}
	return m, nil
}

// NopMetrics records nothing
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// MessageIngested counts one accepted message
func (m *Metrics) MessageIngested(ctx context.Context, level string, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("level", level))
	m.messages.Add(ctx, 1, attrs)
	m.ingestLatency.Record(ctx, took.Seconds(), attrs)
}

// EscalationRaised counts one escalation record
func (m *Metrics) EscalationRaised(ctx context.Context, level string) {
	m.escalations.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// NotificationResult counts a delivery outcome; result is "dispatched", "failed" or "rejected"
func (m *Metrics) NotificationResult(ctx context.Context, sink, result string) {
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.String("result", result),
	))
}

// InvariantViolation counts a fatal store error
func (m *Metrics) InvariantViolation(ctx context.Context) {
	m.violations.Add(ctx, 1)
}
