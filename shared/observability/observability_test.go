package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecording(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.MessageIngested(ctx, "critical", 20*time.Millisecond)
	m.MessageIngested(ctx, "low", time.Millisecond)
	m.EscalationRaised(ctx, "critical")
	m.NotificationResult(ctx, "log", "dispatched")
	m.NotificationResult(ctx, "webhook", "failed")
	m.InvariantViolation(ctx)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["chat_messages_ingested_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["chat_escalations_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["chat_notifications_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["chat_store_invariant_violations_total"]))

	hist, ok := got["chat_ingest_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	require.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.EscalationRaised(context.Background(), "high")
	})
}

func TestPrometheusHandler(t *testing.T) {
	provider, err := SetupPrometheusMetrics("crisis-chat-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider)
	require.NoError(t, err)
	m.EscalationRaised(context.Background(), "critical")

	srv := httptest.NewServer(provider.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chat_escalations_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing("crisis-chat-test", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
