package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/pkg/logger"
)

type memorySink struct {
	name string
	mu   sync.Mutex
	got  []models.EscalationRecord
	err  error
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Notify(_ context.Context, rec models.EscalationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, rec)
	return nil
}

func (s *memorySink) records() []models.EscalationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EscalationRecord(nil), s.got...)
}

func record(sessionID string, n int) models.EscalationRecord {
	return models.EscalationRecord{
		ID:         fmt.Sprintf("%s-esc-%d", sessionID, n),
		SessionID:  sessionID,
		Level:      models.CrisisCritical,
		Resolution: models.ResolutionPending,
	}
}

func TestDispatcherPreservesPerSessionOrder(t *testing.T) {
	sink := &memorySink{name: "memory"}
	d := NewDispatcher(Config{Workers: 3, QueueSize: 100}, []Notifier{sink}, logger.Nop(), nil)
	d.Start()

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		require.NoError(t, d.Dispatch(ctx, record("a", i)))
		require.NoError(t, d.Dispatch(ctx, record("b", i)))
	}
	d.Close()

	got := sink.records()
	require.Len(t, got, 60)

	next := map[string]int{}
	for _, rec := range got {
		assert.Equal(t, fmt.Sprintf("%s-esc-%d", rec.SessionID, next[rec.SessionID]), rec.ID)
		next[rec.SessionID]++
	}
}

func TestDispatcherReportsResults(t *testing.T) {
	ok := &memorySink{name: "ok"}
	broken := &memorySink{name: "broken", err: errors.New("unreachable")}
	d := NewDispatcher(Config{Workers: 1}, []Notifier{ok, broken}, logger.Nop(), nil)

	results := make(chan Result, 1)
	d.OnResult(func(r Result) { results <- r })
	d.Start()
	defer d.Close()

	require.NoError(t, d.Dispatch(context.Background(), record("s", 1)))

	select {
	case r := <-results:
		assert.Equal(t, models.ResolutionDispatched, r.Record.Resolution)
		require.Len(t, r.Deliveries, 2)
		failed := r.Failed()
		require.Len(t, failed, 1)
		assert.Equal(t, "broken", failed[0].Sink)
	case <-time.After(2 * time.Second):
		t.Fatal("no result reported")
	}
}

func TestDispatcherAllSinksFailing(t *testing.T) {
	broken := &memorySink{name: "broken", err: errors.New("down")}
	d := NewDispatcher(Config{Workers: 1}, []Notifier{broken}, logger.Nop(), nil)

	results := make(chan Result, 1)
	d.OnResult(func(r Result) { results <- r })
	d.Start()
	defer d.Close()

	require.NoError(t, d.Dispatch(context.Background(), record("s", 1)))

	select {
	case r := <-results:
		assert.Equal(t, models.ResolutionFailed, r.Record.Resolution)
	case <-time.After(2 * time.Second):
		t.Fatal("no result reported")
	}
}

func TestDispatcherTimesOutSlowSinks(t *testing.T) {
	slow := NotifierFunc{SinkName: "slow", Fn: func(ctx context.Context, _ models.EscalationRecord) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	d := NewDispatcher(Config{Workers: 1, Timeout: 20 * time.Millisecond}, []Notifier{slow}, logger.Nop(), nil)

	results := make(chan Result, 1)
	d.OnResult(func(r Result) { results <- r })
	d.Start()
	defer d.Close()

	require.NoError(t, d.Dispatch(context.Background(), record("s", 1)))

	select {
	case r := <-results:
		require.Len(t, r.Deliveries, 1)
		assert.ErrorIs(t, r.Deliveries[0].Err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("slow sink was not cut off")
	}
}

func TestDispatchQueueFull(t *testing.T) {
	d := NewDispatcher(Config{Workers: 1, QueueSize: 1}, []Notifier{&memorySink{name: "m"}}, logger.Nop(), nil)
	defer d.Close()

	require.NoError(t, d.Dispatch(context.Background(), record("s", 1)))
	err := d.Dispatch(context.Background(), record("s", 2))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatchWithoutSinks(t *testing.T) {
	d := NewDispatcher(Config{}, nil, logger.Nop(), nil)
	assert.ErrorIs(t, d.Dispatch(context.Background(), record("s", 1)), ErrNoSinks)
}

func TestDispatchAfterClose(t *testing.T) {
	d := NewDispatcher(Config{}, []Notifier{&memorySink{name: "m"}}, logger.Nop(), nil)
	d.Start()
	d.Close()

	assert.ErrorIs(t, d.Dispatch(context.Background(), record("s", 1)), ErrDispatcherClosed)
	assert.Equal(t, []string{"m"}, d.SinkNames())
}

func TestDispatchIgnoresCancelledContext(t *testing.T) {
	sink := &memorySink{name: "memory"}
	d := NewDispatcher(Config{Workers: 1, QueueSize: 4}, []Notifier{sink}, logger.Nop(), nil)
	d.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Dispatch(ctx, record("s", 1)))

	d.Close()
	assert.Len(t, sink.records(), 1)
}
