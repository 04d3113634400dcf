package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/pkg/resilience"
	"crisis-chat/backend/shared/observability"
)

var (
	// ErrQueueFull means the worker for the session has no room left
	ErrQueueFull = errors.New("notification queue full")
	// ErrDispatcherClosed means the dispatcher no longer accepts records
	ErrDispatcherClosed = errors.New("notification dispatcher closed")
	// ErrNoSinks means there is nowhere to deliver records
	ErrNoSinks = errors.New("no notification sinks configured")
)

// Config tunes the dispatcher
type Config struct {
	Workers   int
	QueueSize int
	// Timeout bounds each delivery to each sink
	Timeout time.Duration
	// FailureThreshold and RetryTimeout configure the per-sink circuit breakers
	FailureThreshold uint
	RetryTimeout     time.Duration
}

// DefaultConfig returns the dispatcher defaults
func DefaultConfig() Config {
	return Config{
		Workers:          4,
		QueueSize:        256,
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		RetryTimeout:     30 * time.Second,
	}
}

type sink struct {
	notifier Notifier
	breaker  *resilience.CircuitBreaker
}

type job struct {
	rec      models.EscalationRecord
	queuedAt time.Time
}

// Dispatcher fans escalation records out to sinks on background workers.
// Records of one session always land on the same worker, so they are
// delivered in the order they were queued.
type Dispatcher struct {
	cfg     Config
	sinks   []sink
	shards  []chan job
	log     *logger.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	closed  bool
	started bool
	hooks   []func(Result)
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start before dispatching.
func NewDispatcher(cfg Config, notifiers []Notifier, log *logger.Logger, metrics *observability.Metrics) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = def.RetryTimeout
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}

	d := &Dispatcher{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		shards:  make([]chan job, cfg.Workers),
	}
	for i := range d.shards {
		d.shards[i] = make(chan job, cfg.QueueSize)
	}
	for _, n := range notifiers {
		d.sinks = append(d.sinks, sink{
			notifier: n,
			breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name:             "notify-" + n.Name(),
				FailureThreshold: cfg.FailureThreshold,
				SuccessThreshold: 1,
				Timeout:          cfg.Timeout,
				RetryTimeout:     cfg.RetryTimeout,
			}, log),
		})
	}
	return d
}

// OnResult registers fn to be called after every record has been delivered
// or has failed. Hooks run on worker goroutines.
func (d *Dispatcher) OnResult(fn func(Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// Start launches the workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i, ch := range d.shards {
		d.wg.Add(1)
		go d.worker(i, ch)
	}
	d.log.Info("Notification dispatcher started", "workers", len(d.shards), "sinks", d.SinkNames())
}

// Dispatch queues rec for delivery and returns without waiting for it.
// The enqueue never blocks, so a cancelled ctx does not stop the record.
func (d *Dispatcher) Dispatch(ctx context.Context, rec models.EscalationRecord) error {
	if len(d.sinks) == 0 {
		return ErrNoSinks
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	shard := d.shardFor(rec.SessionID)
	select {
	case d.shards[shard] <- job{rec: rec, queuedAt: time.Now()}:
		return nil
	default:
		d.metrics.NotificationResult(ctx, "queue", "rejected")
		return fmt.Errorf("%w: worker %d", ErrQueueFull, shard)
	}
}

// Close stops accepting records and waits until queued ones are delivered
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
	}
}

// SinkNames lists the configured sinks
func (d *Dispatcher) SinkNames() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.notifier.Name()
	}
	return names
}

// BreakerStats reports the circuit breaker of every sink
func (d *Dispatcher) BreakerStats() []resilience.Stats {
	out := make([]resilience.Stats, len(d.sinks))
	for i, s := range d.sinks {
		out[i] = s.breaker.Stats()
	}
	return out
}

func (d *Dispatcher) shardFor(sessionID string) int {
	return int(xxhash.Sum64String(sessionID) % uint64(len(d.shards)))
}

func (d *Dispatcher) worker(id int, jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.deliver(id, j)
	}
}

func (d *Dispatcher) deliver(worker int, j job) {
	ctx := context.Background()
	log := d.log.WithSessionID(j.rec.SessionID)

	result := Result{Record: j.rec}
	for _, s := range d.sinks {
		start := time.Now()
		err := s.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
			return s.notifier.Notify(ctx, j.rec)
		})
		delivery := Delivery{Sink: s.notifier.Name(), Err: err, Duration: time.Since(start)}
		result.Deliveries = append(result.Deliveries, delivery)

		switch {
		case err == nil:
			d.metrics.NotificationResult(ctx, delivery.Sink, "dispatched")
		case errors.Is(err, resilience.ErrCircuitOpen):
			d.metrics.NotificationResult(ctx, delivery.Sink, "rejected")
		default:
			d.metrics.NotificationResult(ctx, delivery.Sink, "failed")
		}

		if err != nil {
			log.Alert("Crisis notification delivery failed",
				"escalationId", j.rec.ID,
				"sink", delivery.Sink,
				"level", j.rec.Level,
				"worker", worker,
				"error", err.Error(),
			)
		}
	}

	if len(result.Failed()) < len(result.Deliveries) {
		result.Record.Resolution = models.ResolutionDispatched
	} else {
		result.Record.Resolution = models.ResolutionFailed
	}

	log.Debug("Escalation delivered",
		"escalationId", j.rec.ID,
		"resolution", result.Record.Resolution,
		"queued", time.Since(j.queuedAt).String(),
	)

	d.mu.RLock()
	hooks := slices.Clone(d.hooks)
	d.mu.RUnlock()
	for _, hook := range hooks {
		hook(result)
	}
}
