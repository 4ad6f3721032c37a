// Package transport delivers analytics records to a collection endpoint in
// batches, with retry, exponential backoff, and a circuit breaker.
//
// The transport never blocks its caller: Enqueue returns immediately and
// delivery happens on a debounced background flush. At most one flush is in
// flight at a time and at most one flush timer is pending, so bursts of
// events coalesce into batches instead of fanning out into requests.
//
// Failures are contained. A batch that exhausts its retries is returned to
// the head of the queue (FIFO order is preserved relative to later events);
// a 4xx rejection drops the batch; a run of consecutive failures opens the
// breaker, which then allows a single trial send per cooldown window.
// Breaker transitions are reported back into the pipeline as lifecycle
// events.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	beaconerrors "github.com/telemetrykit/beacon/pkg/beacon/errors"
	"github.com/telemetrykit/beacon/pkg/beacon/observability"
)

// Lifecycle event actions reported through the pipeline.
const (
	LifecycleBreakerOpen     = "breaker_open"
	LifecycleBreakerHalfOpen = "breaker_half_open"
	LifecycleBreakerClosed   = "breaker_closed"
	LifecycleQueueOverflow   = "queue_overflow"
)

// LifecycleFunc receives transport lifecycle events (breaker transitions,
// queue overflow). The tracker wires this back into its own Track call so
// the pipeline reports on itself.
type LifecycleFunc func(action string, meta map[string]any)

// Snapshot is a point-in-time diagnostic view of the transport.
type Snapshot struct {
	Endpoint    string          `json:"endpoint"`
	Enabled     bool            `json:"enabled"`
	QueueLength int             `json:"queueLength"`
	InFlight    bool            `json:"inFlight"`
	Breaker     BreakerSnapshot `json:"breaker"`
}

// queuedEvent is one pre-serialized record awaiting delivery.
type queuedEvent struct {
	payload json.RawMessage
	size    int
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(t *Transport) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithSpanManager sets the trace span manager.
func WithSpanManager(s observability.SpanManager) Option {
	return func(t *Transport) {
		if s != nil {
			t.spans = s
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithLifecycleFunc sets the lifecycle event receiver.
func WithLifecycleFunc(fn LifecycleFunc) Option {
	return func(t *Transport) {
		t.lifecycle = fn
	}
}

// WithClock replaces the time source. Used by tests to advance the breaker
// cooldown without sleeping.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) {
		if now != nil {
			t.now = now
		}
	}
}

// Transport batches and delivers records. Construct with New; one instance
// per collection endpoint, owned by the host application.
type Transport struct {
	client    *http.Client
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	lifecycle LifecycleFunc
	now       func() time.Time

	mu       sync.Mutex
	cfg      Config
	queue    []queuedEvent
	inFlight bool
	timer    *time.Timer
	brk      *breaker
	closed   bool
}

// New creates a Transport with cfg (zero fields take defaults) and opts.
func New(cfg Config, opts ...Option) *Transport {
	t := &Transport{
		client:  &http.Client{Timeout: 30 * time.Second},
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		now:     time.Now,
		cfg:     cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.brk = newBreaker(t.cfg.BreakerThreshold, t.cfg.BreakerCooldown, t.now)
	return t
}

// SetLifecycleFunc installs the lifecycle receiver after construction.
// The tracker uses this to break the construction cycle between itself and
// the transport it owns.
func (t *Transport) SetLifecycleFunc(fn LifecycleFunc) {
	t.mu.Lock()
	t.lifecycle = fn
	t.mu.Unlock()
}

// Configure merges partial overrides onto the current configuration.
func (t *Transport) Configure(o Overrides) {
	t.mu.Lock()
	t.cfg = o.apply(t.cfg)
	t.brk.threshold = t.cfg.BreakerThreshold
	t.brk.cooldown = t.cfg.BreakerCooldown
	t.mu.Unlock()
}

// Enqueue appends a record to the outbound queue and schedules a debounced
// flush. It never blocks and never returns an error: marshal failures and
// overflow are logged and dropped.
func (t *Transport) Enqueue(record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		if t.logger != nil {
			t.logger.Warn("dropping unmarshalable record", slog.String("error", err.Error()))
		}
		return
	}

	t.mu.Lock()
	if t.closed || !t.cfg.Enabled || t.cfg.Endpoint == "" {
		t.mu.Unlock()
		return
	}
	overflow := len(t.queue) >= t.cfg.MaxQueueSize
	if !overflow {
		t.queue = append(t.queue, queuedEvent{payload: payload, size: len(payload)})
		t.scheduleFlushLocked()
	}
	depth := len(t.queue)
	endpoint := t.cfg.Endpoint
	t.mu.Unlock()

	t.metrics.RecordQueueDepth(context.Background(), depth)
	if overflow {
		t.fire(LifecycleQueueOverflow, map[string]any{
			"queueLength": depth,
			"endpoint":    endpoint,
		})
	}
}

// Flush drains the front of the queue into a batch and delivers it. It is a
// no-op when the transport is disabled, the queue is empty, another flush is
// already in flight, or the breaker disallows sending (ErrCircuitOpen).
//
// force cancels a pending debounce timer and flushes immediately.
func (t *Transport) Flush(ctx context.Context, force bool) error {
	t.mu.Lock()
	if t.closed || !t.cfg.Enabled || t.cfg.Endpoint == "" {
		t.mu.Unlock()
		return nil
	}
	if force && t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.inFlight || len(t.queue) == 0 {
		t.mu.Unlock()
		return nil
	}

	allowed, probe := t.brk.allow()
	if !allowed {
		t.mu.Unlock()
		return beaconerrors.ErrCircuitOpen
	}

	var probeSnap *BreakerSnapshot
	if probe {
		snap := t.brk.snapshot()
		probeSnap = &snap
	}

	batch, batchBytes := t.drainLocked()
	t.inFlight = true
	queued := len(t.queue)
	cfg := t.cfg
	t.mu.Unlock()

	if probeSnap != nil {
		t.fireBreaker(LifecycleBreakerHalfOpen, *probeSnap, cfg.Endpoint)
	}
	observability.LogFlushStart(t.logger, len(batch), batchBytes, queued)

	flushCtx, span := t.spans.StartFlushSpan(ctx, len(batch), queued)
	done := observability.TimedOperation()
	err := t.sendBatch(flushCtx, cfg, batch, false)
	elapsed := done()
	t.spans.EndSpanWithError(span, err)
	t.metrics.RecordBatch(ctx, len(batch), batchBytes, time.Duration(elapsed)*time.Millisecond, err)

	var transition string
	var transitionSnap BreakerSnapshot

	t.mu.Lock()
	t.inFlight = false
	if err == nil {
		if tr, ok := t.brk.recordSuccess(); ok {
			transition = tr.String()
			transitionSnap = t.brk.snapshot()
		}
	} else {
		if tr, ok := t.brk.recordFailure(); ok {
			transition = tr.String()
			transitionSnap = t.brk.snapshot()
		}
		// 4xx means the endpoint understood the batch and refused it;
		// anything else earns another attempt later, at the head of the
		// queue so ordering holds.
		if !beaconerrors.IsPermanent(err) {
			requeued := make([]queuedEvent, 0, len(batch)+len(t.queue))
			requeued = append(requeued, batch...)
			requeued = append(requeued, t.queue...)
			t.queue = requeued
		}
	}
	if len(t.queue) > 0 {
		t.scheduleFlushLocked()
	}
	depth := len(t.queue)
	endpoint := t.cfg.Endpoint
	t.mu.Unlock()

	if err == nil {
		observability.LogFlushComplete(t.logger, len(batch), elapsed)
	} else {
		observability.LogFlushError(t.logger, len(batch), err, !beaconerrors.IsPermanent(err))
	}
	t.metrics.RecordQueueDepth(ctx, depth)
	if transition != "" {
		t.fireBreaker(transition, transitionSnap, endpoint)
	}
	return err
}

// Close stops the flush timer and, when FlushOnClose is set, makes one
// best-effort attempt per remaining batch. The analog of a page-unload
// beacon: no retries, no guarantees.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	sendable := t.cfg.FlushOnClose && t.cfg.Enabled && t.cfg.Endpoint != ""
	t.mu.Unlock()

	if !sendable {
		return nil
	}

	for {
		t.mu.Lock()
		if t.inFlight || len(t.queue) == 0 {
			t.mu.Unlock()
			return nil
		}
		batch, _ := t.drainLocked()
		cfg := t.cfg
		t.mu.Unlock()

		if err := t.sendBatch(ctx, cfg, batch, true); err != nil {
			return err
		}
	}
}

// Snapshot returns a diagnostic view of the transport for debug tooling.
func (t *Transport) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Endpoint:    t.cfg.Endpoint,
		Enabled:     t.cfg.Enabled,
		QueueLength: len(t.queue),
		InFlight:    t.inFlight,
		Breaker:     t.brk.snapshot(),
	}
}

// scheduleFlushLocked arms the debounce timer. Only one timer is pending at
// a time. Caller holds t.mu.
func (t *Transport) scheduleFlushLocked() {
	if t.timer != nil || t.closed {
		return
	}
	t.timer = time.AfterFunc(t.cfg.FlushInterval, func() {
		t.mu.Lock()
		t.timer = nil
		t.mu.Unlock()
		// Outcome handling and rescheduling happen inside Flush.
		_ = t.Flush(context.Background(), false)
	})
}

// drainLocked pops a batch off the front of the queue, stopping at the
// count limit or when the next event would exceed the byte budget. A single
// oversized event still forms a batch of one so the queue always makes
// progress. Caller holds t.mu.
func (t *Transport) drainLocked() ([]queuedEvent, int) {
	var batch []queuedEvent
	size := 0
	for len(t.queue) > 0 && len(batch) < t.cfg.MaxBatchSize {
		next := t.queue[0]
		if len(batch) > 0 && size+next.size > t.cfg.MaxBatchBytes {
			break
		}
		batch = append(batch, next)
		size += next.size
		t.queue = t.queue[1:]
	}
	return batch, size
}

// sendBatch posts the batch, retrying transient failures with doubling
// backoff. single disables retries (used by Close).
func (t *Transport) sendBatch(ctx context.Context, cfg Config, batch []queuedEvent, single bool) error {
	payload := encodeBatch(batch)

	retryCfg := beaconerrors.RetryConfig{
		MaxAttempts:    cfg.MaxRetries,
		InitialBackoff: cfg.RetryBaseDelay,
		BackoffFactor:  2.0,
	}
	if single {
		retryCfg = beaconerrors.NoRetry
	}

	attempt := 0
	res := beaconerrors.WithRetryContext(ctx, retryCfg, func(ctx context.Context) (struct{}, error) {
		attempt++
		sendCtx, span := t.spans.StartSendSpan(ctx, cfg.Endpoint, attempt)
		err := t.post(sendCtx, cfg.Endpoint, payload)
		t.spans.EndSpanWithError(span, err)
		return struct{}{}, err
	})
	return res.Err
}

// post performs one delivery attempt.
func (t *Transport) post(ctx context.Context, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return beaconerrors.Permanent(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &beaconerrors.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
}

// encodeBatch builds the wire payload {"events":[...]}.
func encodeBatch(batch []queuedEvent) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"events":[`)
	for i, e := range batch {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e.payload)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

// fireBreaker reports a breaker transition through log, metrics, and the
// lifecycle hook.
func (t *Transport) fireBreaker(action string, snap BreakerSnapshot, endpoint string) {
	observability.LogBreakerTransition(t.logger, action, snap.ConsecutiveFailures)
	t.metrics.RecordBreakerTransition(context.Background(), action)
	t.fire(action, map[string]any{
		"consecutiveFailures": snap.ConsecutiveFailures,
		"endpoint":            endpoint,
	})
}

// fire invokes the lifecycle hook if one is installed.
func (t *Transport) fire(action string, meta map[string]any) {
	t.mu.Lock()
	fn := t.lifecycle
	t.mu.Unlock()
	if fn != nil {
		fn(action, meta)
	}
}
