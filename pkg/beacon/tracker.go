package beacon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telemetrykit/beacon/pkg/beacon/observability"
	"github.com/telemetrykit/beacon/pkg/beacon/sanitize"
	"github.com/telemetrykit/beacon/pkg/beacon/transport"
)

// DefaultPreConsentLimit caps the pre-consent buffer. When full, the oldest
// buffered event is dropped first.
const DefaultPreConsentLimit = 1000

// Option configures a Tracker.
type Option func(*Tracker)

// WithTaxonomy replaces the event allow-list.
func WithTaxonomy(tx Taxonomy) Option {
	return func(t *Tracker) {
		if tx != nil {
			t.taxonomy = tx
		}
	}
}

// WithSanitizer replaces the metadata sanitizer.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(t *Tracker) {
		if s != nil {
			t.sanitizer = s
		}
	}
}

// WithSink replaces the default in-memory data layer.
func WithSink(s Sink) Option {
	return func(t *Tracker) {
		if s != nil {
			t.sink = s
		}
	}
}

// WithTransport attaches a delivery transport. The tracker installs itself
// as the transport's lifecycle receiver so breaker transitions flow back
// through Track.
func WithTransport(tr *transport.Transport) Option {
	return func(t *Tracker) {
		t.transport = tr
	}
}

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(t *Tracker) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithConsent sets the initial consent state (default: not granted).
func WithConsent(granted bool) Option {
	return func(t *Tracker) {
		t.consent = granted
	}
}

// WithPreConsentLimit caps the pre-consent buffer.
func WithPreConsentLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.bufferLimit = n
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIDFunc replaces the event ID generator, for tests.
func WithIDFunc(fn func() string) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// Tracker validates, sanitizes, and dispatches analytics events. Construct
// with New; the host application owns the instance and its transport.
type Tracker struct {
	taxonomy  Taxonomy
	sanitizer *sanitize.Sanitizer
	sink      Sink
	transport *transport.Transport
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	now       func() time.Time
	newID     func() string

	mu          sync.Mutex
	consent     bool
	buffer      []Record
	bufferLimit int
}

// Diagnostics is a point-in-time view for debug tooling.
type Diagnostics struct {
	Consent   bool                `json:"consent"`
	Buffered  int                 `json:"buffered"`
	Transport *transport.Snapshot `json:"transport,omitempty"`
}

// New creates a Tracker with the default taxonomy, sanitizer, and data
// layer, then applies opts.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		taxonomy:    DefaultTaxonomy(),
		sanitizer:   sanitize.New(),
		sink:        NewDataLayer(),
		metrics:     observability.NoopMetrics{},
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		bufferLimit: DefaultPreConsentLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.transport != nil {
		t.transport.SetLifecycleFunc(t.trackLifecycle)
	}
	return t
}

// Track validates and dispatches an event. Fire-and-forget: malformed or
// unknown events are dropped without error, and no network state ever
// propagates back to the caller.
func (t *Tracker) Track(e Event) {
	ctx := context.Background()
	if !t.taxonomy.Allows(e.Category, e.Action) {
		observability.LogEventRejected(t.logger, string(e.Category), string(e.Action))
		t.metrics.RecordEvent(ctx, string(e.Category), false)
		return
	}
	t.metrics.RecordEvent(ctx, string(e.Category), true)

	priority := e.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	rec := Record{
		EventID:       t.newID(),
		EventCategory: e.Category,
		EventAction:   e.Action,
		EventLabel:    e.Label,
		EventValue:    e.Value,
		Priority:      priority,
		Metadata:      t.sanitizer.Sanitize(e.Metadata),
		Timestamp:     t.now().UTC(),
	}

	t.mu.Lock()
	if !t.consent {
		if len(t.buffer) >= t.bufferLimit {
			t.buffer = t.buffer[1:]
		}
		t.buffer = append(t.buffer, rec)
		buffered := len(t.buffer)
		t.mu.Unlock()
		observability.LogEventBuffered(t.logger, string(e.Category), string(e.Action), buffered)
		return
	}
	t.mu.Unlock()

	t.dispatch(rec)
}

// SetConsent updates the consent flag. Granting consent replays the
// pre-consent buffer in original order; revoking returns the tracker to
// buffering mode (already-dispatched events are not recalled).
func (t *Tracker) SetConsent(granted bool) {
	t.mu.Lock()
	if t.consent == granted {
		t.mu.Unlock()
		return
	}
	t.consent = granted
	var replay []Record
	if granted {
		replay = t.buffer
		t.buffer = nil
	}
	t.mu.Unlock()

	if granted {
		observability.LogConsentGranted(t.logger, len(replay))
		for _, rec := range replay {
			t.dispatch(rec)
		}
	}
}

// HasConsent reports whether analytics consent is currently granted.
func (t *Tracker) HasConsent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consent
}

// Flush forces an immediate transport flush. No-op without a transport.
func (t *Tracker) Flush(ctx context.Context) error {
	if t.transport == nil {
		return nil
	}
	return t.transport.Flush(ctx, true)
}

// Close shuts down the transport, making a best-effort final send when the
// transport is configured to flush on close.
func (t *Tracker) Close(ctx context.Context) error {
	if t.transport == nil {
		return nil
	}
	return t.transport.Close(ctx)
}

// Diagnostics returns queue length, breaker state, endpoint, and consent
// state for debug tooling.
func (t *Tracker) Diagnostics() Diagnostics {
	t.mu.Lock()
	d := Diagnostics{
		Consent:  t.consent,
		Buffered: len(t.buffer),
	}
	t.mu.Unlock()
	if t.transport != nil {
		snap := t.transport.Snapshot()
		d.Transport = &snap
	}
	return d
}

// dispatch pushes an accepted record to the sink and, when a transport is
// attached, enqueues it for delivery. Called without t.mu held.
func (t *Tracker) dispatch(rec Record) {
	t.sink.Push(rec)
	if t.transport != nil {
		t.transport.Enqueue(rec)
	}
}

// trackLifecycle feeds transport lifecycle events back into the pipeline as
// telemetry-category events.
func (t *Tracker) trackLifecycle(action string, meta map[string]any) {
	t.Track(Event{
		Category: CategoryTelemetry,
		Action:   Action(action),
		Metadata: meta,
		Priority: PriorityHigh,
	})
}
