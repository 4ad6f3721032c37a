// Package collector provides a reference collection endpoint. It accepts
// the transport's batch envelope, remembers what it received, and can be
// scripted to fail, which makes it the standard harness for transport
// tests, examples, and local development.
package collector

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/telemetrykit/beacon/pkg/beacon"
)

// envelope is the wire shape posted by the transport.
type envelope struct {
	Events []beacon.Record `json:"events"`
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// Collector is an in-memory collection endpoint.
type Collector struct {
	logger *slog.Logger

	mu         sync.Mutex
	batches    [][]beacon.Record
	failNext   int
	failStatus int
}

// New creates a Collector and applies opts.
func New(opts ...Option) *Collector {
	c := &Collector{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Router returns the HTTP routes:
//
//	POST /v1/events  accept a batch envelope
//	GET  /healthz    liveness probe
func (c *Collector) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/v1/events", c.handleEvents)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// FailNext scripts the next n batch requests to be rejected with status.
// Used to exercise retry and breaker behavior.
func (c *Collector) FailNext(n, status int) {
	c.mu.Lock()
	c.failNext = n
	c.failStatus = status
	c.mu.Unlock()
}

// Batches returns a copy of every accepted batch, in arrival order.
func (c *Collector) Batches() [][]beacon.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]beacon.Record, len(c.batches))
	for i, b := range c.batches {
		batch := make([]beacon.Record, len(b))
		copy(batch, b)
		out[i] = batch
	}
	return out
}

// Events returns every accepted record across all batches, in arrival order.
func (c *Collector) Events() []beacon.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []beacon.Record
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *Collector) handleEvents(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	if c.failNext > 0 {
		c.failNext--
		status := c.failStatus
		c.mu.Unlock()
		if status == 0 {
			status = http.StatusInternalServerError
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	c.mu.Unlock()

	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(r.Context(), "invalid batch payload", "error", err.Error())
		}
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	c.batches = append(c.batches, env.Events)
	total := len(c.batches)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.InfoContext(r.Context(), "batch accepted",
			"events", len(env.Events),
			"batches_total", total,
		)
	}
	w.WriteHeader(http.StatusAccepted)
}
