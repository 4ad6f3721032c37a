package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEvent records an event entering the pipeline and whether the
	// taxonomy accepted it.
	RecordEvent(ctx context.Context, category string, accepted bool)

	// RecordBatch records a batch delivery attempt with its outcome.
	RecordBatch(ctx context.Context, size, bytes int, duration time.Duration, err error)

	// RecordBreakerTransition records a circuit breaker state change.
	RecordBreakerTransition(ctx context.Context, state string)

	// RecordQueueDepth records the outbound queue length after a change.
	RecordQueueDepth(ctx context.Context, depth int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsTracked      metric.Int64Counter
	eventsRejected     metric.Int64Counter
	batchesSent        metric.Int64Counter
	batchErrors        metric.Int64Counter
	batchLatency       metric.Float64Histogram
	batchBytes         metric.Int64Histogram
	breakerTransitions metric.Int64Counter
	queueDepth         metric.Int64Gauge
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("beacon")

	eventsTracked, err := meter.Int64Counter("beacon.events.tracked",
		metric.WithDescription("Number of events accepted into the pipeline"),
	)
	if err != nil {
		return nil, err
	}

	eventsRejected, err := meter.Int64Counter("beacon.events.rejected",
		metric.WithDescription("Number of events rejected by taxonomy validation"),
	)
	if err != nil {
		return nil, err
	}

	batchesSent, err := meter.Int64Counter("beacon.batches.sent",
		metric.WithDescription("Number of batches delivered successfully"),
	)
	if err != nil {
		return nil, err
	}

	batchErrors, err := meter.Int64Counter("beacon.batches.errors",
		metric.WithDescription("Number of batch deliveries that failed"),
	)
	if err != nil {
		return nil, err
	}

	batchLatency, err := meter.Float64Histogram("beacon.batch.latency_ms",
		metric.WithDescription("Batch delivery latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	batchBytes, err := meter.Int64Histogram("beacon.batch.size_bytes",
		metric.WithDescription("Batch payload size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	breakerTransitions, err := meter.Int64Counter("beacon.breaker.transitions",
		metric.WithDescription("Number of circuit breaker state transitions"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Gauge("beacon.queue.depth",
		metric.WithDescription("Outbound queue length"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventsTracked:      eventsTracked,
		eventsRejected:     eventsRejected,
		batchesSent:        batchesSent,
		batchErrors:        batchErrors,
		batchLatency:       batchLatency,
		batchBytes:         batchBytes,
		breakerTransitions: breakerTransitions,
		queueDepth:         queueDepth,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()),
		)
		return NoopMetrics{}
	}
	return m
}

// RecordEvent records an event entering the pipeline.
func (m *otelMetrics) RecordEvent(ctx context.Context, category string, accepted bool) {
	attrs := metric.WithAttributes(attribute.String("category", category))
	if accepted {
		m.eventsTracked.Add(ctx, 1, attrs)
	} else {
		m.eventsRejected.Add(ctx, 1, attrs)
	}
}

// RecordBatch records a batch delivery attempt.
func (m *otelMetrics) RecordBatch(ctx context.Context, size, bytes int, duration time.Duration, err error) {
	m.batchLatency.Record(ctx, float64(duration.Milliseconds()))
	m.batchBytes.Record(ctx, int64(bytes))
	if err != nil {
		m.batchErrors.Add(ctx, 1)
		return
	}
	m.batchesSent.Add(ctx, 1, metric.WithAttributes(attribute.Int("batch.size", size)))
}

// RecordBreakerTransition records a breaker state change.
func (m *otelMetrics) RecordBreakerTransition(ctx context.Context, state string) {
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordQueueDepth records the outbound queue length.
func (m *otelMetrics) RecordQueueDepth(ctx context.Context, depth int) {
	m.queueDepth.Record(ctx, int64(depth))
}
