package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the beacon tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("beacon")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartFlushSpan starts a span for a queue flush.
	StartFlushSpan(ctx context.Context, batchSize, queued int) (context.Context, trace.Span)

	// StartSendSpan starts a span for a single delivery attempt.
	// The send span should be a child of the flush span.
	StartSendSpan(ctx context.Context, endpoint string, attempt int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartFlushSpan starts a span for a queue flush.
func (m *otelSpanManager) StartFlushSpan(ctx context.Context, batchSize, queued int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "beacon.flush",
		trace.WithAttributes(
			attribute.Int("batch.size", batchSize),
			attribute.Int("queue.depth", queued),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartSendSpan starts a span for a single delivery attempt.
func (m *otelSpanManager) StartSendSpan(ctx context.Context, endpoint string, attempt int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "beacon.send",
		trace.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.Int("attempt", attempt),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
