package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs a span-recording tracer provider for the test.
func setupTracingTest(t *testing.T) *tracetest.SpanRecorder {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return recorder
}

func TestFlushSpan(t *testing.T) {
	recorder := setupTracingTest(t)
	m := NewSpanManager()

	ctx, span := m.StartFlushSpan(context.Background(), 10, 25)
	require.NotNil(t, span)

	// The send span nests under the flush span.
	_, sendSpan := m.StartSendSpan(ctx, "http://collect.example.com", 1)
	m.EndSpanWithError(sendSpan, nil)
	m.EndSpanWithError(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "beacon.send", spans[0].Name())
	assert.Equal(t, "beacon.flush", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestEndSpanWithError(t *testing.T) {
	recorder := setupTracingTest(t)
	m := NewSpanManager()

	_, span := m.StartSendSpan(context.Background(), "http://collect.example.com", 2)
	m.EndSpanWithError(span, errors.New("connection refused"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "connection refused", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1, "error should be recorded as a span event")

	t.Run("nil span is tolerated", func(t *testing.T) {
		m.EndSpanWithError(nil, errors.New("ignored"))
	})
}

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()

	t.Run("metrics", func(t *testing.T) {
		var m MetricsRecorder = NoopMetrics{}
		m.RecordEvent(ctx, "navigation", true)
		m.RecordBatch(ctx, 1, 100, 0, nil)
		m.RecordBreakerTransition(ctx, "breaker_open")
		m.RecordQueueDepth(ctx, 3)
	})

	t.Run("spans", func(t *testing.T) {
		var s SpanManager = NoopSpanManager{}
		spanCtx, span := s.StartFlushSpan(ctx, 1, 0)
		assert.Equal(t, ctx, spanCtx, "noop must not derive a new context")
		s.EndSpanWithError(span, errors.New("ignored"))

		_, sendSpan := s.StartSendSpan(ctx, "http://example.com", 1)
		s.EndSpanWithError(sendSpan, nil)
	})
}
