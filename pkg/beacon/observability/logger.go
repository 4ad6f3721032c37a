// Package observability provides structured logging, metrics, and tracing
// for the beacon pipeline.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
// Returns a new logger with category and action fields.
func EnrichLogger(logger *slog.Logger, category, action string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("category", category),
		slog.String("action", action),
	)
}

// LogEventRejected logs a silently dropped event.
func LogEventRejected(logger *slog.Logger, category, action string) {
	if logger == nil {
		return
	}
	logger.Debug("event rejected by taxonomy",
		slog.String("category", category),
		slog.String("action", action),
	)
}

// LogEventBuffered logs an event held in the pre-consent buffer.
func LogEventBuffered(logger *slog.Logger, category, action string, buffered int) {
	if logger == nil {
		return
	}
	logger.Debug("event buffered pending consent",
		slog.String("category", category),
		slog.String("action", action),
		slog.Int("buffered", buffered),
	)
}

// LogConsentGranted logs the pre-consent buffer replay.
func LogConsentGranted(logger *slog.Logger, replayed int) {
	if logger == nil {
		return
	}
	logger.Info("analytics consent granted",
		slog.Int("replayed", replayed),
	)
}

// LogFlushStart logs the start of a batch flush.
func LogFlushStart(logger *slog.Logger, batchSize, batchBytes, queued int) {
	if logger == nil {
		return
	}
	logger.Debug("flush starting",
		slog.Int("batch_size", batchSize),
		slog.Int("batch_bytes", batchBytes),
		slog.Int("queued", queued),
	)
}

// LogFlushComplete logs a successful batch delivery.
func LogFlushComplete(logger *slog.Logger, batchSize int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("flush completed",
		slog.Int("batch_size", batchSize),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFlushError logs a failed batch delivery.
func LogFlushError(logger *slog.Logger, batchSize int, err error, requeued bool) {
	if logger == nil {
		return
	}
	logger.Warn("flush failed",
		slog.Int("batch_size", batchSize),
		slog.String("error", err.Error()),
		slog.Bool("requeued", requeued),
	)
}

// LogBreakerTransition logs a circuit breaker state change.
func LogBreakerTransition(logger *slog.Logger, state string, consecutiveFailures int) {
	if logger == nil {
		return
	}
	logger.Info("circuit breaker transition",
		slog.String("state", state),
		slog.Int("consecutive_failures", consecutiveFailures),
	)
}

// LogRatchetChange logs an applied budget tightening.
func LogRatchetChange(logger *slog.Logger, metric string, from, to float64) {
	if logger == nil {
		return
	}
	logger.Info("budget ratchet applied",
		slog.String("metric", metric),
		slog.Float64("from", from),
		slog.Float64("to", to),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
