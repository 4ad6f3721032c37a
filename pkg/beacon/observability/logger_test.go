package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLogger returns a debug-level JSON logger writing to buf.
func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, buf
}

// lastEntry decodes the final JSON log line in buf.
func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestNilLoggerTolerance(t *testing.T) {
	// Every helper must be callable without a logger.
	assert.Nil(t, EnrichLogger(nil, "navigation", "page_view"))
	LogEventRejected(nil, "navigation", "page_view")
	LogEventBuffered(nil, "navigation", "page_view", 1)
	LogConsentGranted(nil, 0)
	LogFlushStart(nil, 1, 100, 0)
	LogFlushComplete(nil, 1, 5)
	LogFlushError(nil, 1, errors.New("boom"), true)
	LogBreakerTransition(nil, "breaker_open", 6)
	LogRatchetChange(nil, "performance_score", 0.8, 0.92)
}

func TestEnrichLogger(t *testing.T) {
	logger, buf := newTestLogger()

	EnrichLogger(logger, "engagement", "cta_click").Info("hello")

	entry := lastEntry(t, buf)
	assert.Equal(t, "engagement", entry["category"])
	assert.Equal(t, "cta_click", entry["action"])
}

func TestLogHelpers(t *testing.T) {
	t.Run("event rejected", func(t *testing.T) {
		logger, buf := newTestLogger()
		LogEventRejected(logger, "bogus", "page_view")

		entry := lastEntry(t, buf)
		assert.Equal(t, "DEBUG", entry["level"])
		assert.Equal(t, "bogus", entry["category"])
	})

	t.Run("event buffered", func(t *testing.T) {
		logger, buf := newTestLogger()
		LogEventBuffered(logger, "navigation", "page_view", 12)

		entry := lastEntry(t, buf)
		assert.Equal(t, float64(12), entry["buffered"])
	})

	t.Run("consent granted", func(t *testing.T) {
		logger, buf := newTestLogger()
		LogConsentGranted(logger, 3)

		entry := lastEntry(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, float64(3), entry["replayed"])
	})

	t.Run("flush lifecycle", func(t *testing.T) {
		logger, buf := newTestLogger()
		LogFlushStart(logger, 5, 2048, 7)
		LogFlushComplete(logger, 5, 42.5)

		entry := lastEntry(t, buf)
		assert.Equal(t, float64(5), entry["batch_size"])
		assert.Equal(t, 42.5, entry["duration_ms"])
	})

	t.Run("flush error", func(t *testing.T) {
		logger, buf := newTestLogger()
		LogFlushError(logger, 5, errors.New("connection refused"), true)

		entry := lastEntry(t, buf)
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "connection refused", entry["error"])
		assert.Equal(t, true, entry["requeued"])
	})

	t.Run("breaker transition", func(t *testing.T) {
		logger, buf := newTestLogger()
		LogBreakerTransition(logger, "breaker_open", 6)

		entry := lastEntry(t, buf)
		assert.Equal(t, "breaker_open", entry["state"])
		assert.Equal(t, float64(6), entry["consecutive_failures"])
	})

	t.Run("ratchet change", func(t *testing.T) {
		logger, buf := newTestLogger()
		LogRatchetChange(logger, "performance_score", 0.8, 0.92)

		entry := lastEntry(t, buf)
		assert.Equal(t, "performance_score", entry["metric"])
		assert.Equal(t, 0.92, entry["to"])
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	elapsed := done()
	assert.GreaterOrEqual(t, elapsed, float64(0))
}
