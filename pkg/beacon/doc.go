/*
Package beacon provides batched analytics delivery with consent gating,
PII sanitization, and circuit breaking.

# Overview

beacon is a Go library for shipping product analytics events to a
collection endpoint. Events pass through a fixed taxonomy allow-list and a
metadata sanitizer, land in an observable in-memory data layer, and are
delivered in batches by a transport that retries transient failures with
exponential backoff and opens a circuit breaker when the endpoint stays
down.

The library favors containment over guarantees: tracking calls never
block, never throw, and never surface network state to the caller. The
worst failure mode is "stop sending for a while", reported through the
pipeline itself as telemetry events.

# Basic Usage

Construct a transport and a tracker, grant consent, and track:

	tr := transport.New(transport.Config{
	    Endpoint: "https://collect.example.com/v1/events",
	    Enabled:  true,
	})

	tracker := beacon.New(
	    beacon.WithTransport(tr),
	)
	tracker.SetConsent(true)

	tracker.Track(beacon.Event{
	    Category: beacon.CategoryNavigation,
	    Action:   beacon.ActionPageView,
	    Metadata: map[string]any{"path": "/pricing"},
	})

	// On shutdown, make a best-effort final send.
	_ = tracker.Close(context.Background())

Events tracked before consent is granted are buffered in memory and
replayed in order once SetConsent(true) is called.

# Subpackages

  - transport: batching, retry/backoff, circuit breaker
  - sanitize: email redaction, depth capping, cycle breaking
  - metadata: the tagged-union metadata value type
  - ratchet: guarded tightening of stored performance budgets
  - collector: a reference collection endpoint for tests and examples
  - observability: slog helpers plus OpenTelemetry metrics and tracing
  - config: yaml/json settings loading
  - errors: the pipeline failure taxonomy and retry helpers
*/
package beacon
