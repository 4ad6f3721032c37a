package collector_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/telemetrykit/beacon/pkg/beacon"
	"github.com/telemetrykit/beacon/pkg/beacon/collector"
	"github.com/telemetrykit/beacon/pkg/beacon/transport"
)

func TestCollectorAcceptsBatches(t *testing.T) {
	c := collector.New()
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	body := `{"events":[
		{"eventId":"1","eventCategory":"navigation","eventAction":"page_view","timestamp":"2026-03-01T08:00:00Z"},
		{"eventId":"2","eventCategory":"engagement","eventAction":"cta_click","metadata":{"cta":"hero"},"timestamp":"2026-03-01T08:00:01Z"}
	]}`
	resp, err := http.Post(srv.URL+"/v1/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	batches := c.Batches()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batches = %v, want one batch of two", batches)
	}
	events := c.Events()
	if events[0].EventID != "1" || events[1].EventAction != beacon.ActionCTAClick {
		t.Errorf("events = %+v", events)
	}
	if got := events[1].Metadata["cta"].StringVal(); got != "hero" {
		t.Errorf("metadata cta = %q", got)
	}
}

func TestCollectorRejectsBadJSON(t *testing.T) {
	c := collector.New()
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/events", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if got := len(c.Batches()); got != 0 {
		t.Errorf("batches = %d, want 0", got)
	}
}

func TestCollectorScriptedFailures(t *testing.T) {
	c := collector.New()
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	c.FailNext(2, http.StatusServiceUnavailable)

	for i, want := range []int{503, 503, 202} {
		resp, err := http.Post(srv.URL+"/v1/events", "application/json", strings.NewReader(`{"events":[]}`))
		if err != nil {
			t.Fatalf("POST %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("request %d status = %d, want %d", i, resp.StatusCode, want)
		}
	}
}

func TestCollectorHealthz(t *testing.T) {
	c := collector.New()
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

// TestCollectorEndToEnd runs the real transport against the collector.
func TestCollectorEndToEnd(t *testing.T) {
	c := collector.New()
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	tp := transport.New(transport.Config{
		Endpoint:       srv.URL + "/v1/events",
		Enabled:        true,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		FlushInterval:  time.Hour,
	})
	tr := beacon.New(
		beacon.WithTransport(tp),
		beacon.WithConsent(true),
	)

	// The first delivery attempt fails; the retry succeeds.
	c.FailNext(1, http.StatusInternalServerError)

	tr.Track(beacon.Event{
		Category: beacon.CategoryConversion,
		Action:   beacon.ActionSignup,
		Metadata: map[string]any{"note": "reach me at alice@example.com"},
	})
	if err := tr.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	events := c.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if got := events[0].Metadata["note"].StringVal(); got != "reach me at [email redacted]" {
		t.Errorf("note = %q, redaction must happen before the wire", got)
	}
}
