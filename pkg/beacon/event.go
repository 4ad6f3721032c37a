package beacon

import (
	"time"

	"github.com/telemetrykit/beacon/pkg/beacon/metadata"
)

// Priority hints at delivery urgency. The transport treats it as metadata;
// downstream consumers may use it to order processing.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Event is the caller-facing input to Track. Only Category and Action are
// required; the pair must belong to the tracker's taxonomy or the event is
// dropped.
type Event struct {
	Category Category
	Action   Action

	// Label is an optional free-form qualifier (e.g. a CTA identifier).
	Label string

	// Value is an optional measurement attached to the event.
	Value *float64

	// Metadata is an arbitrary JSON-like tree. It is sanitized before the
	// event leaves the tracker.
	Metadata map[string]any

	// Priority defaults to PriorityNormal.
	Priority Priority
}

// Float returns a pointer to v, for populating Event.Value inline.
func Float(v float64) *float64 {
	return &v
}

// Record is the normalized shape pushed to the sink and sent over the wire.
// Field names match the data-layer contract consumed by tag-management
// integrations.
type Record struct {
	EventID       string       `json:"eventId"`
	EventCategory Category     `json:"eventCategory"`
	EventAction   Action       `json:"eventAction"`
	EventLabel    string       `json:"eventLabel,omitempty"`
	EventValue    *float64     `json:"eventValue,omitempty"`
	Priority      Priority     `json:"priority,omitempty"`
	Metadata      metadata.Map `json:"metadata,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}
