package beacon

import (
	"sync"
)

// Sink receives accepted records. The tracker pushes every accepted event
// here regardless of transport state; it is the in-page data layer analog
// consumed by tag-management integrations and integration tests.
type Sink interface {
	Push(rec Record)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(rec Record)

// Push implements Sink.
func (f SinkFunc) Push(rec Record) {
	f(rec)
}

// DataLayer is an in-memory, append-only Sink. Safe for concurrent use.
type DataLayer struct {
	mu      sync.Mutex
	records []Record
}

// NewDataLayer creates an empty data layer.
func NewDataLayer() *DataLayer {
	return &DataLayer{}
}

// Push implements Sink.
func (d *DataLayer) Push(rec Record) {
	d.mu.Lock()
	d.records = append(d.records, rec)
	d.mu.Unlock()
}

// Records returns a copy of everything pushed so far, in push order.
func (d *DataLayer) Records() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Len returns the number of records pushed so far.
func (d *DataLayer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}
