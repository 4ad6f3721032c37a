// Package errors provides the failure taxonomy and retry machinery for the
// delivery pipeline.
//
// Every failure in the pipeline falls into one of four classes:
//   - Validation: the event itself is malformed; dropped silently.
//   - Transient: timeouts, resets, 5xx; retried with backoff.
//   - Permanent: HTTP 4xx; retrying is futile, the batch is dropped.
//   - CircuitOpen: no attempt was made because the breaker disallows it.
//
// Nothing here is fatal. The worst outcome the taxonomy allows is "stop
// sending for a while".
package errors

import (
	"errors"
	"fmt"
	"net"
)

// Category represents how a failure should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: timeouts, connection resets, HTTP 5xx.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: HTTP 4xx rejections of a batch.
	CategoryPermanent

	// CategoryValidation indicates the input was rejected before any
	// network attempt. Examples: unknown category/action pairs.
	CategoryValidation

	// CategoryCircuitOpen indicates no attempt was made because the
	// circuit breaker is open. Not counted as a delivery failure.
	CategoryCircuitOpen
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryValidation:
		return "validation"
	case CategoryCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of delivery attempts that were made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// HTTPError represents a non-2xx response from the collection endpoint.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected response: %s", e.Status)
	}
	return fmt.Sprintf("unexpected response: status %d", e.StatusCode)
}

// ErrCircuitOpen is returned when a flush is skipped because the breaker
// currently disallows sending.
var ErrCircuitOpen = &CategorizedError{
	Err:      errors.New("circuit breaker open"),
	Category: CategoryCircuitOpen,
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return CategoryPermanent
		}
		// Everything else non-2xx is treated as transient: the endpoint
		// may recover.
		return CategoryTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryTransient
	}

	// Network-level failures surface as url.Error wrapping transport
	// errors; anything we can't classify from a POST is worth retrying.
	return CategoryTransient
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsPermanent reports whether retrying is futile.
func IsPermanent(err error) bool {
	return Categorize(err) == CategoryPermanent
}
