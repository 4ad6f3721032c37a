// Package sanitize scrubs PII-like strings from event metadata before it
// leaves the process.
//
// The sanitizer is a pure function over its input: it never mutates the
// source, bounds recursion depth, and breaks reference cycles. Email-shaped
// substrings are replaced with a redaction token unless the owning key is on
// a configured allow-list (fields the application collects legitimately,
// such as a signup form's own email input).
package sanitize

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/telemetrykit/beacon/pkg/beacon/metadata"
)

const (
	// DefaultMaxDepth is how many nested container levels are preserved
	// before a subtree collapses to the truncation marker.
	DefaultMaxDepth = 4

	// DefaultRedactionToken replaces each email match.
	DefaultRedactionToken = "[email redacted]"

	// CircularMarker replaces any reference back into an already-visited
	// container.
	CircularMarker = "[circular]"

	// TooDeepKey is the single key of the truncation marker object.
	TooDeepKey = "tooDeep"
)

// emailPattern matches email-shaped substrings anywhere in a string value.
var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// DefaultAllowedKeys are passed through without redaction.
var DefaultAllowedKeys = []string{"userEmail", "userId"}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithMaxDepth sets the nesting depth preserved before truncation.
func WithMaxDepth(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithRedactionToken sets the replacement for email matches.
func WithRedactionToken(token string) Option {
	return func(s *Sanitizer) {
		if token != "" {
			s.token = token
		}
	}
}

// WithAllowedKeys replaces the allow-list of keys whose string values are
// preserved verbatim.
func WithAllowedKeys(keys ...string) Option {
	return func(s *Sanitizer) {
		s.allowed = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			s.allowed[k] = struct{}{}
		}
	}
}

// Sanitizer redacts metadata trees. Safe for concurrent use.
type Sanitizer struct {
	maxDepth int
	token    string
	allowed  map[string]struct{}
}

// New creates a Sanitizer with the default depth cap, redaction token, and
// allowed keys, then applies opts.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		maxDepth: DefaultMaxDepth,
		token:    DefaultRedactionToken,
	}
	WithAllowedKeys(DefaultAllowedKeys...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the redaction token in use.
func (s *Sanitizer) Token() string {
	return s.token
}

// Sanitize returns a redacted copy of meta as a metadata tree.
// A nil input yields a nil map.
func (s *Sanitizer) Sanitize(meta map[string]any) metadata.Map {
	if meta == nil {
		return nil
	}
	visited := make(map[uintptr]struct{})
	markVisited(visited, meta)
	return s.sanitizeMap(meta, 0, visited)
}

// tooDeep is the truncation sentinel for subtrees past the depth cap.
func tooDeep() metadata.Value {
	return metadata.Object(metadata.Map{TooDeepKey: metadata.Bool(true)})
}

func (s *Sanitizer) sanitizeMap(m map[string]any, depth int, visited map[uintptr]struct{}) metadata.Map {
	out := make(metadata.Map, len(m))
	for key, val := range m {
		out[key] = s.sanitizeValue(key, val, depth, visited)
	}
	return out
}

func (s *Sanitizer) sanitizeValue(key string, val any, depth int, visited map[uintptr]struct{}) metadata.Value {
	switch t := val.(type) {
	case nil:
		return metadata.Null()
	case string:
		if _, ok := s.allowed[key]; ok {
			return metadata.String(t)
		}
		return metadata.String(s.redact(t))
	case bool:
		return metadata.Bool(t)
	case map[string]any:
		if seen(visited, t) {
			return metadata.String(CircularMarker)
		}
		if depth+1 > s.maxDepth {
			return tooDeep()
		}
		markVisited(visited, t)
		return metadata.Object(s.sanitizeMap(t, depth+1, visited))
	case []any:
		if seenSlice(visited, t) {
			return metadata.String(CircularMarker)
		}
		if depth+1 > s.maxDepth {
			return tooDeep()
		}
		markVisitedSlice(visited, t)
		return s.sanitizeSlice(t, depth+1, visited)
	default:
		if n, ok := asNumber(val); ok {
			return metadata.Number(n)
		}
		// Unrecognized types are stringified and redacted like any
		// other string.
		return metadata.String(s.redact(fmt.Sprint(val)))
	}
}

func (s *Sanitizer) sanitizeSlice(elems []any, depth int, visited map[uintptr]struct{}) metadata.Value {
	out := make([]metadata.Value, len(elems))
	for i, e := range elems {
		// Array elements have no key, so the allow-list never applies.
		out[i] = s.sanitizeValue("", e, depth, visited)
	}
	return metadata.Array(out...)
}

// redact replaces every email match in str with the token.
func (s *Sanitizer) redact(str string) string {
	return emailPattern.ReplaceAllString(str, s.token)
}

// asNumber converts any Go numeric type to float64.
func asNumber(val any) (float64, bool) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// Container identity is the underlying data pointer. Empty containers are
// skipped: they cannot participate in a cycle, and empty slices may share
// a data pointer.

func seen(visited map[uintptr]struct{}, m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	_, ok := visited[reflect.ValueOf(m).Pointer()]
	return ok
}

func markVisited(visited map[uintptr]struct{}, m map[string]any) {
	if len(m) == 0 {
		return
	}
	visited[reflect.ValueOf(m).Pointer()] = struct{}{}
}

func seenSlice(visited map[uintptr]struct{}, s []any) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := visited[reflect.ValueOf(s).Pointer()]
	return ok
}

func markVisitedSlice(visited map[uintptr]struct{}, s []any) {
	if len(s) == 0 {
		return
	}
	visited[reflect.ValueOf(s).Pointer()] = struct{}{}
}
