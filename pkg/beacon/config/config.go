// Package config loads beacon settings from YAML or JSON documents and
// turns them into the typed configuration the tracker, transport, and
// ratchet packages consume.
package config

import (
	"time"
)

// Section wraps a map[string]any for type-safe value extraction.
// All accessor methods return default values if the key is missing
// or the value cannot be converted to the requested type.
type Section struct {
	data map[string]any
}

// NewSection creates a Section from the given map.
// If data is nil, an empty Section is returned.
func NewSection(data map[string]any) Section {
	if data == nil {
		data = make(map[string]any)
	}
	return Section{data: data}
}

// Sub returns the nested section for key, or an empty Section.
func (s Section) Sub(key string) Section {
	v, ok := s.data[key]
	if !ok {
		return NewSection(nil)
	}
	if m, ok := v.(map[string]any); ok {
		return NewSection(m)
	}
	return NewSection(nil)
}

// Has returns true if the key exists in the section.
func (s Section) Has(key string) bool {
	_, ok := s.data[key]
	return ok
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (s Section) String(key, defaultVal string) string {
	v, ok := s.data[key]
	if !ok {
		return defaultVal
	}
	if str, ok := v.(string); ok {
		return str
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (s Section) Bool(key string, defaultVal bool) bool {
	v, ok := s.data[key]
	if !ok {
		return defaultVal
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
//
// Accepts:
//   - int: used directly
//   - int64: converted to int
//   - float64: converted to int (only if no fractional part)
func (s Section) Int(key string, defaultVal int) int {
	v, ok := s.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not convertible.
func (s Section) Float(key string, defaultVal float64) float64 {
	v, ok := s.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64: interpreted as milliseconds
//   - float64: interpreted as milliseconds
func (s Section) Duration(key string, defaultVal time.Duration) time.Duration {
	v, ok := s.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Millisecond))
	case int:
		return time.Duration(val) * time.Millisecond
	case int64:
		return time.Duration(val) * time.Millisecond
	}
	return defaultVal
}

// StringSlice returns the string slice for key, or defaultVal if missing or not convertible.
func (s Section) StringSlice(key string, defaultVal []string) []string {
	v, ok := s.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, str)
		}
		return result
	}
	return defaultVal
}
