// Package metadata models event metadata as a closed recursive value type.
//
// Metadata arrives from callers as arbitrary JSON-like Go values
// (map[string]any, []any, strings, numbers). Inside the pipeline it is
// represented as a tagged union so that traversals such as sanitization and
// serialization switch over a fixed set of kinds instead of duck-typing on
// reflection.
package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one node of a metadata tree. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	a    []Value
	m    Map
}

// Map is an object node's entries.
type Map map[string]Value

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number returns a numeric value.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Array returns an array value holding the given elements.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, a: elems}
}

// Object returns a map value holding the given entries.
func Object(m Map) Value {
	return Value{kind: KindMap, m: m}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// BoolVal returns the boolean payload; false unless Kind is KindBool.
func (v Value) BoolVal() bool {
	return v.b
}

// NumberVal returns the numeric payload; 0 unless Kind is KindNumber.
func (v Value) NumberVal() float64 {
	return v.n
}

// StringVal returns the string payload; "" unless Kind is KindString.
func (v Value) StringVal() string {
	return v.s
}

// Len returns the element count for arrays, the entry count for maps,
// and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.a)
	case KindMap:
		return len(v.m)
	default:
		return 0
	}
}

// Index returns the i-th array element, or null when out of range or
// when v is not an array.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.a) {
		return Null()
	}
	return v.a[i]
}

// Get returns the map entry for key, or null when absent or when v is
// not a map.
func (v Value) Get(key string) Value {
	if v.kind != KindMap {
		return Null()
	}
	val, ok := v.m[key]
	if !ok {
		return Null()
	}
	return val
}

// Keys returns the map keys in sorted order, or nil for non-maps.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts the value back to plain JSON-shaped Go values:
// nil, bool, float64, string, []any, map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.a))
		for i, e := range v.a {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Interface converts the map and its subtree to map[string]any.
func (m Map) Interface() map[string]any {
	return Object(m).Interface().(map[string]any)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		return json.Marshal(v.a)
	case KindMap:
		return json.Marshal(v.m)
	default:
		return nil, fmt.Errorf("metadata: cannot marshal kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := fromDecoded(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// fromDecoded converts a value produced by encoding/json into a Value.
// Inputs from json.Unmarshal are acyclic, so no visited tracking is needed.
func fromDecoded(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			v, err := fromDecoded(e)
			if err != nil {
				return Null(), err
			}
			elems[i] = v
		}
		return Array(elems...), nil
	case map[string]any:
		m := make(Map, len(t))
		for k, e := range t {
			v, err := fromDecoded(e)
			if err != nil {
				return Null(), err
			}
			m[k] = v
		}
		return Object(m), nil
	default:
		return Null(), fmt.Errorf("metadata: unsupported decoded type %T", raw)
	}
}
