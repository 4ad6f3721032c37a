package sanitize_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/telemetrykit/beacon/pkg/beacon/metadata"
	"github.com/telemetrykit/beacon/pkg/beacon/sanitize"
)

func TestSanitizeRedaction(t *testing.T) {
	s := sanitize.New()

	tests := []struct {
		name string
		in   map[string]any
		key  string
		want string
	}{
		{
			"bare email",
			map[string]any{"contact": "alice@example.com"},
			"contact",
			"[email redacted]",
		},
		{
			"email embedded in text",
			map[string]any{"note": "reply to bob@corp.io please"},
			"note",
			"reply to [email redacted] please",
		},
		{
			"two emails in one string",
			map[string]any{"note": "cc alice@example.com and bob@corp.io"},
			"note",
			"cc [email redacted] and [email redacted]",
		},
		{
			"plus addressing and subdomain",
			map[string]any{"note": "from a.b+tag@mail.example.co.uk today"},
			"note",
			"from [email redacted] today",
		},
		{
			"no email untouched",
			map[string]any{"note": "version 2.0 @ stable"},
			"note",
			"version 2.0 @ stable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.in)
			if v := got[tt.key].StringVal(); v != tt.want {
				t.Errorf("Sanitize()[%s] = %q, want %q", tt.key, v, tt.want)
			}
		})
	}
}

func TestSanitizeAllowedKeys(t *testing.T) {
	s := sanitize.New()

	got := s.Sanitize(map[string]any{
		"userEmail": "alice@example.com",
		"userId":    "user-42@tenant.example.com",
		"referrer":  "mailto:alice@example.com",
	})

	if v := got["userEmail"].StringVal(); v != "alice@example.com" {
		t.Errorf("userEmail = %q, want passthrough", v)
	}
	if v := got["userId"].StringVal(); v != "user-42@tenant.example.com" {
		t.Errorf("userId = %q, want passthrough", v)
	}
	if v := got["referrer"].StringVal(); v != "mailto:[email redacted]" {
		t.Errorf("referrer = %q, want redacted", v)
	}

	t.Run("allow-list is keyed on the owning field only", func(t *testing.T) {
		got := s.Sanitize(map[string]any{
			"userEmail": []any{"alice@example.com"},
		})
		if v := got["userEmail"].Index(0).StringVal(); v != "[email redacted]" {
			t.Errorf("array element under allowed key = %q, want redacted", v)
		}
	})

	t.Run("custom allow-list", func(t *testing.T) {
		s := sanitize.New(sanitize.WithAllowedKeys("supportContact"))
		got := s.Sanitize(map[string]any{
			"supportContact": "help@example.com",
			"userEmail":      "alice@example.com",
		})
		if v := got["supportContact"].StringVal(); v != "help@example.com" {
			t.Errorf("supportContact = %q, want passthrough", v)
		}
		if v := got["userEmail"].StringVal(); v != "[email redacted]" {
			t.Errorf("userEmail = %q, want redacted after allow-list replacement", v)
		}
	})
}

func TestSanitizeScalars(t *testing.T) {
	s := sanitize.New()

	got := s.Sanitize(map[string]any{
		"nil":    nil,
		"bool":   true,
		"int":    7,
		"float":  2.5,
		"uint":   uint8(9),
		"struct": struct{ X string }{X: "me@example.com"},
	})

	if !got["nil"].IsNull() {
		t.Error("nil should map to null")
	}
	if !got["bool"].BoolVal() {
		t.Error("bool should survive")
	}
	if got["int"].NumberVal() != 7 || got["float"].NumberVal() != 2.5 || got["uint"].NumberVal() != 9 {
		t.Error("numeric types should normalize to numbers")
	}
	if v := got["struct"].StringVal(); strings.Contains(v, "@example.com") {
		t.Errorf("stringified fallback leaked an email: %q", v)
	}
}

func TestSanitizeDepthCap(t *testing.T) {
	s := sanitize.New()

	// Four nested container levels survive; the fifth collapses.
	in := map[string]any{
		"l1": map[string]any{ // level 1
			"l2": map[string]any{ // level 2
				"l3": map[string]any{ // level 3
					"l4": map[string]any{ // level 4: kept
						"l5": map[string]any{"deep": "value"}, // level 5: truncated
						"ok": "kept",
					},
				},
			},
		},
	}
	got := s.Sanitize(in)

	l4 := got["l1"].Get("l2").Get("l3").Get("l4")
	if v := l4.Get("ok").StringVal(); v != "kept" {
		t.Errorf("level-4 scalar = %q, want kept", v)
	}
	marker := l4.Get("l5")
	if !marker.Get(sanitize.TooDeepKey).BoolVal() {
		t.Errorf("level-5 subtree = %v, want {tooDeep:true}", marker.Interface())
	}

	t.Run("arrays count as levels too", func(t *testing.T) {
		in := map[string]any{
			"a": []any{[]any{[]any{[]any{[]any{"deep"}}}}},
		}
		got := s.Sanitize(in)
		marker := got["a"].Index(0).Index(0).Index(0).Index(0)
		if !marker.Get(sanitize.TooDeepKey).BoolVal() {
			t.Errorf("nested array truncation = %v, want {tooDeep:true}", marker.Interface())
		}
	})

	t.Run("custom depth", func(t *testing.T) {
		s := sanitize.New(sanitize.WithMaxDepth(1))
		got := s.Sanitize(map[string]any{
			"scalar": "fine",
			"nested": map[string]any{"deeper": map[string]any{"x": 1}},
		})
		if got["scalar"].StringVal() != "fine" {
			t.Error("top-level scalar should survive depth 1")
		}
		if got["nested"].Kind() != metadata.KindMap {
			t.Fatal("first container level should survive depth 1")
		}
		if !got["nested"].Get("deeper").Get(sanitize.TooDeepKey).BoolVal() {
			t.Error("second container level should truncate at depth 1")
		}
	})
}

func TestSanitizeCycles(t *testing.T) {
	s := sanitize.New()

	t.Run("self-referential map", func(t *testing.T) {
		root := map[string]any{"name": "loop"}
		root["self"] = root

		got := s.Sanitize(root)
		if v := got["self"].StringVal(); v != sanitize.CircularMarker {
			t.Errorf("self reference = %q, want %q", v, sanitize.CircularMarker)
		}
		if v := got["name"].StringVal(); v != "loop" {
			t.Errorf("sibling value = %q, want kept", v)
		}
	})

	t.Run("ancestor reference through a slice", func(t *testing.T) {
		root := map[string]any{}
		child := []any{"leaf", root}
		root["items"] = child

		got := s.Sanitize(root)
		items := got["items"]
		if v := items.Index(0).StringVal(); v != "leaf" {
			t.Errorf("items[0] = %q, want leaf", v)
		}
		if v := items.Index(1).StringVal(); v != sanitize.CircularMarker {
			t.Errorf("items[1] = %q, want %q", v, sanitize.CircularMarker)
		}
	})

	t.Run("empty containers never read as cycles", func(t *testing.T) {
		shared := map[string]any{}
		got := s.Sanitize(map[string]any{"a": shared, "b": shared})
		if got["a"].Kind() != metadata.KindMap || got["b"].Kind() != metadata.KindMap {
			t.Errorf("empty maps should stay maps: %v", got.Interface())
		}
	})
}

func TestSanitizePurity(t *testing.T) {
	s := sanitize.New()

	in := map[string]any{
		"contact": "alice@example.com",
		"nested":  map[string]any{"note": "bob@corp.io"},
	}
	_ = s.Sanitize(in)

	want := map[string]any{
		"contact": "alice@example.com",
		"nested":  map[string]any{"note": "bob@corp.io"},
	}
	if !reflect.DeepEqual(in, want) {
		t.Errorf("input mutated: %#v", in)
	}

	if got := s.Sanitize(nil); got != nil {
		t.Errorf("Sanitize(nil) = %v, want nil", got)
	}
}

func TestSanitizeCustomToken(t *testing.T) {
	s := sanitize.New(sanitize.WithRedactionToken("<pii>"))
	got := s.Sanitize(map[string]any{"contact": "alice@example.com"})
	if v := got["contact"].StringVal(); v != "<pii>" {
		t.Errorf("contact = %q, want custom token", v)
	}
	if s.Token() != "<pii>" {
		t.Errorf("Token() = %q", s.Token())
	}
}
