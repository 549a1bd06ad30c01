package typeutil

import "testing"

func TestSafeString(t *testing.T) {
	if s, ok := SafeString("hello"); !ok || s != "hello" {
		t.Errorf("expected hello, got %q ok=%v", s, ok)
	}
	if _, ok := SafeString(nil); ok {
		t.Error("nil should not assert to string")
	}
	if _, ok := SafeString(42); ok {
		t.Error("int should not assert to string")
	}
	if s := SafeStringDefault(nil, "fallback"); s != "fallback" {
		t.Errorf("expected fallback, got %q", s)
	}
}

func TestSafeInt(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{42, 42, true},
		{int64(7), 7, true},
		{int32(3), 3, true},
		{float64(9.9), 9, true},
		{float32(2.1), 2, true},
		{"42", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := SafeInt(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("SafeInt(%v) = %d, %v; want %d, %v", c.in, got, ok, c.want, c.ok)
		}
	}
	if i := SafeIntDefault("no", 5); i != 5 {
		t.Errorf("expected default 5, got %d", i)
	}
}

func TestSafeFloat64(t *testing.T) {
	if f, ok := SafeFloat64(0.85); !ok || f != 0.85 {
		t.Errorf("expected 0.85, got %v ok=%v", f, ok)
	}
	if f, ok := SafeFloat64(3); !ok || f != 3.0 {
		t.Errorf("expected 3.0, got %v ok=%v", f, ok)
	}
	if _, ok := SafeFloat64("0.85"); ok {
		t.Error("string should not assert to float64")
	}
}

func TestSafeBool(t *testing.T) {
	if b, ok := SafeBool(true); !ok || !b {
		t.Error("true should assert to bool")
	}
	if _, ok := SafeBool(1); ok {
		t.Error("int should not assert to bool")
	}
	if !SafeBoolDefault(nil, true) {
		t.Error("expected default true")
	}
}

func TestSafeMapStringAny(t *testing.T) {
	m, ok := SafeMapStringAny(map[string]any{"pr_number": 42})
	if !ok || m["pr_number"] != 42 {
		t.Error("map assertion failed")
	}
	if _, ok := SafeMapStringAny([]string{"x"}); ok {
		t.Error("slice should not assert to map")
	}
}

func TestSafeStringSlice(t *testing.T) {
	if s, ok := SafeStringSlice([]string{"a", "b"}); !ok || len(s) != 2 {
		t.Error("[]string assertion failed")
	}
	// JSON unmarshaling produces []any
	if s, ok := SafeStringSlice([]any{"a", "b"}); !ok || s[1] != "b" {
		t.Error("[]any of strings assertion failed")
	}
	if _, ok := SafeStringSlice([]any{"a", 1}); ok {
		t.Error("mixed []any should fail")
	}
}
