package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"zero", int64(0), "0"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array of ints", []any{int64(1), int64(2), int64(3)}, "[1,2,3]"},
		{"simple object", map[string]any{"a": int64(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"seq":      int64(0),
		"position": int64(1),
		"phase":    "crawl",
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"phase":"crawl","position":1,"seq":0}`, string(result))
}

func TestMarshalCanonicalNested(t *testing.T) {
	obj := map[string]any{
		"reason": "BOUND_EXCEEDED",
		"config": map[string]any{"start": int64(1), "max": int64(1)},
		"events": []any{
			map[string]any{"phase": "crawl", "position": int64(1), "seq": int64(0)},
		},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t,
		`{"config":{"max":1,"start":1},"events":[{"phase":"crawl","position":1,"seq":0}],"reason":"BOUND_EXCEEDED"}`,
		string(result))
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"control", "a\x01b", `"a\u0001b"`},
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to precomposed U+00E9
	decomposed := "e\u0301"
	result, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"nil", nil},
		{"float", 1.5},
		{"nested nil", map[string]any{"a": nil}},
		{"nested float", []any{int64(1), 2.0}},
		{"unsupported", struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+FF61 sorts after U+1F600 in UTF-8 byte order but before it in
	// UTF-16 code units (surrogate pair starts with 0xD83D).
	m := map[string]any{
		"\uFF61":     int64(1),
		"\U0001F600": int64(2),
		"a":          int64(3),
	}
	assert.Equal(t, []string{"a", "\U0001F600", "\uFF61"}, SortedKeys(m))
}
