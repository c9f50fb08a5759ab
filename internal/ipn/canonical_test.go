package ipn

import (
	"testing"
)

func TestCanonicalizeKeyOrderIndependence(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{
			name: "flat object",
			a:    `{"payment_id":"p1","payment_status":"confirmed"}`,
			b:    `{"payment_status":"confirmed","payment_id":"p1"}`,
		},
		{
			name: "nested object",
			a:    `{"outer":{"b":2,"a":1},"z":true}`,
			b:    `{"z":true,"outer":{"a":1,"b":2}}`,
		},
		{
			name: "object inside array",
			a:    `{"items":[{"y":2,"x":1}]}`,
			b:    `{"items":[{"x":1,"y":2}]}`,
		},
		{
			name: "whitespace differences",
			a:    "{\n  \"a\": 1,\n  \"b\": 2\n}",
			b:    `{"b":2,"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ca, err := Canonicalize([]byte(tt.a))
			if err != nil {
				t.Fatalf("Canonicalize(%q) failed: %v", tt.a, err)
			}
			cb, err := Canonicalize([]byte(tt.b))
			if err != nil {
				t.Fatalf("Canonicalize(%q) failed: %v", tt.b, err)
			}
			if ca != cb {
				t.Errorf("canonical forms differ:\n a: %s\n b: %s", ca, cb)
			}
		})
	}
}

func TestCanonicalizeOutput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "keys sorted by byte order",
			input:    `{"b":1,"A":2,"a":3}`,
			expected: `{"A":2,"a":3,"b":1}`,
		},
		{
			name:     "number literals preserved",
			input:    `{"amount":1.50,"big":123456789012345678901234567890,"exp":1e3}`,
			expected: `{"amount":1.50,"big":123456789012345678901234567890,"exp":1e3}`,
		},
		{
			name:     "array order preserved",
			input:    `{"a":[3,1,2]}`,
			expected: `{"a":[3,1,2]}`,
		},
		{
			name:     "html characters not escaped",
			input:    `{"url":"https://x.test/a?b=1&c=<2>"}`,
			expected: `{"url":"https://x.test/a?b=1&c=<2>"}`,
		},
		{
			name:     "scalar document",
			input:    `"hello"`,
			expected: `"hello"`,
		},
		{
			name:     "null and booleans",
			input:    `{"a":null,"b":false,"c":true}`,
			expected: `{"a":null,"b":false,"c":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize([]byte(tt.input))
			if err != nil {
				t.Fatalf("Canonicalize(%q) failed: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Canonicalize(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalizeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty body", input: ""},
		{name: "truncated object", input: `{"a":`},
		{name: "trailing data", input: `{"a":1}{"b":2}`},
		{name: "plain text", input: "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Canonicalize([]byte(tt.input)); err == nil {
				t.Errorf("Canonicalize(%q) succeeded; want error", tt.input)
			}
		})
	}
}
