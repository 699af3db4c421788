package coerce

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

// decode mirrors how the client decodes response bodies.
func decode(t *testing.T, raw string) interface{} {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return v
}

func TestCoercionIsTotal(t *testing.T) {
	inputs := []string{
		`null`, `true`, `false`, `0`, `1`, `-7`, `3.25`, `1e3`,
		`18446744073709551615`, `""`, `"x"`, `"1"`, `"0"`, `[]`, `[1,"a"]`, `{}`, `{"a":1}`,
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			v := decode(t, raw)
			_ = String(v)
			_ = Int64(v)
			_ = Bool(v)
			_ = Float64(v)
			_ = Text(v)
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *string
	}{
		{"null", `null`, nil},
		{"string", `"Lehigh Test"`, strPtr("Lehigh Test")},
		{"empty string", `""`, strPtr("")},
		{"integer", `5`, strPtr("5")},
		{"float", `2.5`, strPtr("2.5")},
		{"bool", `true`, strPtr("true")},
		{"array", `[1,"a"]`, strPtr(`[1,"a"]`)},
		{"html is not escaped", `["<b>"]`, strPtr(`["<b>"]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := String(decode(t, tt.input))
			if !equalPtr(got, tt.want) {
				t.Errorf("String(%s) = %v, want %v", tt.input, show(got), show(tt.want))
			}
		})
	}

	if got := String(nil); got != nil {
		t.Errorf("String(nil) = %q, want nil", *got)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"abc"`, "abc"},
		{`42`, "42"},
		{`null`, "null"},
		{`false`, "false"},
	}

	for _, tt := range tests {
		if got := Text(decode(t, tt.input)); got != tt.want {
			t.Errorf("Text(%s) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInt64(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *int64
	}{
		{"null", `null`, nil},
		{"integer", `42`, i64Ptr(42)},
		{"negative integer", `-3`, i64Ptr(-3)},
		{"numeric string", `"42"`, i64Ptr(42)},
		{"signed numeric string", `"-8"`, i64Ptr(-8)},
		{"non-numeric string", `"abc"`, nil},
		{"out of range string", `"99999999999999999999"`, nil},
		{"float literal", `4.5`, nil},
		{"integral float literal", `4.0`, nil},
		{"bool", `true`, nil},
		{"object", `{}`, nil},
		{"unsigned above int64 wraps", `18446744073709551615`, i64Ptr(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Int64(decode(t, tt.input))
			if !equalPtr(got, tt.want) {
				t.Errorf("Int64(%s) = %v, want %v", tt.input, show(got), show(tt.want))
			}
		})
	}
}

func TestInt64_PlainDecoderValues(t *testing.T) {
	if got := Int64(float64(12)); got == nil || *got != 12 {
		t.Errorf("Int64(12.0) = %v, want 12", show(got))
	}
	if got := Int64(12.5); got != nil {
		t.Errorf("Int64(12.5) = %d, want nil", *got)
	}
	if got := Int64(math.Inf(1)); got != nil {
		t.Errorf("Int64(+Inf) = %d, want nil", *got)
	}
	if got := Int64(7); got == nil || *got != 7 {
		t.Errorf("Int64(int 7) = %v, want 7", show(got))
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *bool
	}{
		{"null", `null`, nil},
		{"true", `true`, boolPtr(true)},
		{"false", `false`, boolPtr(false)},
		{"string 1", `"1"`, boolPtr(true)},
		{"string 0", `"0"`, boolPtr(false)},
		{"string true", `"true"`, boolPtr(true)},
		{"string false", `"false"`, boolPtr(false)},
		{"arbitrary string", `"yes"`, nil},
		{"numeric non-zero", `5`, boolPtr(true)},
		{"numeric negative", `-1`, boolPtr(true)},
		{"numeric zero", `0`, boolPtr(false)},
		{"float", `0.5`, nil},
		{"array", `[1]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bool(decode(t, tt.input))
			if !equalPtr(got, tt.want) {
				t.Errorf("Bool(%s) = %v, want %v", tt.input, show(got), show(tt.want))
			}
		})
	}
}

func TestFloat64(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *float64
	}{
		{"null", `null`, nil},
		{"float", `40.6028`, f64Ptr(40.6028)},
		{"integer", `3`, f64Ptr(3)},
		{"exponent", `1e3`, f64Ptr(1000)},
		{"numeric string", `"-75.37"`, f64Ptr(-75.37)},
		{"non-numeric string", `"north"`, nil},
		{"empty string", `""`, nil},
		{"bool", `true`, nil},
		{"array", `[1.0]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Float64(decode(t, tt.input))
			if !equalPtr(got, tt.want) {
				t.Errorf("Float64(%s) = %v, want %v", tt.input, show(got), show(tt.want))
			}
		})
	}

	if got := Float64(2.5); got == nil || *got != 2.5 {
		t.Errorf("Float64(float64 2.5) = %v, want 2.5", show(got))
	}
}

func strPtr(s string) *string   { return &s }
func i64Ptr(n int64) *int64     { return &n }
func boolPtr(b bool) *bool      { return &b }
func f64Ptr(f float64) *float64 { return &f }

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func show[T any](p *T) interface{} {
	if p == nil {
		return "<nil>"
	}
	return *p
}
