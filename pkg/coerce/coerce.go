// Package coerce converts loosely-typed JSON values into typed optional values.
//
// PassioGo does not keep field types stable across deployments: booleans show up
// as "1"/"0", integers as numeric strings and ids as either. Every function here
// is total: a nil result means the value was absent, null or not coercible.
//
// Values are expected to come from encoding/json decoding into interface{},
// preferably with Decoder.UseNumber so integers and floats stay distinguishable.
package coerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// String returns v as a string. Strings are returned as-is, anything else is
// rendered as its JSON text with surrounding quotes stripped.
func String(v interface{}) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	default:
		s := Text(val)
		return &s
	}
}

// Text renders any decoded JSON value as its canonical JSON text and strips
// surrounding quote characters. A JSON string "abc" becomes abc and null
// becomes "null".
func Text(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return strings.Trim(fmt.Sprint(v), `"`)
	}
	return strings.Trim(strings.TrimSuffix(buf.String(), "\n"), `"`)
}

// Int64 returns v as a signed 64-bit integer. Numeric strings are parsed in
// base 10. Unsigned values above math.MaxInt64 wrap.
func Int64(v interface{}) *int64 {
	switch val := v.(type) {
	case nil:
		return nil
	case json.Number:
		return parseInteger(val.String())
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil
		}
		return &n
	case int:
		n := int64(val)
		return &n
	case int32:
		n := int64(val)
		return &n
	case int64:
		return &val
	case uint:
		n := int64(val)
		return &n
	case uint32:
		n := int64(val)
		return &n
	case uint64:
		n := int64(val)
		return &n
	case float64:
		// Plain decoders turn every number into float64; accept the integral ones.
		if val != math.Trunc(val) || val < math.MinInt64 || val >= math.MaxInt64 {
			return nil
		}
		n := int64(val)
		return &n
	default:
		return nil
	}
}

// parseInteger parses a JSON integer literal. Float literals such as "5.0"
// are not integers.
func parseInteger(s string) *int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		n := int64(u)
		return &n
	}
	return nil
}

// Bool returns v as a boolean. The strings "true"/"1" and "false"/"0" are
// recognised; other strings are nil. Numbers are true when non-zero.
func Bool(v interface{}) *bool {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return &val
	case string:
		var b bool
		switch val {
		case "true", "1":
			b = true
		case "false", "0":
			b = false
		default:
			return nil
		}
		return &b
	default:
		n := Int64(val)
		if n == nil {
			return nil
		}
		b := *n != 0
		return &b
	}
}

// Float64 returns v as a float64. Any JSON number converts; strings are parsed.
func Float64(v interface{}) *float64 {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil
	case json.Number:
		parsed, err := strconv.ParseFloat(val.String(), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = val
	case float32:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		n := integerKind(val)
		if n == nil {
			return nil
		}
		f = float64(*n)
	}
	return &f
}

func integerKind(v interface{}) *int64 {
	switch v.(type) {
	case int, int32, int64, uint, uint32, uint64:
		return Int64(v)
	}
	return nil
}
