package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Runtime values are plain JSON shapes: nil, bool, float64, string,
// []any, map[string]any. DecodeValue normalizes arbitrary decoded JSON
// (including json.Number and integer types) into exactly these shapes so
// the evaluator and patch applier only ever see six cases.

// DecodeValue parses JSON bytes into a normalized runtime value.
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return NormalizeValue(raw)
}

// NormalizeValue converts a decoded Go value into the six runtime shapes.
// Integer kinds widen to float64; json.Number parses to float64.
func NormalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string, float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q out of range: %w", val, err)
		}
		return f, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			norm, err := NormalizeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = norm
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			norm, err := NormalizeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = norm
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// CloneValue deep-copies a runtime value. Scalars are returned as-is;
// arrays and objects are copied recursively.
func CloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = CloneValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = CloneValue(elem)
		}
		return out
	default:
		return val
	}
}

// ValueType names the runtime type of a value as seen by schema authors:
// "null", "boolean", "number", "string", "array", or "object".
func ValueType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("!invalid(%T)", v)
	}
}

// ValuesEqual reports deep equality of two runtime values.
// Numbers compare by float64 equality; NaN never equals NaN.
func ValuesEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, present := bv[k]
			if !present || !ValuesEqual(elem, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// SortedKeys returns object keys in RFC 8785 canonical order (UTF-16 code
// units). Go's sort.Strings orders by UTF-8 bytes, which differs for
// strings outside the BMP boundary cases.
func SortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785 canonical JSON. Uses unicode/utf16.Encode for correct surrogate
// handling.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// FormatNumber renders a float64 the way canonical JSON requires:
// shortest round-trip digits laid out per the ECMAScript Number-to-
// string algorithm, so "1e-7" not "1e-07" and decimal form down to
// 0.000001. Integral values below 1e21 print without a decimal point or
// exponent; negative zero prints as "0".
func FormatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number cannot be serialized: %v", f)
	}
	if f == 0 {
		return "0", nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return formatNumberECMA(f), nil
}

// formatNumberECMA lays out the shortest round-trip digits the way
// ECMAScript Number::toString(10) does: plain decimal while the point
// position n stays in (-6, 21], exponent form with a minimal, signed
// exponent beyond that.
func formatNumberECMA(f float64) string {
	var neg string
	shortest := strconv.FormatFloat(f, 'e', -1, 64)
	if shortest[0] == '-' {
		neg = "-"
		shortest = shortest[1:]
	}

	e := strings.IndexByte(shortest, 'e')
	digits := strings.Replace(shortest[:e], ".", "", 1)
	exp, _ := strconv.Atoi(shortest[e+1:])

	k := len(digits)
	n := exp + 1 // digits represent 0.digits * 10^n

	switch {
	case k <= n && n <= 21:
		return neg + digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return neg + digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return neg + "0." + strings.Repeat("0", -n) + digits
	}

	mantissa := digits[:1]
	if k > 1 {
		mantissa += "." + digits[1:]
	}
	expSign := "+"
	if n-1 < 0 {
		expSign = "-"
	}
	return neg + mantissa + "e" + expSign + strconv.Itoa(abs(n-1))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
