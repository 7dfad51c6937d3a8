package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// undefinedValue is the distinguished result of resolving a member path
// that does not exist in the context.
type undefinedValue struct{}

// Undefined is returned by Evaluate (and path lookups) when a referenced
// context field does not exist. Edges may be authored before every field
// they reference is populated, so a missing path is not a fatal error.
//
// Comparison rules involving Undefined (documented here because they are a
// deliberate judgment call, applied symmetrically):
//   - Undefined == null is true; every other equality with Undefined is
//     false, including Undefined == Undefined.
//   - x != v is true when exactly one side is Undefined and the other is a
//     defined non-null value (the explicit existence check); Undefined !=
//     Undefined is false.
//   - Ordering comparisons (<, <=, >, >=) against Undefined are false.
//   - Undefined is falsy: !x is true for a missing x.
var Undefined = undefinedValue{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefinedValue)
	return ok
}

// Truthy converts a value to its boolean interpretation.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil, undefinedValue:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

// Stringify renders a value the way templates do: numbers without a type
// suffix, booleans as true/false, nil and Undefined as the empty string,
// objects and arrays as canonical JSON. Serialization failure falls back
// to a best-effort fmt rendering rather than erroring.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil, undefinedValue:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			// Cyclic or otherwise unserializable; a type marker beats
			// recursing into the value.
			return fmt.Sprintf("<%T>", t)
		}
		return string(data)
	}
}

// asNumber attempts to coerce a value to float64.
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// looseEqual compares two defined values, coercing numeric types.
func looseEqual(a, b any) bool {
	if fa, ok := asNumber(a); ok {
		if fb, ok := asNumber(b); ok {
			return fa == fb
		}
	}
	return a == b
}

// compareOrder returns -1/0/1 for ordered comparison, or ok=false when the
// operands are not comparable (mixed or unordered types).
func compareOrder(a, b any) (int, bool) {
	if fa, ok := asNumber(a); ok {
		if fb, ok := asNumber(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// Lookup resolves a dotted path against a context map. Missing segments,
// or traversal into a non-container, yield Undefined. Numeric segments
// index into slices.
func Lookup(ctx map[string]any, path string) any {
	var current any = ctx
	for _, seg := range strings.Split(path, ".") {
		switch c := current.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return Undefined
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return Undefined
			}
			current = c[idx]
		default:
			return Undefined
		}
	}
	return current
}
