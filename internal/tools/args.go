// In file: internal/tools/args.go
package tools

import "fmt"

// Args is a validated argument set: every required key is present and correctly typed, absent
// optional keys carry their documented default, and keys unknown to the schema are gone.
// Integers are int64, numbers float64, objects map[string]any and arrays []any.
type Args map[string]any

// String returns the string value stored under key, or "" if absent.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the integer value stored under key.
func (a Args) Int(key string) (int64, error) {
	switch v := a[key].(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("argument %q is not set", key)
	default:
		return 0, fmt.Errorf("argument %q is %T, not an integer", key, v)
	}
}

// Object returns the object value stored under key. A missing key yields an empty map.
func (a Args) Object(key string) map[string]any {
	m, _ := a[key].(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

// cloneValue deep-copies the JSON-shaped values used as defaults so callers can never mutate
// the catalog through a validated argument set.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	case int:
		return int64(t)
	default:
		return t
	}
}
