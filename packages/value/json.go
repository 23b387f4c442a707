package value

import (
	"sort"

	"github.com/tidwall/gjson"
)

// FromJSON parses data as a JSON document. ok is false when data is not
// valid JSON. Object key order is preserved.
func FromJSON(data []byte) (Value, bool) {
	if !gjson.ValidBytes(data) {
		return Null(), false
	}
	return FromResult(gjson.ParseBytes(data)), true
}

// FromResult converts a gjson result into a Value.
func FromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Num)
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			items := []Value{}
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, FromResult(item))
				return true
			})
			return Sequence(items...)
		}
		m := Mapping()
		r.ForEach(func(key, item gjson.Result) bool {
			m.Set(key.String(), FromResult(item))
			return true
		})
		return m
	}
	return Null()
}

// FromNative converts plain Go values (as produced by encoding/json or YAML
// decoding) into a Value. Map keys of map[string]any are not ordered; use
// FromJSON when order matters.
func FromNative(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case []byte:
		return Bytes(x)
	case bool:
		return Bool(x)
	case int:
		return Int(x)
	case int64:
		return Number(float64(x))
	case float64:
		return Number(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromNative(item)
		}
		return Sequence(items...)
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = String(item)
		}
		return Sequence(items...)
	case map[string]any:
		m := Mapping()
		for _, k := range sortedKeys(x) {
			m.Set(k, FromNative(x[k]))
		}
		return m
	case map[string]string:
		m := Mapping()
		for _, k := range sortedStringKeys(x) {
			m.Set(k, String(x[k]))
		}
		return m
	}
	return Null()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
