package canon

import (
	"fmt"
	"reflect"
	"sort"
)

// canonicalizeReflective handles the long tail of concrete map/slice types
// (map[string]string, []int, map[string][]string, ...) that the type switch
// in Canonicalize does not enumerate by name, without resorting to
// marshaling through encoding/json first (which would hide a
// non-canonicalizable value, such as a function field, behind a generic
// "json: unsupported type" error instead of the typed ErrNotCanonicalizable
// spec.md §4.1 requires).
func canonicalizeReflective(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &ErrNotCanonicalizable{Type: rv.Type().String()}
		}
		keys := rv.MapKeys()
		strKeys := make([]string, len(keys))
		for i, k := range keys {
			strKeys[i] = k.String()
		}
		sort.Strings(strKeys)
		out := make(map[string]any, len(strKeys))
		for _, k := range strKeys {
			c, err := Canonicalize(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			c, err := Canonicalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return Canonicalize(rv.Elem().Interface())
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.Interface(), nil
	default:
		return nil, &ErrNotCanonicalizable{Type: fmt.Sprintf("%T", v)}
	}
}
