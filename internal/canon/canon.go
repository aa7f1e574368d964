// Package canon implements deterministic canonicalization and checksumming
// of schema values (spec.md §4.1, C1). It has no dependency on package core:
// callers hand it plain maps/slices/scalars (typically a Model or Schema's
// CanonicalView()), keeping the canonicalization algorithm reusable for any
// JSON-like value.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize recursively normalizes v: scalars pass through unchanged,
// ordered sequences preserve order (each element canonicalized in turn),
// and maps are rewritten with keys sorted lexicographically. The result is
// safe to feed to Serialize for a stable byte representation.
//
// Canonicalize only accepts values built from the JSON-like universe:
// nil, bool, string, numeric types, []T, and map[string]T for some T. Any
// other value (functions, channels, unexported-field structs passed by
// pointer, etc.) is a programmer error and returns ErrNotCanonicalizable.
func Canonicalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t, nil
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			c, err := Canonicalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			c, err := Canonicalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		return canonicalizeMap(t)
	default:
		return canonicalizeReflective(v)
	}
}

func canonicalizeMap(m map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		c, err := Canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		out[k] = c
	}
	return out, nil
}

// Serialize renders a canonicalized value as compact UTF-8 JSON with no
// insignificant whitespace. Go's encoding/json already emits the shortest
// round-trip decimal for floats and escapes strings consistently, which
// satisfies spec.md §4.1's serialization contract.
func Serialize(canonical any) ([]byte, error) {
	return json.Marshal(canonical)
}

// Checksum returns the lowercase hex SHA-256 of v's canonical serialization.
func Checksum(v any) (string, error) {
	c, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	data, err := Serialize(c)
	if err != nil {
		return "", fmt.Errorf("canon: serialize: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ErrNotCanonicalizable is wrapped by canonicalizeReflective when v is not
// expressible in the JSON-like universe Canonicalize supports.
type ErrNotCanonicalizable struct {
	Type string
}

func (e *ErrNotCanonicalizable) Error() string {
	return fmt.Sprintf("canon: value of type %s is not canonicalizable", e.Type)
}
