package core

import (
	"sort"
	"strings"
)

// Index is an ordered sequence of field names with an optional explicit
// name and a uniqueness flag. When Name is empty, AutoName synthesizes
// idx_<table>_<fields-joined-by-underscore> (spec.md §3).
type Index struct {
	Fields []string
	Unique bool
	Name   string
}

// NewIndex constructs an Index over the given fields.
func NewIndex(fields []string, unique bool, name ...string) *Index {
	idx := &Index{Fields: append([]string(nil), fields...), Unique: unique}
	if len(name) > 0 {
		idx.Name = name[0]
	}
	return idx
}

// AutoName returns idx.Name if set, else the synthesized name for table.
func (idx *Index) AutoName(table string) string {
	if idx.Name != "" {
		return idx.Name
	}
	return "idx_" + table + "_" + strings.Join(idx.Fields, "_")
}

// Key returns the dedup key used by the pre-checksum index-name
// normalization pass (spec.md §4.1): "<sorted fields>|<unique?>".
func (idx *Index) Key() string {
	sorted := append([]string(nil), idx.Fields...)
	sort.Strings(sorted)
	u := "0"
	if idx.Unique {
		u = "1"
	}
	return strings.Join(sorted, ",") + "|" + u
}

func (idx *Index) canonicalView(table string) map[string]any {
	return map[string]any{
		"fields": append([]string(nil), idx.Fields...),
		"unique": idx.Unique,
		"name":   idx.Name,
	}
}
