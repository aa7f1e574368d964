package core

// Schema is an ordered model-key -> Model mapping, ordered by topological
// sort over relation dependencies (spec.md §3). Construction of that order
// lives in package depgraph, which depends on core; Schema itself is just
// the ordered container so core has no dependency on depgraph.
type Schema struct {
	keys   []string
	models map[string]*Model
}

// NewSchemaInOrder builds a Schema from an explicit key order and a lookup
// map. Callers (depgraph.Resolve) are expected to have already computed the
// topological order; NewSchemaInOrder performs no reordering itself.
func NewSchemaInOrder(order []string, models map[string]*Model) *Schema {
	s := &Schema{keys: append([]string(nil), order...), models: make(map[string]*Model, len(models))}
	for k, v := range models {
		s.models[k] = v
	}
	return s
}

// Keys returns model keys in topological order.
func (s *Schema) Keys() []string { return append([]string(nil), s.keys...) }

// Model looks up a model by key.
func (s *Schema) Model(key string) (*Model, bool) {
	m, ok := s.models[key]
	return m, ok
}

// Models returns the models in topological order.
func (s *Schema) Models() []*Model {
	out := make([]*Model, 0, len(s.keys))
	for _, k := range s.keys {
		if m, ok := s.models[k]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ByTableName looks up a model by its effective table name rather than its
// model key, which the differ needs since "old" and "current" schemas may
// key models differently but agree on table names (spec.md §4.5).
func (s *Schema) ByTableName(table string) (*Model, bool) {
	for _, m := range s.models {
		if m.TableName() == table {
			return m, true
		}
	}
	return nil, false
}

// CanonicalView returns the deterministic, ordered JSON view of the whole
// schema: a mapping from model key to the model's canonical view, in
// topological order (Go's encoding/json sorts map keys alphabetically on
// marshal regardless, so canon.Canonicalize re-sorts; the topological Keys
// order is preserved separately for snapshot file generation that wants
// insertion order, via OrderedCanonicalView).
func (s *Schema) CanonicalView() map[string]any {
	out := make(map[string]any, len(s.keys))
	for _, k := range s.keys {
		if m, ok := s.models[k]; ok {
			out[k] = m.canonicalView()
		}
	}
	return out
}

// OrderedCanonicalView returns the same data as CanonicalView but as a
// slice of key/value pairs preserving topological order, for snapshot
// writers that want insertion-ordered JSON rather than a map.
type KeyedView struct {
	Key  string
	View map[string]any
}

func (s *Schema) OrderedCanonicalView() []KeyedView {
	out := make([]KeyedView, 0, len(s.keys))
	for _, k := range s.keys {
		if m, ok := s.models[k]; ok {
			out = append(out, KeyedView{Key: k, View: m.canonicalView()})
		}
	}
	return out
}
