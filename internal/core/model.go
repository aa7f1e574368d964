package core

import (
	"fmt"
	"sort"
)

// TimestampsConfig carries the model's timestamps flag (spec.md §3,
// Model.metadata.timestamps). The flag is recorded in the canonical view
// and the snapshot only; no created_at/updated_at columns are injected
// from it.
type TimestampsConfig struct {
	Enabled bool
}

// Meta carries per-model configuration that is not itself a field,
// relation or trigger: a table-name override, indexes, a comment, and the
// timestamps flag.
type Meta struct {
	TableName  string
	Indexes    []*Index
	Comment    string
	Timestamps TimestampsConfig
}

// orderedField pairs a field name with its definition, preserving
// declaration order the way Model.Fields must (spec.md §3: "ordered
// mapping field name -> Field").
type orderedField struct {
	Name  string
	Field *Field
}

type orderedRelation struct {
	Name     string
	Relation *Relation
}

// Model is a table: an ordered field map, a relation map, a trigger-slot
// map, and metadata. It is constructed once via NewModel from raw field
// descriptors and never mutated afterward (spec.md §3 Lifecycles).
//
// User-attached methods are not part of the schema and have no
// representation here at all — per spec.md §9's design note, a Model only
// exposes data; host-language methods receive the model by explicit
// parameter and call the free function AssertParams for validation.
type Model struct {
	Name      string
	fields    []orderedField
	relations []orderedRelation
	triggers  map[TriggerSlot]*Trigger
	Meta      Meta
}

// FieldSpec is either a ready-made *Field or a deferred constructor call
// (mirroring the source's "{type: constructor, ...opts}" shorthand, spec.md
// §9) resolved at Model construction time.
type FieldSpec struct {
	Field       *Field
	Constructor func() (*Field, error)
}

// RelationSpec mirrors FieldSpec for relations.
type RelationSpec struct {
	Relation *Relation
}

// NewModel normalizes field descriptors (accepting either a *Field or a
// constructor), materializes relations, and maps trigger slots, producing a
// frozen Model. Field and relation order follows the order of the fields/
// relations slices, which callers should build by literally iterating their
// host-language declaration in order.
func NewModel(name string, fields []NamedFieldSpec, relations []NamedRelationSpec, triggers map[TriggerSlot]*Trigger, meta Meta) (*Model, error) {
	m := &Model{Name: name, triggers: map[TriggerSlot]*Trigger{}, Meta: meta}

	seenField := make(map[string]struct{}, len(fields))
	pkCount := 0
	for _, nf := range fields {
		f := nf.Spec.Field
		if f == nil && nf.Spec.Constructor != nil {
			var err error
			f, err = nf.Spec.Constructor()
			if err != nil {
				return nil, err
			}
		}
		if f == nil {
			return nil, &InvalidFieldError{Field: nf.Name, Reason: "field spec has neither a Field nor a constructor"}
		}
		if err := f.Validate(nf.Name); err != nil {
			return nil, err
		}
		if _, dup := seenField[nf.Name]; dup {
			return nil, &InvalidSchemaError{Reason: fmt.Sprintf("model %q: duplicate field %q", name, nf.Name)}
		}
		seenField[nf.Name] = struct{}{}
		if f.PrimaryKey {
			pkCount++
		}
		m.fields = append(m.fields, orderedField{Name: nf.Name, Field: f})
	}

	if pkCount > 1 {
		for _, of := range m.fields {
			if of.Field.AutoIncrement {
				return nil, &InvalidSchemaError{Reason: fmt.Sprintf("model %q: auto-increment cannot be combined with a composite primary key", name)}
			}
		}
	}

	seenRel := make(map[string]struct{}, len(relations))
	for _, nr := range relations {
		if _, dup := seenRel[nr.Name]; dup {
			return nil, &InvalidRelationError{Relation: nr.Name, Reason: "duplicate relation name"}
		}
		seenRel[nr.Name] = struct{}{}
		r := nr.Spec.Relation
		if r.Kind == ManyToMany && r.ThroughName == "" {
			r.ThroughName = name + "_" + r.Target + "_link"
		}
		m.relations = append(m.relations, orderedRelation{Name: nr.Name, Relation: r})
	}

	for slot, t := range triggers {
		if _, ok := slotMeta[slot]; !ok {
			return nil, &InvalidTriggerError{Trigger: string(slot), Reason: "unknown trigger slot"}
		}
		m.triggers[slot] = t
	}

	return m, nil
}

// NamedFieldSpec pairs a field name with its spec, used to preserve
// declaration order across the map-like field collection.
type NamedFieldSpec struct {
	Name string
	Spec FieldSpec
}

// NamedRelationSpec pairs a relation name with its spec.
type NamedRelationSpec struct {
	Name string
	Spec RelationSpec
}

// TableName returns the effective table name: Meta.TableName if set, else
// the model name (spec.md glossary "Effective table name").
func (m *Model) TableName() string {
	if m.Meta.TableName != "" {
		return m.Meta.TableName
	}
	return m.Name
}

// Fields returns the field list in declaration order.
func (m *Model) Fields() []orderedField { return m.fields }

// Field looks up a field by name.
func (m *Model) Field(name string) (*Field, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f.Field, true
		}
	}
	return nil, false
}

// FieldNames returns field names in declaration order.
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.Name
	}
	return names
}

// Relations returns the relation list in declaration order.
func (m *Model) Relations() []orderedRelation { return m.relations }

// Trigger returns the trigger attached to slot, if any.
func (m *Model) Trigger(slot TriggerSlot) (*Trigger, bool) {
	t, ok := m.triggers[slot]
	return t, ok
}

// TriggerSlots returns the set of occupied slot names, sorted for
// deterministic iteration.
func (m *Model) TriggerSlots() []TriggerSlot {
	slots := make([]TriggerSlot, 0, len(m.triggers))
	for s := range m.triggers {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// canonicalView produces the deterministic, exhaustive JSON view used for
// checksumming and the on-disk snapshot (spec.md §4.2). Help text and user
// methods are excluded by construction — Model has no representation for
// either.
func (m *Model) canonicalView() map[string]any {
	fields := map[string]any{}
	for _, f := range m.fields {
		fields[f.Name] = f.Field.canonicalView()
	}
	relations := map[string]any{}
	for _, r := range m.relations {
		relations[r.Name] = r.Relation.canonicalView()
	}
	triggers := map[string]any{}
	for slot, t := range m.triggers {
		triggers[string(slot)] = t.canonicalView()
	}
	indexes := make([]map[string]any, 0, len(m.Meta.Indexes))
	for _, idx := range m.Meta.Indexes {
		indexes = append(indexes, idx.canonicalView(m.TableName()))
	}
	return map[string]any{
		"name":      m.Name,
		"tableName": m.TableName(),
		"fields":    fields,
		"relations": relations,
		"triggers":  triggers,
		"meta": map[string]any{
			"comment":    m.Meta.Comment,
			"timestamps": m.Meta.Timestamps.Enabled,
			"indexes":    indexes,
		},
	}
}

// CanonicalView exposes the model's canonical view for checksumming and
// snapshotting (spec.md §9: "replace implicit toJSON with an explicit
// canonicalView() accessor").
func (m *Model) CanonicalView() map[string]any { return m.canonicalView() }
