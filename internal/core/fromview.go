package core

import (
	"fmt"
	"sort"
)

// ModelFromView reconstructs a Model from the canonical map CanonicalView
// produced (spec.md §8's round-trip invariant:
// checksum(canonicalize(S)) == checksum(canonicalize(deserialize(serialize(canonicalize(S)))))).
// It is the counterpart the snapshot reader needs to turn
// schema_snapshot.json back into a *Schema the differ can diff against,
// since the JSON on disk only ever holds the canonical view, not a
// constructor call trace. Because the view was produced by a Model that
// already passed construction-time validation, ModelFromView reconstructs
// the struct fields directly rather than re-running the New*Field/
// NewRelation/NewTrigger constructors.
func ModelFromView(view map[string]any) (*Model, error) {
	name, _ := view["name"].(string)
	if name == "" {
		return nil, &InvalidSchemaError{Reason: "snapshot model view is missing \"name\""}
	}

	m := &Model{Name: name, triggers: map[TriggerSlot]*Trigger{}}

	if tableName, ok := view["tableName"].(string); ok && tableName != name {
		m.Meta.TableName = tableName
	}

	fieldsView, _ := view["fields"].(map[string]any)
	for _, fname := range sortedKeys(fieldsView) {
		fv, ok := fieldsView[fname].(map[string]any)
		if !ok {
			return nil, &InvalidSchemaError{Reason: fmt.Sprintf("model %q: field %q view is malformed", name, fname)}
		}
		f, err := fieldFromView(fv)
		if err != nil {
			return nil, fmt.Errorf("model %q field %q: %w", name, fname, err)
		}
		m.fields = append(m.fields, orderedField{Name: fname, Field: f})
	}

	relationsView, _ := view["relations"].(map[string]any)
	for _, rname := range sortedKeys(relationsView) {
		rv, ok := relationsView[rname].(map[string]any)
		if !ok {
			return nil, &InvalidSchemaError{Reason: fmt.Sprintf("model %q: relation %q view is malformed", name, rname)}
		}
		r, err := relationFromView(rv)
		if err != nil {
			return nil, fmt.Errorf("model %q relation %q: %w", name, rname, err)
		}
		m.relations = append(m.relations, orderedRelation{Name: rname, Relation: r})
	}

	triggersView, _ := view["triggers"].(map[string]any)
	for slotName, tv := range triggersView {
		tvMap, ok := tv.(map[string]any)
		if !ok {
			return nil, &InvalidSchemaError{Reason: fmt.Sprintf("model %q: trigger %q view is malformed", name, slotName)}
		}
		slot := TriggerSlot(slotName)
		t, err := triggerFromView(slot, tvMap)
		if err != nil {
			return nil, fmt.Errorf("model %q trigger %q: %w", name, slotName, err)
		}
		m.triggers[slot] = t
	}

	if metaView, ok := view["meta"].(map[string]any); ok {
		if comment, ok := metaView["comment"].(string); ok {
			m.Meta.Comment = comment
		}
		if ts, ok := metaView["timestamps"].(bool); ok {
			m.Meta.Timestamps.Enabled = ts
		}
		if indexesView, ok := metaView["indexes"].([]any); ok {
			for _, iv := range indexesView {
				ivMap, ok := iv.(map[string]any)
				if !ok {
					continue
				}
				m.Meta.Indexes = append(m.Meta.Indexes, indexFromView(ivMap))
			}
		}
	}

	return m, nil
}

func fieldFromView(v map[string]any) (*Field, error) {
	kind, _ := v["kind"].(string)
	f := &Field{Kind: FieldKind(kind)}
	f.Nullable, _ = v["nullable"].(bool)
	f.Precision = intFromView(v["precision"])
	f.Scale = intFromView(v["scale"])
	f.MaxLength = intFromView(v["maxLength"])
	if choices, ok := v["choices"].([]any); ok {
		for _, c := range choices {
			if s, ok := c.(string); ok {
				f.Choices = append(f.Choices, s)
			}
		}
	}
	if def, ok := v["default"].(map[string]any); ok {
		if sqlTok, ok := def["sql"].(string); ok {
			f.Default = SQLDefault(sqlTok)
		} else if lit, ok := def["literal"].(string); ok {
			f.Default = LiteralDefault(lit)
		}
	}
	f.Unique, _ = v["unique"].(bool)
	f.PrimaryKey, _ = v["primaryKey"].(bool)
	f.AutoIncrement, _ = v["autoIncrement"].(bool)
	f.Comment, _ = v["comment"].(string)
	return f, nil
}

func relationFromView(v map[string]any) (*Relation, error) {
	kind, _ := v["kind"].(string)
	target, _ := v["target"].(string)
	fk, _ := v["foreignKey"].(string)
	if target == "" {
		return nil, &InvalidRelationError{Reason: "missing target"}
	}
	r := &Relation{Kind: RelationKind(kind), Target: target, ForeignKey: fk}
	r.OtherKey, _ = v["otherKey"].(string)
	r.ThroughName, _ = v["through"].(string)
	return r, nil
}

func triggerFromView(slot TriggerSlot, v map[string]any) (*Trigger, error) {
	meta, ok := slotMeta[slot]
	if !ok {
		return nil, &InvalidTriggerError{Trigger: string(slot), Reason: "unknown trigger slot"}
	}
	t := &Trigger{Timing: meta.Timing, Event: meta.Event, BaseName: string(slot)}
	stmts, _ := v["statements"].([]any)
	for _, s := range stmts {
		sm, ok := s.(map[string]any)
		if !ok {
			continue
		}
		body, _ := sm["body"].(string)
		when, _ := sm["when"].(string)
		t.Statements = append(t.Statements, Statement{Body: body, When: when})
	}
	return t, nil
}

func indexFromView(v map[string]any) *Index {
	idx := &Index{}
	idx.Name, _ = v["name"].(string)
	idx.Unique, _ = v["unique"].(bool)
	if fields, ok := v["fields"].([]any); ok {
		for _, f := range fields {
			if s, ok := f.(string); ok {
				idx.Fields = append(idx.Fields, s)
			}
		}
	}
	return idx
}

func intFromView(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
