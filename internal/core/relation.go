package core

import "fmt"

// RelationKind enumerates the supported relation shapes. Relations are
// unidirectional in the data model; the parent-side expression is canonical
// (spec.md §3).
type RelationKind string

const (
	HasOne     RelationKind = "hasOne"
	HasMany    RelationKind = "hasMany"
	ManyToMany RelationKind = "manyToMany"
)

func (k RelationKind) valid() bool {
	switch k {
	case HasOne, HasMany, ManyToMany:
		return true
	default:
		return false
	}
}

// Relation attaches a foreign-key-backed edge from the owning model to a
// target model.
type Relation struct {
	Kind RelationKind

	// Target is the model name the relation points at.
	Target string

	// ForeignKey is the column name on the owning side.
	ForeignKey string

	// ManyToMany-only.
	OtherKey    string
	ThroughName string
}

// RelationOption configures a Relation under construction.
type RelationOption func(*Relation)

func WithOtherKey(name string) RelationOption {
	return func(r *Relation) { r.OtherKey = name }
}

func WithThroughTable(name string) RelationOption {
	return func(r *Relation) { r.ThroughName = name }
}

// NewRelation constructs a Relation. kind outside the enumerated set returns
// InvalidRelationError (spec.md §4.2). For manyToMany, an omitted through
// table name is auto-generated by Model construction (base_target_link)
// once the owning model's name is known.
func NewRelation(name string, kind RelationKind, target, foreignKey string, opts ...RelationOption) (*Relation, error) {
	if !kind.valid() {
		return nil, &InvalidRelationError{Relation: name, Reason: fmt.Sprintf("unknown relation kind %q", kind)}
	}
	if target == "" {
		return nil, &InvalidRelationError{Relation: name, Reason: "target model name is required"}
	}
	r := &Relation{Kind: kind, Target: target, ForeignKey: foreignKey}
	for _, opt := range opts {
		opt(r)
	}
	if kind == ManyToMany && r.OtherKey == "" {
		return nil, &InvalidRelationError{Relation: name, Reason: "manyToMany relation requires an opposite-key column name"}
	}
	return r, nil
}

func (r *Relation) canonicalView() map[string]any {
	v := map[string]any{
		"kind":       string(r.Kind),
		"target":     r.Target,
		"foreignKey": r.ForeignKey,
	}
	if r.Kind == ManyToMany {
		v["otherKey"] = r.OtherKey
		v["through"] = r.ThroughName
	}
	return v
}
