// Package core contains the normalized in-memory schema graph: fields,
// relations, indexes, triggers, models and the schema that groups them. It is
// the single source of truth every other package (differ, dialect, snapshot,
// migrate) builds on.
package core

import "fmt"

// InvalidSchemaError signals a structural violation of the schema graph that
// is not tied to one specific field/relation/trigger (composite PK combined
// with auto-increment, a relation target missing from both the database and
// the batch, a non-canonicalizable value reaching the checksum path, ...).
type InvalidSchemaError struct {
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema: %s", e.Reason)
}

// InvalidFieldError is raised by field constructors when the supplied
// options violate a field invariant (e.g. an enum default outside choices).
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// InvalidRelationError is raised by relation construction when kind is
// outside the enumerated set, the target model name is missing, or a
// manyToMany relation is missing its opposite-key column name (an omitted
// through table name is auto-generated, not an error).
type InvalidRelationError struct {
	Relation string
	Reason   string
}

func (e *InvalidRelationError) Error() string {
	return fmt.Sprintf("invalid relation %q: %s", e.Relation, e.Reason)
}

// InvalidTriggerError is raised when a trigger slot's statements fail
// structural validation (empty statement list, unknown event/timing).
type InvalidTriggerError struct {
	Trigger string
	Reason  string
}

func (e *InvalidTriggerError) Error() string {
	return fmt.Sprintf("invalid trigger %q: %s", e.Trigger, e.Reason)
}

// CyclicSchemaError is raised by the dependency resolver when the
// relation-target graph is not a DAG. Path records the full cycle, in visit
// order, with the first node repeated at the end (A -> B -> A).
type CyclicSchemaError struct {
	Path []string
}

func (e *CyclicSchemaError) Error() string {
	return fmt.Sprintf("cyclic schema: %v", e.Path)
}
