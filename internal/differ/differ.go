// Package differ computes the forward/reverse DDL and warnings for a pair
// of schemas (spec.md §4.5, C5). It is the largest single component: table
// creation/drop, column add/drop/modify/rename, relation resolution,
// trigger re-creation, and index changes, all dialect-neutral except for
// the actual DDL strings, which come from internal/dialect.
package differ

import (
	"fmt"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dialect"
	"sql-buns-migrate/internal/rename"
)

// Warning is a non-fatal note surfaced to the user, carrying a machine
// checkable Code alongside the human message (grounded in the teacher's
// typed breaking-change values rather than bare strings).
type Warning struct {
	Code    string
	Message string
}

const (
	WarnAddNotNullWithoutDefault = "add-not-null-without-default"
	WarnDroppedTable             = "dropped-table"
	WarnCommentNotTranslated     = "comment-not-translated"
	WarnSQLiteRebuild            = "sqlite-rebuild"
)

// Result is the differ's output contract: forward[] applied then
// reverse[] applied returns the database to the state represented by old.
type Result struct {
	Forward  []string
	Reverse  []string
	Warnings []Warning
}

// Options configures one Diff call.
type Options struct {
	Dialect dialect.Dialect
	Oracle  rename.Oracle

	// Validator confirms every table/column a trigger statement body
	// references exists (spec.md §4.8, C8). Nil skips validation.
	Validator TriggerValidator

	// TableExists/ColumnExists answer "does this already exist in the
	// live database" for relation resolution (spec.md §4.5 decision
	// table). A nil function is treated as always returning false, which
	// is the correct behavior on first-ever create.
	TableExists  func(table string) bool
	ColumnExists func(table, column string) bool

	// TableDDL/TriggerBodies are the live SQLite database's own schema
	// catalog (sqlite_master), fetched once by the caller before Diff
	// runs since Diff itself takes no connection. They back the rebuild
	// policy's external-reference pre-flight (spec.md §4.3 steps 1/2);
	// nil on any other dialect, where they're never consulted.
	TableDDL      map[string]string
	TriggerBodies map[string]string
}

func (o Options) tableExists(table string) bool {
	if o.TableExists == nil {
		return false
	}
	return o.TableExists(table)
}

func (o Options) columnExists(table, column string) bool {
	if o.ColumnExists == nil {
		return false
	}
	return o.ColumnExists(table, column)
}

// deferredRelation queues a relation whose owning or target table is not
// yet resolvable within this batch alone.
type deferredRelation struct {
	ownerTable string
	relName    string
	rel        *core.Relation
	reverse    bool // true if this entry came from a removed (old-only) relation
}

type builder struct {
	opts     Options
	gen      dialect.Generator
	result   Result
	deferred []deferredRelation
	current  *core.Schema
}

// Diff implements the C5 contract over old and current, already ordered
// topologically by depgraph.Resolve.
func Diff(old, current *core.Schema, opts Options) (*Result, error) {
	if opts.Dialect == nil {
		return nil, fmt.Errorf("differ: Options.Dialect is required")
	}
	b := &builder{opts: opts, gen: opts.Dialect.Generator(), current: current}

	for _, model := range current.Models() {
		if err := b.diffModel(old, model); err != nil {
			return nil, err
		}
	}
	b.diffDroppedTables(old, current)
	b.flushDeferredRelations(current)

	return &b.result, nil
}

// targetModel resolves a relation's Target (a model name, spec.md §3) to
// its model in the current schema, if present in this batch at all.
func (b *builder) targetModel(target string) (*core.Model, bool) {
	return b.current.Model(target)
}

// targetTable resolves a relation's Target to the table name the live
// database would know it by: the in-batch model's effective table name if
// the target is part of this batch, else the Target string itself (the
// common case once a model has already been migrated and Target and
// TableName have diverged is rare, but this covers it conservatively).
func (b *builder) targetTable(target string) string {
	if m, ok := b.targetModel(target); ok {
		return m.TableName()
	}
	return target
}

func (b *builder) warn(code, msg string) {
	b.result.Warnings = append(b.result.Warnings, Warning{Code: code, Message: msg})
}

func (b *builder) emit(forward, reverse string) {
	if forward != "" {
		b.result.Forward = append(b.result.Forward, forward)
	}
	if reverse != "" {
		b.result.Reverse = append(b.result.Reverse, reverse)
	}
}
