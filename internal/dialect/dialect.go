// Package dialect provides a unified interface for the three supported SQL
// dialects (Postgres, MySQL, SQLite) so that the differ never embeds
// dialect-specific string literals itself (spec.md §4.3, C3).
package dialect

import (
	"fmt"
	"sync"

	"sql-buns-migrate/internal/core"
)

type Type string

const (
	Postgres Type = "postgres"
	MySQL    Type = "mysql"
	SQLite   Type = "sqlite"
)

// EnumSpec describes an enum column's allowed values, used by both column
// rendering and the Postgres CREATE TYPE emission.
type EnumSpec struct {
	Table, Column string
	Choices       []string
	// TypeName overrides the generated enum_<table>_<column>_<hash> name
	// (Postgres only); empty means "generate it".
	TypeName string
}

// ColumnSpec is the dialect-neutral description of a column the generator
// renders into dialect-specific DDL fragments.
type ColumnSpec struct {
	Name          string
	SQLType       string // base type token, e.g. "INTEGER", "VARCHAR(255)"
	Nullable      bool
	DefaultSQL    string // already-rendered default expression, or ""
	HasDefault    bool
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
	Comment       string
	Enum          *EnumSpec
}

// TriggerSpec is the dialect-neutral description of one trigger statement.
type TriggerSpec struct {
	Name   string
	Table  string
	Timing string // BEFORE | AFTER
	Event  string // INSERT | UPDATE | DELETE
	Body   string // statement body as authored in the model (not normalized)
	When   string // already-normalized predicate, no WHEN keyword, no parens
}

// Generator renders dialect-specific DDL for the differ (C5). Every method
// is pure text generation; it never touches a live connection.
type Generator interface {
	QuoteIdentifier(name string) string
	QuoteString(value string) string

	// ColumnType maps a field's logical kind and size attributes to this
	// dialect's base SQL type token (e.g. "VARCHAR(255)", "NUMERIC(10,2)").
	// Enum and auto-increment columns override this at render time.
	ColumnType(f *core.Field) string

	// RenderDefault renders a field's default value (literal or SQL
	// function token) into a SQL expression, or "" if the field has no
	// default (spec.md §4.3: strings are single-quoted with doubled
	// quotes; recognized tokens such as CURRENT_TIMESTAMP are unquoted).
	RenderDefault(d *core.FieldDefault) string

	// RenderColumn renders a column definition fragment suitable for use
	// inside CREATE TABLE or an ADD COLUMN clause, without a trailing
	// comma.
	RenderColumn(col ColumnSpec) string

	// AutoIncrementPrimaryKeyToken renders the single-column inline PK
	// form for an auto-increment column, e.g. "SERIAL PRIMARY KEY", or
	// "" when the dialect has no such token. The differ does not call it;
	// each dialect's CreateTable decides on its own whether the key is
	// rendered inline or as a PRIMARY KEY(...) clause.
	AutoIncrementPrimaryKeyToken(col ColumnSpec) string

	CreateTable(table string, columns []ColumnSpec, primaryKey []string, foreignKeys []string) string
	DropTable(table string) string
	RenameTable(oldName, newName string) string

	AddColumn(table string, col ColumnSpec) string
	DropColumn(table, column string) string
	RenameColumn(table, oldName, newName string) string
	AlterColumnType(table string, col ColumnSpec) []string
	AlterColumnNullability(table, column string, nullable bool) []string
	AlterColumnDefault(table, column string, col ColumnSpec) []string

	CreateIndex(table, name string, columns []string, unique bool) string
	DropIndex(table, name string) string

	AddForeignKey(table, constraintName, column, refTable, refColumn string) string
	CreateJoinTable(through, fkColumn, baseTable, otherKeyColumn, otherTable string) string

	// CreateEnumType emits the Postgres CREATE TYPE statement, or "" for
	// dialects where enums are inline.
	CreateEnumType(spec EnumSpec) string
	DropEnumType(spec EnumSpec) string
	EnumTypeName(spec EnumSpec) string

	RenderTrigger(t TriggerSpec) []string
	DropTrigger(name, table string) []string

	// SupportsAlterColumn reports whether the dialect can express a
	// column alteration via ALTER TABLE directly; false forces the C3
	// rebuild path (SQLite).
	SupportsAlterColumn() bool
	SupportsAddConstraint() bool
}

// Dialect bundles a Generator with its Type tag.
type Dialect interface {
	Name() Type
	Generator() Generator
}

// IndexSpec is the dialect-neutral description of an index to recreate
// after a rebuild.
type IndexSpec struct {
	Name   string
	Fields []string
	Unique bool
}

// RebuildSpec describes a full-table rebuild: the table's old and new
// column sets, the new primary key, any confirmed column renames
// (new name -> old name), and the indexes/trigger statements to recreate
// once the rebuilt table is in place (spec.md §4.3).
type RebuildSpec struct {
	Table         string
	OldColumns    []ColumnSpec
	NewColumns    []ColumnSpec
	NewPrimaryKey []string
	Renames       map[string]string
	Indexes       []IndexSpec
	Triggers      []string
}

// Rebuilder is an optional capability a Generator may implement when some
// mutations cannot be expressed via ALTER TABLE directly and instead
// require replacing the table wholesale (spec.md §4.3's SQLite rebuild
// policy, C3). The differ type-asserts for this interface rather than the
// dialect-neutral Generator interface requiring every dialect to implement
// it, since Postgres/MySQL never need it (SupportsAlterColumn() is true).
type Rebuilder interface {
	RebuildTable(spec RebuildSpec) (forward, reverse, warnings []string, err error)

	// RejectRebuild runs the rebuild policy's external-reference
	// pre-flight (spec.md §4.3 steps 1/2) before RebuildTable is called.
	// otherTableDDL and triggerBodies are the live database's own schema
	// catalog; the caller supplies them since Diff itself holds no
	// connection. Either map may be nil when the caller has none to
	// offer (e.g. a dry-run diff with no live database), in which case
	// the check is skipped.
	RejectRebuild(table string, otherTableDDL, triggerBodies map[string]string) error
}

// UnsupportedDialectError is raised when DATABASE_ENGINE is missing or
// names a dialect with no registered adapter (spec.md §7 DialectUnsupported).
type UnsupportedDialectError struct {
	Requested string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("dialect %q is not supported (expected postgres, mysql, or sqlite)", e.Requested)
}

var (
	registryMu sync.RWMutex
	registry   = map[Type]func() Dialect{}
)

// RegisterDialect registers a constructor for d. Adapter packages call this
// from an init() so importing them for side effect is enough to make them
// available via GetDialect.
func RegisterDialect(d Type, ctor func() Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d] = ctor
}

// GetDialect looks up a registered dialect by type.
func GetDialect(d Type) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[d]
	if !ok {
		return nil, &UnsupportedDialectError{Requested: string(d)}
	}
	return ctor(), nil
}
