package sqlite

import (
	"fmt"
	"strings"

	"sql-buns-migrate/internal/dialect"
)

// RebuildPlan describes the full-table-rebuild SQLite requires whenever a
// mutation needs ALTER COLUMN, ADD CONSTRAINT, or a column drop/add SQLite
// cannot express directly (spec.md §4.3).
type RebuildPlan struct {
	Table       string
	NewTable    string // "<table>_new" (or "<table>_old" for the reverse)
	Columns     []ColumnMapping
	Indexes     []string // CREATE INDEX statements to recreate after rebuild
	Triggers    []string // CREATE TRIGGER statements to recreate after rebuild
	Warnings    []string
}

// ColumnMapping says how to populate one new-table column from the old
// table during the rebuild's INSERT INTO ... SELECT.
type ColumnMapping struct {
	NewColumn string
	// SourceExpr is the already-resolved source: an old column reference,
	// a renamed-from column reference, a default literal, or "NULL".
	SourceExpr string
}

// RebuildBlockedError is raised when the rebuild policy's pre-flight
// checks find an external reference to the table being rebuilt (spec.md
// §7 RebuildBlocked).
type RebuildBlockedError struct {
	Table  string
	Reason string
}

func (e *RebuildBlockedError) Error() string {
	return fmt.Sprintf("sqlite: cannot rebuild table %q: %s", e.Table, e.Reason)
}

// RejectRebuild reports why a rebuild cannot proceed, per spec.md §4.3
// steps (1) and (2): another table's FOREIGN KEY references this table, or
// a trigger body mentions it. Both checks are conservative (substring/
// name matching against sqlite_master) rather than full SQL parsing,
// documented in DESIGN.md's Open Question decision for C3.
func RejectRebuild(table string, otherTableDDL map[string]string, triggerBodies map[string]string) error {
	quotedForms := []string{fmt.Sprintf("REFERENCES %s", table), fmt.Sprintf("REFERENCES \"%s\"", table)}
	for other, ddl := range otherTableDDL {
		if other == table {
			continue
		}
		upper := strings.ToUpper(ddl)
		for _, form := range quotedForms {
			if strings.Contains(upper, strings.ToUpper(form)) {
				return &RebuildBlockedError{Table: table, Reason: fmt.Sprintf("table %q references it via foreign key", other)}
			}
		}
	}
	for trigName, body := range triggerBodies {
		if strings.Contains(strings.ToUpper(body), strings.ToUpper(table)) {
			return &RebuildBlockedError{Table: table, Reason: fmt.Sprintf("trigger %q references it", trigName)}
		}
	}
	return nil
}

// RejectRebuild implements dialect.Rebuilder's pre-flight hook by
// delegating to the package-level RejectRebuild free function.
func (g *Generator) RejectRebuild(table string, otherTableDDL, triggerBodies map[string]string) error {
	return RejectRebuild(table, otherTableDDL, triggerBodies)
}

// ResolveColumnSource implements step (5)'s per-new-column expression
// selection: the same-named old column if present, else the confirmed
// rename's old name, else the column's default literal, else NULL (with a
// caller-surfaced warning when the column is NOT NULL and has no default).
func ResolveColumnSource(newColumn string, oldColumns map[string]struct{}, renamedFrom string, defaultLiteral string, hasDefault, notNull bool) (expr string, warning string) {
	if _, ok := oldColumns[newColumn]; ok {
		return newColumn, ""
	}
	if renamedFrom != "" {
		if _, ok := oldColumns[renamedFrom]; ok {
			return renamedFrom, ""
		}
	}
	if hasDefault {
		return defaultLiteral, ""
	}
	if notNull {
		return "NULL", fmt.Sprintf("column %q is NOT NULL with no default; rebuilt rows will violate the constraint unless backfilled", newColumn)
	}
	return "NULL", ""
}

// BuildRebuildStatements emits the full statement sequence for plan,
// assuming the caller has already disabled and will re-enable FK
// enforcement around this sequence (steps 3 and 8 are connection-level
// PRAGMA statements issued by the migration executor, not part of this
// list, since they apply once per transaction rather than per table).
func BuildRebuildStatements(g *Generator, plan RebuildPlan, createNewTableDDL string) []string {
	stmts := make([]string, 0, 4+len(plan.Indexes)+len(plan.Triggers))
	stmts = append(stmts, createNewTableDDL)

	cols := make([]string, len(plan.Columns))
	sources := make([]string, len(plan.Columns))
	for i, cm := range plan.Columns {
		cols[i] = g.QuoteIdentifier(cm.NewColumn)
		sources[i] = cm.SourceExpr
	}
	stmts = append(stmts, fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s;",
		g.QuoteIdentifier(plan.NewTable), strings.Join(cols, ", "), strings.Join(sources, ", "), g.QuoteIdentifier(plan.Table),
	))
	stmts = append(stmts, g.DropTable(plan.Table))
	stmts = append(stmts, g.RenameTable(plan.NewTable, plan.Table))
	stmts = append(stmts, plan.Indexes...)
	stmts = append(stmts, plan.Triggers...)
	return stmts
}

// RebuildTable implements dialect.Rebuilder for SQLite: build the new
// table under a temporary name, copy rows across with ResolveColumnSource
// picking each column's source expression, drop the old table, rename the
// new one into place, and recreate indexes/triggers. The reverse direction
// runs the same recipe with OldColumns/NewColumns swapped and renames
// inverted, so applying forward then reverse restores the original table.
func (g *Generator) RebuildTable(spec dialect.RebuildSpec) (forward, reverse, warnings []string, err error) {
	fwd, fwdWarn := g.buildRebuildDirection(spec.Table, spec.Table+"_new", spec.OldColumns, spec.NewColumns, spec.NewPrimaryKey, spec.Renames, spec.Indexes, spec.Triggers)

	invertedRenames := make(map[string]string, len(spec.Renames))
	for newName, oldName := range spec.Renames {
		invertedRenames[oldName] = newName
	}
	oldPK := make([]string, 0, len(spec.OldColumns))
	for _, c := range spec.OldColumns {
		if c.PrimaryKey {
			oldPK = append(oldPK, c.Name)
		}
	}
	rev, _ := g.buildRebuildDirection(spec.Table, spec.Table+"_old", spec.NewColumns, spec.OldColumns, oldPK, invertedRenames, nil, nil)

	return fwd, rev, fwdWarn, nil
}

// buildRebuildDirection renders one direction (forward or reverse) of a
// rebuild: CREATE the replacement table under newTableName, INSERT...SELECT
// from the live table using ResolveColumnSource per target column, drop the
// live table, rename the replacement into place, then recreate indexes and
// triggers.
func (g *Generator) buildRebuildDirection(liveTable, newTableName string, fromColumns, toColumns []dialect.ColumnSpec, primaryKey []string, renames map[string]string, indexes []dialect.IndexSpec, triggers []string) ([]string, []string) {
	oldColumnSet := make(map[string]struct{}, len(fromColumns))
	for _, c := range fromColumns {
		oldColumnSet[c.Name] = struct{}{}
	}

	mappings := make([]ColumnMapping, 0, len(toColumns))
	var warnings []string
	for _, col := range toColumns {
		expr, warn := ResolveColumnSource(col.Name, oldColumnSet, renames[col.Name], col.DefaultSQL, col.HasDefault, !col.Nullable)
		mappings = append(mappings, ColumnMapping{NewColumn: col.Name, SourceExpr: expr})
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	createDDL := g.CreateTable(newTableName, toColumns, primaryKey, nil)

	indexDDL := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		indexDDL = append(indexDDL, g.CreateIndex(liveTable, idx.Name, idx.Fields, idx.Unique))
	}

	plan := RebuildPlan{
		Table:    liveTable,
		NewTable: newTableName,
		Columns:  mappings,
		Indexes:  indexDDL,
		Triggers: triggers,
		Warnings: warnings,
	}
	return BuildRebuildStatements(g, plan, createDDL), warnings
}
