package differ

import (
	"fmt"
	"sort"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dialect"
)

// diffColumns classifies every field on oldModel/model into dropped,
// added, and modified, resolves rename candidates through the oracle
// first, then emits DDL for whatever remains (spec.md §4.5 "Fields").
// When the dialect cannot express a modification directly
// (SupportsAlterColumn() == false, i.e. SQLite), the whole table is routed
// through the C3 rebuild instead of per-column ALTER statements.
func (b *builder) diffColumns(oldModel, model *core.Model) error {
	table := model.TableName()

	oldFields := fieldsByName(oldModel)
	curFields := fieldsByName(model)

	var dropped, added []string
	for _, name := range sortedFieldNames(oldFields) {
		if _, ok := curFields[name]; !ok {
			dropped = append(dropped, name)
		}
	}
	for _, name := range sortedFieldNames(curFields) {
		if _, ok := oldFields[name]; !ok {
			added = append(added, name)
		}
	}

	renames := b.resolveRenames(table, dropped, added, oldFields, curFields)
	dropped = subtractNames(dropped, renameOldNames(renames))
	added = subtractNames(added, renameNewNames(renames))

	var modified []string
	for _, name := range sortedFieldNames(curFields) {
		oldField, ok := oldFields[name]
		if !ok {
			continue
		}
		if !fieldsEqualForRename(oldField, curFields[name]) {
			modified = append(modified, name)
		}
	}

	needsRebuild := len(modified) > 0 && !b.gen.SupportsAlterColumn()
	if needsRebuild {
		return b.rebuildTable(oldModel, model, renames)
	}

	for newName, oldName := range renames {
		b.emit(b.gen.RenameColumn(table, oldName, newName), b.gen.RenameColumn(table, newName, oldName))
	}
	for _, name := range dropped {
		f := oldFields[name]
		spec := b.columnSpec(table, name, f)
		b.emit(b.gen.DropColumn(table, name), b.gen.AddColumn(table, spec))
	}
	for _, name := range added {
		f := curFields[name]
		spec := b.columnSpec(table, name, f)
		if !f.Nullable && !spec.HasDefault {
			b.warn(WarnAddNotNullWithoutDefault, fmt.Sprintf("table %q: column %q added NOT NULL without a default", table, name))
		}
		b.emit(b.gen.AddColumn(table, spec), b.gen.DropColumn(table, name))
	}
	for _, name := range modified {
		b.diffModifiedColumn(table, name, oldFields[name], curFields[name])
	}
	return nil
}

// diffModifiedColumn emits one ALTER statement (and its reverse) per
// attribute that changed between oldField and curField, per spec.md §4.5
// "Modify": type, nullability and default are each independent.
func (b *builder) diffModifiedColumn(table, name string, oldField, curField *core.Field) {
	oldSpec := b.columnSpec(table, name, oldField)
	curSpec := b.columnSpec(table, name, curField)

	if oldSpec.SQLType != curSpec.SQLType || oldField.Kind != curField.Kind {
		fwd := b.gen.AlterColumnType(table, curSpec)
		rev := b.gen.AlterColumnType(table, oldSpec)
		b.emitAll(fwd, rev)
	}
	if oldField.Nullable != curField.Nullable {
		fwd := b.gen.AlterColumnNullability(table, name, curField.Nullable)
		rev := b.gen.AlterColumnNullability(table, name, oldField.Nullable)
		b.emitAll(fwd, rev)
	}
	if !defaultsEqual(oldField.Default, curField.Default) {
		fwd := b.gen.AlterColumnDefault(table, name, curSpec)
		rev := b.gen.AlterColumnDefault(table, name, oldSpec)
		b.emitAll(fwd, rev)
	}
}

// emitAll pairs up parallel forward/reverse statement slices positionally;
// the dialect adapters always return slices of equal length for a single
// logical change (often length 1).
func (b *builder) emitAll(forward, reverse []string) {
	n := len(forward)
	if len(reverse) > n {
		n = len(reverse)
	}
	for i := 0; i < n; i++ {
		var f, r string
		if i < len(forward) {
			f = forward[i]
		}
		if i < len(reverse) {
			r = reverse[i]
		}
		b.emit(f, r)
	}
}

func fieldsByName(m *core.Model) map[string]*core.Field {
	out := make(map[string]*core.Field, len(m.Fields()))
	for _, of := range m.Fields() {
		out[of.Name] = of.Field
	}
	return out
}

// sortedFieldNames gives diffColumns a fixed iteration order over a
// fields-by-name map, so a table with several simultaneous column changes
// always emits its forward/reverse DDL in the same order across runs
// (spec.md §5's fixed-order emission guarantee), mirroring the
// core.sortedKeys pattern used when rebuilding a model from its view.
func sortedFieldNames(m map[string]*core.Field) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fieldsEqualForRename reports whether two fields have identical type,
// nullability and default, the rename-candidate prerequisite from
// spec.md §4.5 ("identical type, nullable, default").
func fieldsEqualForRename(a, b *core.Field) bool {
	return a.Kind == b.Kind &&
		a.Nullable == b.Nullable &&
		a.Precision == b.Precision &&
		a.Scale == b.Scale &&
		a.MaxLength == b.MaxLength &&
		stringSlicesEqual(a.Choices, b.Choices) &&
		defaultsEqual(a.Default, b.Default)
}

func defaultsEqual(a, b *core.FieldDefault) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.IsSQLFn != b.IsSQLFn {
		return false
	}
	if a.IsSQLFn {
		return a.Token() == b.Token()
	}
	return a.Literal == b.Literal
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// resolveRenames asks the oracle, for each (added x dropped) candidate
// pair with matching type/nullable/default, whether it is a rename. The
// first confirmed match for a given added/dropped name wins; both names
// are then excluded from further pairing.
func (b *builder) resolveRenames(table string, dropped, added []string, oldFields, curFields map[string]*core.Field) map[string]string {
	renames := map[string]string{}
	if b.opts.Oracle == nil {
		return renames
	}
	usedDropped := map[string]struct{}{}
	for _, newName := range added {
		curField := curFields[newName]
		for _, oldName := range dropped {
			if _, used := usedDropped[oldName]; used {
				continue
			}
			oldField := oldFields[oldName]
			if !fieldsEqualForRename(oldField, curField) {
				continue
			}
			if b.opts.Oracle.ConfirmRename(table, oldName, newName, "column") {
				renames[newName] = oldName
				usedDropped[oldName] = struct{}{}
				break
			}
		}
	}
	return renames
}

func renameOldNames(renames map[string]string) []string {
	out := make([]string, 0, len(renames))
	for _, old := range renames {
		out = append(out, old)
	}
	return out
}

func renameNewNames(renames map[string]string) []string {
	out := make([]string, 0, len(renames))
	for newName := range renames {
		out = append(out, newName)
	}
	return out
}

func subtractNames(all, remove []string) []string {
	removeSet := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		removeSet[r] = struct{}{}
	}
	out := make([]string, 0, len(all))
	for _, n := range all {
		if _, ok := removeSet[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// rebuildTable routes a modification the dialect cannot express directly
// through its Rebuilder capability (spec.md §4.3, C3). Only SQLite
// implements Rebuilder today; Postgres/MySQL always report
// SupportsAlterColumn() == true so this path is never reached for them.
func (b *builder) rebuildTable(oldModel, model *core.Model, renames map[string]string) error {
	rebuilder, ok := b.gen.(dialect.Rebuilder)
	if !ok {
		return fmt.Errorf("differ: dialect cannot alter columns directly and does not implement Rebuilder")
	}
	table := model.TableName()

	if err := rebuilder.RejectRebuild(table, b.opts.TableDDL, b.opts.TriggerBodies); err != nil {
		return err
	}

	oldColumns, err := b.renderColumns(oldModel)
	if err != nil {
		return err
	}
	newColumns, err := b.renderColumns(model)
	if err != nil {
		return err
	}
	pk, err := primaryKeyColumns(model)
	if err != nil {
		return err
	}

	indexes := make([]dialect.IndexSpec, 0, len(model.Meta.Indexes))
	for _, idx := range model.Meta.Indexes {
		indexes = append(indexes, dialect.IndexSpec{Name: idx.AutoName(table), Fields: idx.Fields, Unique: idx.Unique})
	}

	var triggerDDL []string
	for _, slot := range model.TriggerSlots() {
		trig, _ := model.Trigger(slot)
		for i, stmt := range trig.Statements {
			spec := dialect.TriggerSpec{
				Name:   core.StatementName(table, trig, i),
				Table:  table,
				Timing: string(trig.Timing),
				Event:  string(trig.Event),
				Body:   stmt.Body,
				When:   core.NormalizeWhen(stmt.When),
			}
			triggerDDL = append(triggerDDL, b.gen.RenderTrigger(spec)...)
		}
	}

	forward, reverse, warnings, err := rebuilder.RebuildTable(dialect.RebuildSpec{
		Table:         table,
		OldColumns:    oldColumns,
		NewColumns:    newColumns,
		NewPrimaryKey: pk,
		Renames:       renames,
		Indexes:       indexes,
		Triggers:      triggerDDL,
	})
	if err != nil {
		return err
	}
	b.result.Forward = append(b.result.Forward, forward...)
	b.result.Reverse = append(b.result.Reverse, reverse...)
	for _, w := range warnings {
		b.warn(WarnSQLiteRebuild, fmt.Sprintf("table %q: %s", table, w))
	}
	b.warn(WarnSQLiteRebuild, fmt.Sprintf("table %q: rebuilt to apply a column change the dialect cannot express via ALTER TABLE", table))
	return nil
}
