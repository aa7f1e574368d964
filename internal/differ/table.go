package differ

import (
	"fmt"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dialect"
)

// namedRelation pairs a relation name with its spec, local to this
// package since core.Model.Relations() returns an unexported element type.
type namedRelation struct {
	name string
	rel  *core.Relation
}

// diffModel handles one current-side model: locate its old counterpart by
// effective table name (not by model key, per spec.md §4.5), then dispatch
// to new-table or existing-table handling.
func (b *builder) diffModel(old *core.Schema, model *core.Model) error {
	table := model.TableName()
	oldModel, existed := old.ByTableName(table)
	if !existed {
		return b.diffNewTable(model)
	}
	if oldModel.TableName() != table {
		b.emit(b.gen.RenameTable(oldModel.TableName(), table), b.gen.RenameTable(table, oldModel.TableName()))
	}
	b.diffIndexes(oldModel, model)
	if err := b.diffColumns(oldModel, model); err != nil {
		return err
	}
	b.diffRelations(oldModel, model)
	return b.diffTriggers(oldModel, model)
}

// diffNewTable emits CREATE TABLE for a model with no old counterpart.
func (b *builder) diffNewTable(model *core.Model) error {
	table := model.TableName()
	columns, err := b.renderColumns(model)
	if err != nil {
		return err
	}

	pkCols, err := primaryKeyColumns(model)
	if err != nil {
		return err
	}

	// Relations are classified before the CREATE TABLE is rendered: a
	// target still being created in this same batch (relationInline) has
	// its FK baked directly into this table's own CREATE TABLE rather
	// than deferred to a later ALTER TABLE ADD CONSTRAINT pass, per
	// spec.md §4.5 "defer... injected as inline table-level FK clauses".
	// A target already fully present in the live database is added
	// immediately after the CREATE TABLE; anything else unresolvable is
	// queued for flushDeferredRelations or rejected outright.
	var inlineFKs []string
	var createNow, inlined []namedRelation
	for _, rel := range model.Relations() {
		if rel.Relation.Kind == core.ManyToMany {
			continue
		}
		decision, reason := b.classifyRelation(table, rel.Relation)
		switch decision {
		case relationCreateNow:
			createNow = append(createNow, namedRelation{rel.Name, rel.Relation})
		case relationInline:
			inlineFKs = append(inlineFKs, b.inlineForeignKeyClause(table, rel.Relation))
			inlined = append(inlined, namedRelation{rel.Name, rel.Relation})
		case relationDefer:
			b.deferred = append(b.deferred, deferredRelation{ownerTable: table, relName: rel.Name, rel: rel.Relation})
		case relationError:
			return fmt.Errorf("differ: relation %q on new table %q: %s", rel.Name, table, reason)
		}
	}

	forward := b.gen.CreateTable(table, columns, pkCols, inlineFKs)
	reverse := b.gen.DropTable(table)
	b.emit(forward, reverse)

	for _, rel := range model.Relations() {
		if rel.Relation.Kind == core.ManyToMany {
			b.emitManyToManyCreate(table, rel.Relation)
		}
	}
	for _, rel := range createNow {
		b.emitForeignKeyCreate(table, rel.name, rel.rel)
	}
	for _, rel := range inlined {
		b.emitInlineForeignKeyIndex(table, rel.rel)
	}

	for _, idx := range model.Meta.Indexes {
		name := idx.Name
		if name == "" {
			name = idx.AutoName(table)
		}
		b.emit(b.gen.CreateIndex(table, name, idx.Fields, idx.Unique), b.gen.DropIndex(table, name))
	}

	for _, slot := range model.TriggerSlots() {
		trig, _ := model.Trigger(slot)
		if err := b.emitTriggerCreate(table, slot, trig, nil); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) renderColumns(model *core.Model) ([]dialect.ColumnSpec, error) {
	columns := make([]dialect.ColumnSpec, 0, len(model.Fields()))
	for _, of := range model.Fields() {
		columns = append(columns, b.columnSpec(model.TableName(), of.Name, of.Field))
	}
	return columns, nil
}

func (b *builder) columnSpec(table, name string, f *core.Field) dialect.ColumnSpec {
	spec := dialect.ColumnSpec{
		Name:          name,
		SQLType:       b.gen.ColumnType(f),
		Nullable:      f.Nullable,
		Unique:        f.Unique,
		PrimaryKey:    f.PrimaryKey,
		AutoIncrement: f.AutoIncrement,
		Comment:       f.Comment,
	}
	if f.Default != nil {
		spec.HasDefault = true
		spec.DefaultSQL = b.gen.RenderDefault(f.Default)
	}
	if f.Kind == core.KindEnum {
		spec.Enum = &dialect.EnumSpec{Table: table, Column: name, Choices: f.Choices}
	}
	return spec
}

// primaryKeyColumns collects every field name flagged PrimaryKey, in
// declaration order, and rejects an auto-increment field combined with a
// composite key (spec.md §4.5).
func primaryKeyColumns(model *core.Model) ([]string, error) {
	var pk []string
	hasAutoIncrement := false
	for _, of := range model.Fields() {
		if of.Field.PrimaryKey {
			pk = append(pk, of.Name)
		}
		if of.Field.AutoIncrement {
			hasAutoIncrement = true
		}
	}
	if hasAutoIncrement && len(pk) > 1 {
		return nil, &core.InvalidSchemaError{Reason: fmt.Sprintf("model %q: auto-increment cannot be combined with a composite primary key", model.Name)}
	}
	return pk, nil
}

// diffIndexes emits CREATE/DROP INDEX for index sets that differ between
// oldModel and model, after normalizing auto-generated names on both
// sides so a name-only change never produces spurious DDL.
func (b *builder) diffIndexes(oldModel, model *core.Model) {
	table := model.TableName()
	oldByKey := indexesByKey(oldModel, oldModel.TableName())
	curByKey := indexesByKey(model, table)

	for key, idx := range curByKey {
		if _, ok := oldByKey[key]; !ok {
			name := idx.Name
			if name == "" {
				name = idx.AutoName(table)
			}
			b.emit(b.gen.CreateIndex(table, name, idx.Fields, idx.Unique), b.gen.DropIndex(table, name))
		}
	}
	for key, idx := range oldByKey {
		if _, ok := curByKey[key]; !ok {
			name := idx.Name
			if name == "" {
				name = idx.AutoName(oldModel.TableName())
			}
			b.emit(b.gen.DropIndex(table, name), b.gen.CreateIndex(table, name, idx.Fields, idx.Unique))
		}
	}
	if oldModel.Meta.Comment != model.Meta.Comment {
		b.warn(WarnCommentNotTranslated, fmt.Sprintf("table %q: comment change is not translated to DDL", table))
	}
}

func indexesByKey(model *core.Model, table string) map[string]*core.Index {
	out := make(map[string]*core.Index, len(model.Meta.Indexes))
	for _, idx := range model.Meta.Indexes {
		out[idx.Key()] = idx
	}
	return out
}

// diffDroppedTables handles old-side tables absent from current entirely.
func (b *builder) diffDroppedTables(old, current *core.Schema) {
	for _, oldModel := range old.Models() {
		table := oldModel.TableName()
		if _, ok := current.ByTableName(table); ok {
			continue
		}
		b.emit(b.gen.DropTable(table), "")
		columns, _ := b.renderColumns(oldModel)
		pk, _ := primaryKeyColumns(oldModel)
		b.result.Reverse = append(b.result.Reverse, b.gen.CreateTable(table, columns, pk, nil))
		b.warn(WarnDroppedTable, fmt.Sprintf("table %q was dropped", table))
	}
}
