package differ

import (
	"fmt"

	"sql-buns-migrate/internal/core"
)

type relationDecision int

const (
	relationCreateNow relationDecision = iota
	// relationInline marks a relation whose target table does not exist
	// in the database yet but is part of this same batch: the owning
	// table (if it too is new this batch) inlines the FK as a
	// table-level constraint on its own CREATE TABLE instead of queuing
	// an ALTER (spec.md §4.5 "defer... injected as inline table-level FK
	// clauses"). An owner that already exists in the database has no
	// CREATE TABLE to inline into, so diffRelations still queues these
	// the same way it queues relationDefer.
	relationInline
	relationDefer
	relationError
)

// classifyRelation implements spec.md §4.5's decision table. inBatch
// reports whether rel.Target is present among the current schema's models;
// targetDefinesKey reports whether the target model defines the referenced
// key (treated as "has at least one primary-key field", since the relation
// always references the target's primary key in this design).
func (b *builder) classifyRelation(table string, rel *core.Relation) (relationDecision, string) {
	targetModel, inBatch := b.targetModel(rel.Target)
	targetTable := b.targetTable(rel.Target)
	targetExistsInDB := b.opts.tableExists(targetTable)
	targetColExistsInDB := targetExistsInDB && b.opts.columnExists(targetTable, "id")
	targetDefinesKey := inBatch && modelDefinesKey(targetModel)

	switch {
	case targetExistsInDB && targetColExistsInDB:
		return relationCreateNow, ""
	case targetExistsInDB && !targetColExistsInDB && inBatch && targetDefinesKey:
		return relationDefer, ""
	case targetExistsInDB && !targetColExistsInDB && inBatch && !targetDefinesKey:
		return relationError, fmt.Sprintf("target %q is in this batch but defines no key", rel.Target)
	case targetExistsInDB && !targetColExistsInDB && !inBatch:
		return relationError, fmt.Sprintf("target %q's key column does not exist and it is not in this batch", rel.Target)
	case !targetExistsInDB && inBatch && targetDefinesKey:
		return relationInline, ""
	case !targetExistsInDB && inBatch && !targetDefinesKey:
		return relationError, fmt.Sprintf("target %q is in this batch but defines no key", rel.Target)
	default:
		return relationError, fmt.Sprintf("target %q does not exist in the database and is not in this batch", rel.Target)
	}
}

func modelDefinesKey(m *core.Model) bool {
	for _, of := range m.Fields() {
		if of.Field.PrimaryKey {
			return true
		}
	}
	return false
}

// diffRelations handles relation changes on an already-existing table:
// added relations go through classifyRelation/createNow-or-defer/error;
// removed relations reverse a prior createNow.
func (b *builder) diffRelations(oldModel, model *core.Model) {
	table := model.TableName()
	oldByName := relationsByName(oldModel)
	curByName := relationsByName(model)

	for name, rel := range curByName {
		if _, existed := oldByName[name]; existed {
			continue
		}
		if rel.Kind == core.ManyToMany {
			b.emitManyToManyCreate(table, rel)
			continue
		}
		decision, reason := b.classifyRelation(table, rel)
		switch decision {
		case relationCreateNow:
			b.emitForeignKeyCreate(table, name, rel)
		case relationDefer, relationInline:
			// table already exists, so an in-batch-new target still has
			// no CREATE TABLE on this side to inline into; fall back to
			// the ALTER queue flushDeferredRelations resolves.
			b.deferred = append(b.deferred, deferredRelation{ownerTable: table, relName: name, rel: rel})
		case relationError:
			b.warn("relation-unresolvable", fmt.Sprintf("table %q relation %q: %s", table, name, reason))
		}
	}

	for name, rel := range oldByName {
		if _, stillPresent := curByName[name]; stillPresent {
			continue
		}
		if rel.Kind == core.ManyToMany {
			b.emit(b.gen.DropTable(rel.ThroughName), b.gen.CreateJoinTable(rel.ThroughName, rel.ForeignKey, table, rel.OtherKey, b.targetTable(rel.Target)))
			continue
		}
		b.emitForeignKeyDrop(table, name, rel)
	}
}

func relationsByName(m *core.Model) map[string]*core.Relation {
	out := make(map[string]*core.Relation)
	for _, r := range m.Relations() {
		out[r.Name] = r.Relation
	}
	return out
}

func (b *builder) emitForeignKeyCreate(table, relName string, rel *core.Relation) {
	refTable := b.targetTable(rel.Target)
	constraintName := fmt.Sprintf("fk_%s_%s", table, rel.ForeignKey)
	indexName := fmt.Sprintf("idx_%s_%s", table, rel.ForeignKey)
	forward := b.gen.AddForeignKey(table, constraintName, rel.ForeignKey, refTable, "id") +
		"\n" + b.gen.CreateIndex(table, indexName, []string{rel.ForeignKey}, false)
	reverse := b.gen.DropIndex(table, indexName)
	b.emit(forward, reverse)
}

// inlineForeignKeyClause renders the table-level FOREIGN KEY clause for a
// relationInline decision, to be passed through CreateTable's
// foreignKeys argument rather than added via a separate ALTER (spec.md
// §4.5's "defer... injected as inline table-level FK clauses").
func (b *builder) inlineForeignKeyClause(table string, rel *core.Relation) string {
	refTable := b.targetTable(rel.Target)
	constraintName := fmt.Sprintf("fk_%s_%s", table, rel.ForeignKey)
	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
		b.gen.QuoteIdentifier(constraintName), b.gen.QuoteIdentifier(rel.ForeignKey),
		b.gen.QuoteIdentifier(refTable), b.gen.QuoteIdentifier("id"))
}

// emitInlineForeignKeyIndex emits the supporting index for a relation
// whose constraint was already inlined into CREATE TABLE: createNow's
// index half, without re-adding the constraint itself.
func (b *builder) emitInlineForeignKeyIndex(table string, rel *core.Relation) {
	indexName := fmt.Sprintf("idx_%s_%s", table, rel.ForeignKey)
	b.emit(b.gen.CreateIndex(table, indexName, []string{rel.ForeignKey}, false), b.gen.DropIndex(table, indexName))
}

func (b *builder) emitForeignKeyDrop(table, relName string, rel *core.Relation) {
	refTable := b.targetTable(rel.Target)
	constraintName := fmt.Sprintf("fk_%s_%s", table, rel.ForeignKey)
	indexName := fmt.Sprintf("idx_%s_%s", table, rel.ForeignKey)
	b.emit(b.gen.DropIndex(table, indexName), b.gen.AddForeignKey(table, constraintName, rel.ForeignKey, refTable, "id"))
}

func (b *builder) emitManyToManyCreate(table string, rel *core.Relation) {
	b.emit(
		b.gen.CreateJoinTable(rel.ThroughName, rel.ForeignKey, table, rel.OtherKey, b.targetTable(rel.Target)),
		b.gen.DropTable(rel.ThroughName),
	)
}

// flushDeferredRelations processes relations whose target wasn't
// resolvable in a single top-to-bottom pass (e.g. forward references
// within the same batch), re-evaluating each against the final schema.
func (b *builder) flushDeferredRelations(current *core.Schema) {
	for _, d := range b.deferred {
		if d.rel.Kind == core.ManyToMany {
			b.emitManyToManyCreate(d.ownerTable, d.rel)
			continue
		}
		if _, ok := b.targetModel(d.rel.Target); !ok {
			b.warn("relation-unresolvable", fmt.Sprintf("table %q relation %q: target %q never resolved", d.ownerTable, d.relName, d.rel.Target))
			continue
		}
		b.emitForeignKeyCreate(d.ownerTable, d.relName, d.rel)
	}
}
