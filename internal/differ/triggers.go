package differ

import (
	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dialect"
)

// TriggerValidator is consulted before a trigger statement is emitted
// (spec.md §4.8, C8): it confirms every table/column the statement body
// references actually exists, either in the live database or in the
// current batch. A nil validator (the default in Options) skips
// validation entirely, which is safe for dialects/tests that don't wire
// one up.
type TriggerValidator interface {
	Validate(table string, slot core.TriggerSlot, stmt core.Statement) error
}

// diffTriggers compares oldModel and model's six trigger slots. A slot
// present on both sides with identical statement bodies (in identical
// order) is left untouched; any other change drops the old per-statement
// instances and re-emits every current statement, per spec.md §4.5
// "Triggers".
func (b *builder) diffTriggers(oldModel, model *core.Model) error {
	table := model.TableName()
	allSlots := []core.TriggerSlot{
		core.SlotBeforeInsert, core.SlotAfterInsert,
		core.SlotBeforeUpdate, core.SlotAfterUpdate,
		core.SlotBeforeDelete, core.SlotAfterDelete,
	}

	for _, slot := range allSlots {
		oldTrig, hadOld := oldModel.Trigger(slot)
		curTrig, hasCur := model.Trigger(slot)

		switch {
		case !hasCur && hadOld:
			b.dropTriggerInstances(table, oldTrig)
		case hasCur && !hadOld:
			if err := b.emitTriggerCreate(table, slot, curTrig, nil); err != nil {
				return err
			}
		case hasCur && hadOld:
			if triggersIdentical(oldTrig, curTrig) {
				continue
			}
			b.dropTriggerInstances(table, oldTrig)
			if err := b.emitTriggerCreate(table, slot, curTrig, oldTrig); err != nil {
				return err
			}
		}
	}
	return nil
}

// triggersIdentical compares statement bodies and When predicates in
// order, using the same normalization the snapshot checksum uses so a
// whitespace/quoting-only difference is not treated as a change (spec.md
// §4.5, DESIGN.md Open Question #3).
func triggersIdentical(a, b *core.Trigger) bool {
	if len(a.Statements) != len(b.Statements) {
		return false
	}
	for i := range a.Statements {
		if core.NormalizeStatementBody(a.Statements[i].Body) != core.NormalizeStatementBody(b.Statements[i].Body) {
			return false
		}
		if core.NormalizeWhen(a.Statements[i].When) != core.NormalizeWhen(b.Statements[i].When) {
			return false
		}
	}
	return true
}

func (b *builder) dropTriggerInstances(table string, trig *core.Trigger) {
	for i := range trig.Statements {
		name := core.StatementName(table, trig, i)
		b.result.Forward = append(b.result.Forward, b.gen.DropTrigger(name, table)...)
	}
}

// emitTriggerCreate validates (C8) and renders every statement of trig,
// emitting CREATE TRIGGER forward and DROP TRIGGER reverse. previous, when
// non-nil, supplies the statements a fresh create is replacing, purely so
// the reverse direction can recreate them instead of dropping into an
// empty slot.
func (b *builder) emitTriggerCreate(table string, slot core.TriggerSlot, trig *core.Trigger, previous *core.Trigger) error {
	for i, stmt := range trig.Statements {
		if b.opts.Validator != nil {
			if err := b.opts.Validator.Validate(table, slot, stmt); err != nil {
				return err
			}
		}
		name := core.StatementName(table, trig, i)
		spec := dialect.TriggerSpec{
			Name:   name,
			Table:  table,
			Timing: string(trig.Timing),
			Event:  string(trig.Event),
			Body:   stmt.Body,
			When:   core.NormalizeWhen(stmt.When),
		}
		b.result.Forward = append(b.result.Forward, b.gen.RenderTrigger(spec)...)
	}

	for i := range trig.Statements {
		name := core.StatementName(table, trig, i)
		b.result.Reverse = append(b.result.Reverse, b.gen.DropTrigger(name, table)...)
	}
	if previous != nil {
		for i, stmt := range previous.Statements {
			b.result.Reverse = append(b.result.Reverse, b.gen.RenderTrigger(dialect.TriggerSpec{
				Name: core.StatementName(table, previous, i), Table: table, Timing: string(previous.Timing),
				Event: string(previous.Event), Body: stmt.Body, When: core.NormalizeWhen(stmt.When),
			})...)
		}
	}
	return nil
}
