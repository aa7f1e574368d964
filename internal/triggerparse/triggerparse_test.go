package triggerparse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/triggerparse"
)

func TestExtract_Insert(t *testing.T) {
	ref, ok := triggerparse.Extract("INSERT INTO audit_log (actor, action) VALUES (NEW.id, 'created')")
	require.True(t, ok)
	assert.Equal(t, "INSERT", ref.Verb)
	assert.Equal(t, "audit_log", ref.Table)
	assert.Equal(t, []string{"actor", "action"}, ref.Columns)
}

func TestExtract_Update(t *testing.T) {
	ref, ok := triggerparse.Extract("UPDATE accounts SET balance = balance - NEW.amount WHERE id = NEW.account_id")
	require.True(t, ok)
	assert.Equal(t, "UPDATE", ref.Verb)
	assert.Equal(t, "accounts", ref.Table)
	assert.Equal(t, []string{"balance"}, ref.Columns)
}

func TestExtract_Delete(t *testing.T) {
	ref, ok := triggerparse.Extract("DELETE FROM sessions WHERE user_id = OLD.id")
	require.True(t, ok)
	assert.Equal(t, "DELETE", ref.Verb)
	assert.Equal(t, "sessions", ref.Table)
}

func TestExtract_SelectWithJoin_Warns(t *testing.T) {
	ref, ok := triggerparse.Extract("SELECT a.id FROM accounts a JOIN ledgers l ON l.account_id = a.id")
	require.True(t, ok)
	assert.Equal(t, "SELECT", ref.Verb)
	assert.NotEmpty(t, ref.Warning)
}

func TestExtract_UnrecognizedBody_AssumedSafe(t *testing.T) {
	_, ok := triggerparse.Extract("PRAGMA foreign_keys = ON")
	assert.False(t, ok)
}

func TestValidator_Validate_LiveTableMissingColumn(t *testing.T) {
	v := triggerparse.New(fakeIntrospector{tables: map[string]bool{"audit_log": true}, columns: map[string]bool{}}, nil)
	err := v.Validate("users", core.SlotAfterInsert, core.Statement{Body: "INSERT INTO audit_log (actor) VALUES (NEW.id)"})
	require.Error(t, err)
	var invalid *triggerparse.InvalidTriggerBodyError
	require.ErrorAs(t, err, &invalid)
}

func TestValidator_Validate_LiveTableColumnPresent(t *testing.T) {
	v := triggerparse.New(fakeIntrospector{
		tables:  map[string]bool{"audit_log": true},
		columns: map[string]bool{"audit_log.actor": true},
	}, nil)
	err := v.Validate("users", core.SlotAfterInsert, core.Statement{Body: "INSERT INTO audit_log (actor) VALUES (NEW.id)"})
	require.NoError(t, err)
}

func TestValidator_Validate_BatchTableUnknownColumn(t *testing.T) {
	model, err := core.NewModel("AuditLog", []core.NamedFieldSpec{
		{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
	}, nil, nil, core.Meta{TableName: "audit_log"})
	require.NoError(t, err)
	batch := core.NewSchemaInOrder([]string{"AuditLog"}, map[string]*core.Model{"AuditLog": model})

	v := triggerparse.New(fakeIntrospector{}, batch)
	err = v.Validate("users", core.SlotAfterInsert, core.Statement{Body: "INSERT INTO audit_log (actor) VALUES (NEW.id)"})
	require.Error(t, err)
}

func TestValidator_Validate_UnresolvableTable(t *testing.T) {
	v := triggerparse.New(fakeIntrospector{}, core.NewSchemaInOrder(nil, map[string]*core.Model{}))
	err := v.Validate("users", core.SlotAfterInsert, core.Statement{Body: "INSERT INTO ghost_table (x) VALUES (1)"})
	require.Error(t, err)
}

func TestValidator_Validate_UnrecognizedBodySkipsValidation(t *testing.T) {
	v := triggerparse.New(fakeIntrospector{}, nil)
	err := v.Validate("users", core.SlotAfterInsert, core.Statement{Body: "PRAGMA foreign_keys = ON"})
	require.NoError(t, err)
}

type fakeIntrospector struct {
	tables  map[string]bool
	columns map[string]bool
}

func (f fakeIntrospector) TableExists(table string) bool { return f.tables[table] }
func (f fakeIntrospector) ColumnExists(table, column string) bool {
	return f.columns[table+"."+column]
}
