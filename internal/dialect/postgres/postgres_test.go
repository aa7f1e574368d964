package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sql-buns-migrate/internal/dialect"
)

func TestEnumTypeName_DeterministicAndStable(t *testing.T) {
	g := NewGenerator()
	spec := dialect.EnumSpec{Table: "orders", Column: "status", Choices: []string{"closed", "open"}}
	name1 := g.EnumTypeName(spec)
	name2 := g.EnumTypeName(spec)
	assert.Equal(t, name1, name2)
	assert.Regexp(t, `^enum_orders_status_[0-9a-f]{8}$`, name1)
}

func TestEnumTypeName_ChoiceOrderDoesNotAffectHash(t *testing.T) {
	g := NewGenerator()
	a := g.EnumTypeName(dialect.EnumSpec{Table: "t", Column: "c", Choices: []string{"b", "a"}})
	b := g.EnumTypeName(dialect.EnumSpec{Table: "t", Column: "c", Choices: []string{"a", "b"}})
	assert.Equal(t, a, b)
}

func TestEnumTypeName_ExplicitOverride(t *testing.T) {
	g := NewGenerator()
	name := g.EnumTypeName(dialect.EnumSpec{Table: "t", Column: "c", Choices: []string{"a"}, TypeName: "custom_enum"})
	assert.Equal(t, "custom_enum", name)
}

func TestAutoIncrementUsesSerialFamily(t *testing.T) {
	g := NewGenerator()
	col := dialect.ColumnSpec{Name: "id", SQLType: "BIGINT", AutoIncrement: true, PrimaryKey: true}
	got := g.RenderColumn(col)
	assert.Contains(t, got, "BIGSERIAL")
	assert.Contains(t, got, "PRIMARY KEY")
}

func TestRenderTrigger_DeleteReturnsOld(t *testing.T) {
	g := NewGenerator()
	stmts := g.RenderTrigger(dialect.TriggerSpec{
		Name: "trg_users_delete_after_0", Table: "users", Timing: "AFTER", Event: "DELETE", Body: "DELETE FROM audit WHERE id = OLD.id;",
	})
	assert := assert.New(t)
	assert.Len(stmts, 2)
	assert.Contains(stmts[0], "RETURN OLD;")
	assert.Contains(stmts[1], "EXECUTE FUNCTION")
}
