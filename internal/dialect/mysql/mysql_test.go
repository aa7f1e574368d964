package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sql-buns-migrate/internal/dialect"
)

func TestQuoteIdentifier_EscapesBacktick(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, "`us``er`", g.QuoteIdentifier("us`er"))
}

func TestRenderColumn_AutoIncrementImpliesInlinePK(t *testing.T) {
	g := NewGenerator()
	col := dialect.ColumnSpec{Name: "id", SQLType: "INTEGER", AutoIncrement: true, PrimaryKey: true}
	got := g.RenderColumn(col)
	assert.Contains(t, got, "AUTO_INCREMENT")
	assert.Contains(t, got, "PRIMARY KEY")
}

func TestRenderColumn_Enum(t *testing.T) {
	g := NewGenerator()
	col := dialect.ColumnSpec{
		Name: "status", SQLType: "VARCHAR(16)",
		Enum: &dialect.EnumSpec{Table: "orders", Column: "status", Choices: []string{"open", "closed"}},
	}
	got := g.RenderColumn(col)
	assert.Contains(t, got, "ENUM('open', 'closed')")
}

func TestCreateTable_ExplicitCompositePK(t *testing.T) {
	g := NewGenerator()
	ddl := g.CreateTable("link", []dialect.ColumnSpec{
		{Name: "a_id", SQLType: "INTEGER"},
		{Name: "b_id", SQLType: "INTEGER"},
	}, []string{"a_id", "b_id"}, nil)
	assert.Contains(t, ddl, "PRIMARY KEY (`a_id`, `b_id`)")
}

func TestRegisteredInDialectRegistry(t *testing.T) {
	d, err := dialect.GetDialect(dialect.MySQL)
	assert.NoError(t, err)
	assert.Equal(t, dialect.MySQL, d.Name())
}
