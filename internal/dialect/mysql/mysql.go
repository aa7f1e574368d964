// Package mysql implements the MySQL dialect adapter (spec.md §4.3, C3).
package mysql

import (
	"fmt"
	"strings"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dialect"
)

func init() {
	dialect.RegisterDialect(dialect.MySQL, func() dialect.Dialect {
		return NewDialect()
	})
}

// Dialect is the MySQL dialect.Dialect implementation.
type Dialect struct {
	generator *Generator
}

func NewDialect() *Dialect {
	return &Dialect{generator: NewGenerator()}
}

func (d *Dialect) Name() dialect.Type { return dialect.MySQL }

func (d *Dialect) Generator() dialect.Generator { return d.generator }

// Generator is stateless; every method is pure text generation.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// QuoteIdentifier wraps name in backticks, doubling any embedded backtick.
func (g *Generator) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "`", "``")
	return "`" + name + "`"
}

// QuoteString single-quotes value, doubling embedded quotes per spec.md
// §4.3's "strings single-quoted with ' escaped by doubling".
func (g *Generator) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (g *Generator) RenderColumn(col dialect.ColumnSpec) string {
	var b strings.Builder
	b.WriteString(g.QuoteIdentifier(col.Name))
	b.WriteByte(' ')
	b.WriteString(g.columnType(col))

	if col.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.HasDefault {
		b.WriteString(" DEFAULT ")
		b.WriteString(col.DefaultSQL)
	}
	if col.Unique {
		b.WriteString(" UNIQUE")
	}
	if col.PrimaryKey && col.AutoIncrement {
		b.WriteString(" PRIMARY KEY")
	}
	if col.Comment != "" {
		fmt.Fprintf(&b, " COMMENT %s", g.QuoteString(col.Comment))
	}
	return b.String()
}

// ColumnType maps a field's logical kind to MySQL's base type.
func (g *Generator) ColumnType(f *core.Field) string {
	switch f.Kind {
	case core.KindInteger:
		return "INT"
	case core.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", f.Precision, f.Scale)
	case core.KindFloat:
		return "DOUBLE"
	case core.KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
	case core.KindText:
		return "TEXT"
	case core.KindEnum:
		return "" // rendered inline by RenderColumn/columnType
	case core.KindDate:
		return "DATE"
	case core.KindDateTime:
		return "DATETIME"
	case core.KindBlob:
		return "BLOB"
	case core.KindBoolean:
		return "TINYINT(1)"
	case core.KindUUID:
		return "CHAR(36)"
	case core.KindJSON:
		return "JSON"
	case core.KindXML:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// RenderDefault renders a field's default literal or SQL token.
func (g *Generator) RenderDefault(d *core.FieldDefault) string {
	if d == nil {
		return ""
	}
	if d.IsSQLFn {
		return d.Token()
	}
	return g.QuoteString(d.Literal)
}

func (g *Generator) columnType(col dialect.ColumnSpec) string {
	if col.Enum != nil {
		quoted := make([]string, len(col.Enum.Choices))
		for i, c := range col.Enum.Choices {
			quoted[i] = g.QuoteString(c)
		}
		return "ENUM(" + strings.Join(quoted, ", ") + ")"
	}
	return col.SQLType
}

// AutoIncrementPrimaryKeyToken is unused for MySQL: AUTO_INCREMENT and
// PRIMARY KEY are both emitted inline by RenderColumn already, so the
// differ's CreateTable never needs a separate explicit-PK clause for the
// single-column auto-increment case.
func (g *Generator) AutoIncrementPrimaryKeyToken(col dialect.ColumnSpec) string {
	return ""
}

func (g *Generator) CreateTable(table string, columns []dialect.ColumnSpec, primaryKey []string, foreignKeys []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", g.QuoteIdentifier(table))

	parts := make([]string, 0, len(columns)+len(foreignKeys)+1)
	for _, col := range columns {
		parts = append(parts, "  "+g.RenderColumn(col))
	}
	if len(primaryKey) > 0 && !hasInlineAutoIncrementPK(columns) {
		quoted := make([]string, len(primaryKey))
		for i, c := range primaryKey {
			quoted[i] = g.QuoteIdentifier(c)
		}
		parts = append(parts, "  PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	for _, fk := range foreignKeys {
		parts = append(parts, "  "+fk)
	}
	b.WriteString(strings.Join(parts, ",\n"))
	b.WriteString("\n);")
	return b.String()
}

func hasInlineAutoIncrementPK(columns []dialect.ColumnSpec) bool {
	for _, c := range columns {
		if c.PrimaryKey && c.AutoIncrement {
			return true
		}
	}
	return false
}

func (g *Generator) DropTable(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", g.QuoteIdentifier(table))
}

func (g *Generator) RenameTable(oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", g.QuoteIdentifier(oldName), g.QuoteIdentifier(newName))
}

func (g *Generator) AddColumn(table string, col dialect.ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", g.QuoteIdentifier(table), g.RenderColumn(col))
}

func (g *Generator) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(column))
}

func (g *Generator) RenameColumn(table, oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(oldName), g.QuoteIdentifier(newName))
}

func (g *Generator) AlterColumnType(table string, col dialect.ColumnSpec) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;", g.QuoteIdentifier(table), g.RenderColumn(col))}
}

func (g *Generator) AlterColumnNullability(table, column string, nullable bool) []string {
	clause := "NOT NULL"
	if nullable {
		clause = "NULL"
	}
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(column), clause)}
}

func (g *Generator) AlterColumnDefault(table, column string, col dialect.ColumnSpec) []string {
	if !col.HasDefault {
		return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", g.QuoteIdentifier(table), g.QuoteIdentifier(column))}
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(column), col.DefaultSQL)}
}

func (g *Generator) CreateIndex(table, name string, columns []string, unique bool) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = g.QuoteIdentifier(c)
	}
	kw := "INDEX"
	if unique {
		kw = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s);", kw, g.QuoteIdentifier(name), g.QuoteIdentifier(table), strings.Join(quoted, ", "))
}

func (g *Generator) DropIndex(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(name))
}

func (g *Generator) AddForeignKey(table, constraintName, column, refTable, refColumn string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);",
		g.QuoteIdentifier(table), g.QuoteIdentifier(constraintName), g.QuoteIdentifier(column),
		g.QuoteIdentifier(refTable), g.QuoteIdentifier(refColumn))
}

func (g *Generator) CreateJoinTable(through, fkColumn, baseTable, otherKeyColumn, otherTable string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s INTEGER REFERENCES %s(id),\n  %s INTEGER REFERENCES %s(id),\n  PRIMARY KEY(%s, %s)\n);",
		g.QuoteIdentifier(through),
		g.QuoteIdentifier(fkColumn), g.QuoteIdentifier(baseTable),
		g.QuoteIdentifier(otherKeyColumn), g.QuoteIdentifier(otherTable),
		g.QuoteIdentifier(fkColumn), g.QuoteIdentifier(otherKeyColumn),
	)
}

// Enums are rendered inline by RenderColumn; MySQL has no CREATE TYPE.
func (g *Generator) CreateEnumType(spec dialect.EnumSpec) string { return "" }
func (g *Generator) DropEnumType(spec dialect.EnumSpec) string  { return "" }
func (g *Generator) EnumTypeName(spec dialect.EnumSpec) string  { return "" }

func (g *Generator) RenderTrigger(t dialect.TriggerSpec) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TRIGGER %s %s %s ON %s FOR EACH ROW ",
		g.QuoteIdentifier(t.Name), t.Timing, t.Event, g.QuoteIdentifier(t.Table))
	if t.When != "" {
		fmt.Fprintf(&b, "WHEN (%s) ", t.When)
	}
	fmt.Fprintf(&b, "BEGIN %s END;", t.Body)
	return []string{b.String()}
}

func (g *Generator) DropTrigger(name, table string) []string {
	return []string{fmt.Sprintf("DROP TRIGGER IF EXISTS %s;", g.QuoteIdentifier(name))}
}

func (g *Generator) SupportsAlterColumn() bool   { return true }
func (g *Generator) SupportsAddConstraint() bool { return true }
