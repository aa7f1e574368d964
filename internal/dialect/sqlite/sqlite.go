// Package sqlite implements the SQLite dialect adapter (spec.md §4.3, C3),
// including the full-table-rebuild policy SQLite's limited ALTER TABLE
// support forces for most column mutations.
package sqlite

import (
	"fmt"
	"regexp"
	"strings"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dialect"
)

func init() {
	dialect.RegisterDialect(dialect.SQLite, func() dialect.Dialect {
		return NewDialect()
	})
}

type Dialect struct {
	generator *Generator
}

func NewDialect() *Dialect { return &Dialect{generator: NewGenerator()} }

func (d *Dialect) Name() dialect.Type { return dialect.SQLite }

func (d *Dialect) Generator() dialect.Generator { return d.generator }

type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

var bareIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdentifier leaves a bare identifier unquoted and double-quotes
// anything else, per spec.md §4.3.
func (g *Generator) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	if bareIdentifier.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (g *Generator) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (g *Generator) RenderColumn(col dialect.ColumnSpec) string {
	var b strings.Builder
	b.WriteString(g.QuoteIdentifier(col.Name))
	b.WriteByte(' ')
	b.WriteString(g.columnType(col))

	if col.PrimaryKey && col.AutoIncrement {
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
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
	return b.String()
}

// ColumnType maps a field's logical kind to a SQLite storage class. SQLite
// has dynamic typing, but the tool still emits declared types for
// readability and introspection, following its type-affinity rules.
func (g *Generator) ColumnType(f *core.Field) string {
	switch f.Kind {
	case core.KindInteger:
		return "INTEGER"
	case core.KindDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", f.Precision, f.Scale)
	case core.KindFloat:
		return "REAL"
	case core.KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
	case core.KindText:
		return "TEXT"
	case core.KindEnum:
		return "" // rendered as TEXT CHECK(...) by RenderColumn/columnType
	case core.KindDate:
		return "DATE"
	case core.KindDateTime:
		return "DATETIME"
	case core.KindBlob:
		return "BLOB"
	case core.KindBoolean:
		return "BOOLEAN"
	case core.KindUUID:
		return "TEXT"
	case core.KindJSON:
		return "TEXT"
	case core.KindXML:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func (g *Generator) RenderDefault(d *core.FieldDefault) string {
	if d == nil {
		return ""
	}
	if d.IsSQLFn {
		return d.Token()
	}
	return g.QuoteString(d.Literal)
}

// columnType renders an enum as TEXT CHECK(col IN (...)), per spec.md §4.3.
func (g *Generator) columnType(col dialect.ColumnSpec) string {
	if col.Enum != nil {
		quoted := make([]string, len(col.Enum.Choices))
		for i, c := range col.Enum.Choices {
			quoted[i] = g.QuoteString(c)
		}
		return fmt.Sprintf("TEXT CHECK(%s IN (%s))", g.QuoteIdentifier(col.Name), strings.Join(quoted, ", "))
	}
	return col.SQLType
}

func (g *Generator) AutoIncrementPrimaryKeyToken(col dialect.ColumnSpec) string {
	return col.SQLType + " PRIMARY KEY AUTOINCREMENT"
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

// AddColumn is one of the few ALTER TABLE forms SQLite supports directly.
// The differ emits it for every added column, including a NOT NULL column
// with no default, for which it only records a warning.
func (g *Generator) AddColumn(table string, col dialect.ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", g.QuoteIdentifier(table), g.RenderColumn(col))
}

// DropColumn is supported directly since SQLite 3.35. The differ emits it
// for every dropped column; it does not check whether the column is part
// of an index or FK, and does not route such drops through the rebuild
// path.
func (g *Generator) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(column))
}

func (g *Generator) RenameColumn(table, oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(oldName), g.QuoteIdentifier(newName))
}

// AlterColumnType/Nullability/Default all return nil: SQLite has no ALTER
// COLUMN, so the differ never calls them for SQLite (SupportsAlterColumn
// returns false) and rebuilds the table instead. They exist only to
// satisfy the interface.
func (g *Generator) AlterColumnType(table string, col dialect.ColumnSpec) []string {
	return nil
}

func (g *Generator) AlterColumnNullability(table, column string, nullable bool) []string {
	return nil
}

func (g *Generator) AlterColumnDefault(table, column string, col dialect.ColumnSpec) []string {
	return nil
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
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s);", kw, g.QuoteIdentifier(name), g.QuoteIdentifier(table), strings.Join(quoted, ", "))
}

func (g *Generator) DropIndex(table, name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;", g.QuoteIdentifier(name))
}

// AddForeignKey has no direct SQLite form (ADD CONSTRAINT is not
// expressible) and returns ""; SupportsAddConstraint reports false. The
// differ does not consult SupportsAddConstraint and does not rebuild the
// table for a new relation, so a relation added to an existing SQLite
// table emits only its supporting index and no foreign-key constraint.
func (g *Generator) AddForeignKey(table, constraintName, column, refTable, refColumn string) string {
	return ""
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

func (g *Generator) CreateEnumType(spec dialect.EnumSpec) string { return "" }
func (g *Generator) DropEnumType(spec dialect.EnumSpec) string   { return "" }
func (g *Generator) EnumTypeName(spec dialect.EnumSpec) string   { return "" }

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

func (g *Generator) SupportsAlterColumn() bool   { return false }
func (g *Generator) SupportsAddConstraint() bool { return false }
