// Package postgres implements the Postgres dialect adapter (spec.md §4.3, C3).
package postgres

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dialect"
)

func init() {
	dialect.RegisterDialect(dialect.Postgres, func() dialect.Dialect {
		return NewDialect()
	})
}

type Dialect struct {
	generator *Generator
}

func NewDialect() *Dialect { return &Dialect{generator: NewGenerator()} }

func (d *Dialect) Name() dialect.Type { return dialect.Postgres }

func (d *Dialect) Generator() dialect.Generator { return d.generator }

type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

func (g *Generator) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (g *Generator) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (g *Generator) RenderColumn(col dialect.ColumnSpec) string {
	var b strings.Builder
	b.WriteString(g.QuoteIdentifier(col.Name))
	b.WriteByte(' ')
	if col.AutoIncrement {
		b.WriteString(g.serialType(col.SQLType))
	} else if col.Enum != nil {
		b.WriteString(g.EnumTypeName(*col.Enum))
	} else {
		b.WriteString(col.SQLType)
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
	return b.String()
}

// ColumnType maps a field's logical kind to Postgres's base type.
func (g *Generator) ColumnType(f *core.Field) string {
	switch f.Kind {
	case core.KindInteger:
		return "INTEGER"
	case core.KindDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", f.Precision, f.Scale)
	case core.KindFloat:
		return "DOUBLE PRECISION"
	case core.KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
	case core.KindText:
		return "TEXT"
	case core.KindEnum:
		return "" // rendered as the CREATE TYPE name by RenderColumn
	case core.KindDate:
		return "DATE"
	case core.KindDateTime:
		return "TIMESTAMP"
	case core.KindBlob:
		return "BYTEA"
	case core.KindBoolean:
		return "BOOLEAN"
	case core.KindUUID:
		return "UUID"
	case core.KindJSON:
		return "JSONB"
	case core.KindXML:
		return "XML"
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

// serialType maps an integer base type to Postgres's SERIAL family so the
// auto-increment token replaces the base type rather than suffixing it,
// per spec.md §4.3.
func (g *Generator) serialType(base string) string {
	switch strings.ToUpper(base) {
	case "BIGINT":
		return "BIGSERIAL"
	case "SMALLINT":
		return "SMALLSERIAL"
	default:
		return "SERIAL"
	}
}

func (g *Generator) AutoIncrementPrimaryKeyToken(col dialect.ColumnSpec) string {
	return g.serialType(col.SQLType) + " PRIMARY KEY"
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
	typ := col.SQLType
	if col.Enum != nil {
		typ = g.EnumTypeName(*col.Enum)
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(col.Name), typ)}
}

func (g *Generator) AlterColumnNullability(table, column string, nullable bool) []string {
	clause := "SET NOT NULL"
	if nullable {
		clause = "DROP NOT NULL"
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", g.QuoteIdentifier(table), g.QuoteIdentifier(column), clause)}
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
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;", g.QuoteIdentifier(name))
}

func (g *Generator) AddForeignKey(table, constraintName, column, refTable, refColumn string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY(%s) REFERENCES %s(%s);",
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

// EnumTypeName returns spec.TypeName if set, else generates
// enum_<table>_<column>_<8-hex> where the hex is the first 8 characters of
// SHA-1 over "<table>_<column>:<choices-sorted-joined-by-pipe>" (spec.md §4.3).
func (g *Generator) EnumTypeName(spec dialect.EnumSpec) string {
	if spec.TypeName != "" {
		return spec.TypeName
	}
	sorted := append([]string(nil), spec.Choices...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(fmt.Sprintf("%s_%s:%s", spec.Table, spec.Column, strings.Join(sorted, "|"))))
	return fmt.Sprintf("enum_%s_%s_%s", spec.Table, spec.Column, hex.EncodeToString(sum[:])[:8])
}

func (g *Generator) CreateEnumType(spec dialect.EnumSpec) string {
	quoted := make([]string, len(spec.Choices))
	for i, c := range spec.Choices {
		quoted[i] = g.QuoteString(c)
	}
	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", g.EnumTypeName(spec), strings.Join(quoted, ", "))
}

func (g *Generator) DropEnumType(spec dialect.EnumSpec) string {
	return fmt.Sprintf("DROP TYPE IF EXISTS %s;", g.EnumTypeName(spec))
}

func (g *Generator) RenderTrigger(t dialect.TriggerSpec) []string {
	returnVar := "NEW"
	if t.Event == "DELETE" {
		returnVar = "OLD"
	}
	funcName := t.Name + "_func"
	fn := fmt.Sprintf(
		"CREATE OR REPLACE FUNCTION %s() RETURNS trigger AS $$ BEGIN %s; RETURN %s; END; $$ LANGUAGE plpgsql;",
		g.QuoteIdentifier(funcName), t.Body, returnVar,
	)
	var trig strings.Builder
	fmt.Fprintf(&trig, "CREATE TRIGGER %s %s %s ON %s FOR EACH ROW ",
		g.QuoteIdentifier(t.Name), t.Timing, t.Event, g.QuoteIdentifier(t.Table))
	if t.When != "" {
		fmt.Fprintf(&trig, "WHEN (%s) ", t.When)
	}
	fmt.Fprintf(&trig, "EXECUTE FUNCTION %s();", g.QuoteIdentifier(funcName))
	return []string{fn, trig.String()}
}

func (g *Generator) DropTrigger(name, table string) []string {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s;", g.QuoteIdentifier(name), g.QuoteIdentifier(table)),
		fmt.Sprintf("DROP FUNCTION IF EXISTS %s();", g.QuoteIdentifier(name+"_func")),
	}
}

func (g *Generator) SupportsAlterColumn() bool   { return true }
func (g *Generator) SupportsAddConstraint() bool { return true }
