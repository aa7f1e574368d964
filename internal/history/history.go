// Package history manages the database-resident _sqlbuns_migrations table
// (spec.md §4.6, §6, C6): bootstrap-on-first-contact, row insertion within
// the same transaction as the DDL it records, and the reads drift
// detection and `up`/`down` need.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dialect"
)

// TableName is the fixed history table name (spec.md §4.6).
const TableName = "_sqlbuns_migrations"

// Row is one _sqlbuns_migrations record.
type Row struct {
	ID               int64
	Name             string
	Checksum         string
	PreviousChecksum string
	Direction        string
	AppliedAt        time.Time
	RolledBack       bool
	RolledBackAt     sql.NullTime
}

// Store wraps a *sql.DB (or an in-transaction *sql.Tx via Exec/Query being
// routed through the Querier interface) with dialect-aware DDL/DML for the
// history table.
type Store struct {
	gen     dialect.Generator
	dtype   dialect.Type
	querier Querier
}

// Querier is satisfied by both *sql.DB and *sql.Tx, letting history
// statements run either standalone (EnsureTable) or inside the same
// transaction as the migration DDL (spec.md §4.7: "A history row is
// inserted within the same transaction as the DDL it records").
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewStore builds a Store bound to q (a *sql.DB for bootstrap/reads, a
// *sql.Tx for the insert/update that must share the migration's
// transaction).
func NewStore(q Querier, d dialect.Dialect) *Store {
	return &Store{gen: d.Generator(), dtype: d.Name(), querier: q}
}

// model returns the history table's schema as an ordinary core.Model, so
// its CREATE TABLE DDL is generated by the very same dialect adapters the
// user's own schema uses, instead of a hand-written DDL string per
// dialect (spec.md §4.6's column set, C3's rendering pipeline).
func model() (*core.Model, error) {
	rolledBack := core.NewBooleanField(core.WithDefault(core.SQLDefault("0")))
	direction, err := core.NewEnumField("direction", []string{"up", "down"}, core.WithDefault(core.LiteralDefault("up")))
	if err != nil {
		return nil, err
	}

	return core.NewModel(
		"SqlBunsMigration",
		[]core.NamedFieldSpec{
			{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
			{Name: "name", Spec: core.FieldSpec{Field: core.NewVarcharField(255, core.Unique())}},
			{Name: "checksum", Spec: core.FieldSpec{Field: core.NewVarcharField(64)}},
			{Name: "previous_checksum", Spec: core.FieldSpec{Field: core.NewVarcharField(64, core.Nullable())}},
			{Name: "direction", Spec: core.FieldSpec{Field: direction}},
			{Name: "applied_at", Spec: core.FieldSpec{Field: core.NewDateTimeField(core.WithDefault(core.SQLDefault("CURRENT_TIMESTAMP")))}},
			{Name: "rolled_back", Spec: core.FieldSpec{Field: rolledBack}},
			{Name: "rolled_back_at", Spec: core.FieldSpec{Field: core.NewDateTimeField(core.Nullable())}},
		},
		nil,
		nil,
		core.Meta{
			TableName: TableName,
			Indexes:   []*core.Index{core.NewIndex([]string{"name"}, false, "idx_"+TableName+"_name")},
		},
	)
}

// EnsureTable creates the history table and its name index if they don't
// already exist (spec.md §4.6 "created on first contact").
func (s *Store) EnsureTable(ctx context.Context) error {
	m, err := model()
	if err != nil {
		return fmt.Errorf("history: build model: %w", err)
	}
	columns := make([]dialect.ColumnSpec, 0, len(m.Fields()))
	for _, of := range m.Fields() {
		columns = append(columns, columnSpec(s.gen, of.Name, of.Field))
	}
	pk := []string{"id"}
	createDDL := s.gen.CreateTable(TableName, columns, pk, nil)
	if _, err := s.querier.ExecContext(ctx, ifNotExists(createDDL)); err != nil {
		return fmt.Errorf("history: create table: %w", err)
	}
	for _, idx := range m.Meta.Indexes {
		indexDDL := s.gen.CreateIndex(TableName, idx.AutoName(TableName), idx.Fields, idx.Unique)
		if _, err := s.querier.ExecContext(ctx, indexDDL); err != nil {
			return fmt.Errorf("history: create index: %w", err)
		}
	}
	return nil
}

// ifNotExists rewrites a generator's "CREATE TABLE <name> (" into
// "CREATE TABLE IF NOT EXISTS <name> (" so EnsureTable is idempotent
// across repeated invocations (every migration lifecycle call touches the
// history table, unlike a user table's CREATE which the differ only ever
// emits once).
func ifNotExists(createDDL string) string {
	const prefix = "CREATE TABLE "
	if strings.HasPrefix(createDDL, prefix) && !strings.HasPrefix(createDDL, prefix+"IF NOT EXISTS") {
		return prefix + "IF NOT EXISTS " + createDDL[len(prefix):]
	}
	return createDDL
}

func columnSpec(gen dialect.Generator, name string, f *core.Field) dialect.ColumnSpec {
	spec := dialect.ColumnSpec{
		Name:          name,
		SQLType:       gen.ColumnType(f),
		Nullable:      f.Nullable,
		Unique:        f.Unique,
		PrimaryKey:    f.PrimaryKey,
		AutoIncrement: f.AutoIncrement,
	}
	if f.Default != nil {
		spec.HasDefault = true
		spec.DefaultSQL = gen.RenderDefault(f.Default)
	}
	if f.Kind == core.KindEnum {
		spec.Enum = &dialect.EnumSpec{Table: TableName, Column: name, Choices: f.Choices}
	}
	return spec
}

func (s *Store) placeholder(n int) string {
	if s.dtype == dialect.Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Insert records one applied/rolled-back migration (spec.md §4.7).
func (s *Store) Insert(ctx context.Context, row Row) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (name, checksum, previous_checksum, direction, rolled_back) VALUES (%s, %s, %s, %s, %s);",
		s.gen.QuoteIdentifier(TableName),
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
	)
	var prev any
	if row.PreviousChecksum != "" {
		prev = row.PreviousChecksum
	}
	_, err := s.querier.ExecContext(ctx, q, row.Name, row.Checksum, prev, row.Direction, row.RolledBack)
	if err != nil {
		return fmt.Errorf("history: insert %q: %w", row.Name, err)
	}
	return nil
}

// MarkRolledBack flips rolled_back=true, rolled_back_at=now for the named
// row (spec.md §4.7 "down").
func (s *Store) MarkRolledBack(ctx context.Context, name string) error {
	q := fmt.Sprintf(
		"UPDATE %s SET rolled_back = %s, rolled_back_at = %s WHERE name = %s;",
		s.gen.QuoteIdentifier(TableName), trueLiteral(s.dtype), "CURRENT_TIMESTAMP", s.placeholder(1),
	)
	_, err := s.querier.ExecContext(ctx, q, name)
	if err != nil {
		return fmt.Errorf("history: mark rolled back %q: %w", name, err)
	}
	return nil
}

func trueLiteral(d dialect.Type) string {
	if d == dialect.SQLite {
		return "1"
	}
	return "true"
}

// AppliedNames returns every row's name where direction='up' AND
// rolled_back=false, the "applied" set spec.md §4.7 diffs pending
// artifacts against.
func (s *Store) AppliedNames(ctx context.Context) (map[string]struct{}, error) {
	q := fmt.Sprintf("SELECT name FROM %s WHERE direction = %s AND rolled_back = %s;",
		s.gen.QuoteIdentifier(TableName), s.placeholder(1), falseLiteral(s.dtype))
	rows, err := s.querier.QueryContext(ctx, q, "up")
	if err != nil {
		return nil, fmt.Errorf("history: query applied: %w", err)
	}
	defer rows.Close()
	out := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("history: scan applied row: %w", err)
		}
		out[name] = struct{}{}
	}
	return out, rows.Err()
}

func falseLiteral(d dialect.Type) string {
	if d == dialect.SQLite {
		return "0"
	}
	return "false"
}

// LatestApplied returns the most recent direction='up' AND
// rolled_back=false row, or ok=false if none exists (spec.md §4.7 "Drift
// detection": "If absent, skip").
func (s *Store) LatestApplied(ctx context.Context) (row Row, ok bool, err error) {
	q := fmt.Sprintf(
		"SELECT id, name, checksum, previous_checksum, direction, applied_at, rolled_back, rolled_back_at FROM %s WHERE direction = %s AND rolled_back = %s ORDER BY id DESC LIMIT 1;",
		s.gen.QuoteIdentifier(TableName), s.placeholder(1), falseLiteral(s.dtype),
	)
	r := s.querier.QueryRowContext(ctx, q, "up")
	row, err = scanRow(r)
	if err == sql.ErrNoRows {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("history: latest applied: %w", err)
	}
	return row, true, nil
}

// PrecedingApplied returns the most recent direction='up' row with id less
// than beforeID, regardless of its current rolled_back state, the
// previous_checksum chain's referent for Down's tamper check (spec.md §3
// previous_checksum, SPEC_FULL.md §12).
func (s *Store) PrecedingApplied(ctx context.Context, beforeID int64) (row Row, ok bool, err error) {
	q := fmt.Sprintf(
		"SELECT id, name, checksum, previous_checksum, direction, applied_at, rolled_back, rolled_back_at FROM %s WHERE direction = %s AND id < %s ORDER BY id DESC LIMIT 1;",
		s.gen.QuoteIdentifier(TableName), s.placeholder(1), s.placeholder(2),
	)
	r := s.querier.QueryRowContext(ctx, q, "up", beforeID)
	row, err = scanRow(r)
	if err == sql.ErrNoRows {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("history: preceding applied: %w", err)
	}
	return row, true, nil
}

func scanRow(r *sql.Row) (Row, error) {
	var row Row
	var prev sql.NullString
	if err := r.Scan(&row.ID, &row.Name, &row.Checksum, &prev, &row.Direction, &row.AppliedAt, &row.RolledBack, &row.RolledBackAt); err != nil {
		return Row{}, err
	}
	row.PreviousChecksum = prev.String
	return row, nil
}
