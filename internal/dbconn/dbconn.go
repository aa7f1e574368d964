// Package dbconn wraps database/sql with the dialect-specific driver
// imports and the introspection queries the differ and trigger validator
// need (spec.md §6 "External collaborators the core consumes": connection
// pool, introspection helpers). Bootstrap introspection for `inspectdb`
// itself is out of core scope (spec.md §1); this package only answers the
// narrow tableExists/columnExists questions the migration lifecycle needs
// at diff time.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"sql-buns-migrate/internal/dialect"
)

// Pool wraps a *sql.DB with the dialect tag it was opened against, since
// the introspection queries below differ per dialect.
type Pool struct {
	DB      *sql.DB
	Dialect dialect.Type
}

// driverName maps a dialect.Type to the database/sql driver name
// registered by each import above.
func driverName(d dialect.Type) (string, error) {
	switch d {
	case dialect.Postgres:
		return "postgres", nil
	case dialect.MySQL:
		return "mysql", nil
	case dialect.SQLite:
		return "sqlite", nil
	default:
		return "", &dialect.UnsupportedDialectError{Requested: string(d)}
	}
}

// Open opens a pool for d against dsn. The caller owns closing it.
func Open(d dialect.Type, dsn string) (*Pool, error) {
	name, err := driverName(d)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("dbconn: open %s: %w", d, err)
	}
	return &Pool{DB: db, Dialect: d}, nil
}

// TableExists reports whether table exists in the connected database,
// swallowing lookup errors as "no" per spec.md §6's introspection
// contract.
func (p *Pool) TableExists(table string) bool {
	q, args := p.tableExistsQuery(table)
	var found int
	err := p.DB.QueryRowContext(context.Background(), q, args...).Scan(&found)
	return err == nil
}

func (p *Pool) tableExistsQuery(table string) (string, []any) {
	switch p.Dialect {
	case dialect.Postgres:
		return "SELECT 1 FROM information_schema.tables WHERE table_name = $1 LIMIT 1", []any{table}
	case dialect.MySQL:
		return "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ? LIMIT 1", []any{table}
	default: // SQLite
		return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ? LIMIT 1", []any{table}
	}
}

// ColumnExists reports whether table.column exists, swallowing lookup
// errors as "no".
func (p *Pool) ColumnExists(table, column string) bool {
	q, args := p.columnExistsQuery(table, column)
	var found int
	err := p.DB.QueryRowContext(context.Background(), q, args...).Scan(&found)
	return err == nil
}

func (p *Pool) columnExistsQuery(table, column string) (string, []any) {
	switch p.Dialect {
	case dialect.Postgres:
		return "SELECT 1 FROM information_schema.columns WHERE table_name = $1 AND column_name = $2 LIMIT 1", []any{table, column}
	case dialect.MySQL:
		return "SELECT 1 FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ? LIMIT 1", []any{table, column}
	default: // SQLite has no information_schema; pragma_table_info is a
		// table-valued function, safe to parameterize the table name into.
		return "SELECT 1 FROM pragma_table_info(?) WHERE name = ? LIMIT 1", []any{table, column}
	}
}

// TableDDL returns every table's CREATE statement as recorded by SQLite's
// own schema catalog, keyed by table name. It backs the SQLite rebuild
// policy's external-reference pre-check (spec.md §4.3 step 1).
func (p *Pool) TableDDL(ctx context.Context) (map[string]string, error) {
	rows, err := p.DB.QueryContext(ctx, "SELECT name, sql FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, fmt.Errorf("dbconn: list table DDL: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, ddl string
		if err := rows.Scan(&name, &ddl); err != nil {
			return nil, fmt.Errorf("dbconn: scan table DDL: %w", err)
		}
		out[name] = ddl
	}
	return out, rows.Err()
}

// TriggerBodies returns every trigger's CREATE statement, keyed by
// trigger name, for the SQLite rebuild policy's trigger pre-check (spec.md
// §4.3 step 2).
func (p *Pool) TriggerBodies(ctx context.Context) (map[string]string, error) {
	rows, err := p.DB.QueryContext(ctx, "SELECT name, sql FROM sqlite_master WHERE type = 'trigger'")
	if err != nil {
		return nil, fmt.Errorf("dbconn: list trigger bodies: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, ddl string
		if err := rows.Scan(&name, &ddl); err != nil {
			return nil, fmt.Errorf("dbconn: scan trigger body: %w", err)
		}
		out[name] = ddl
	}
	return out, rows.Err()
}

// BeginTx opens a transaction appropriate for the pool's dialect. SQLite
// additionally needs foreign_keys enforcement toggled around a rebuild;
// that is the caller's responsibility via PragmaForeignKeys, since it is a
// connection-level, not transaction-level, setting.
func (p *Pool) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return p.DB.BeginTx(ctx, nil)
}

// PragmaForeignKeys toggles SQLite's foreign key enforcement for the
// rebuild policy's steps 3/8 (spec.md §4.3). It is a no-op on other
// dialects.
func (p *Pool) PragmaForeignKeys(ctx context.Context, enabled bool) error {
	if p.Dialect != dialect.SQLite {
		return nil
	}
	val := "ON"
	if !enabled {
		val = "OFF"
	}
	_, err := p.DB.ExecContext(ctx, "PRAGMA foreign_keys = "+val+";")
	return err
}

// Close closes the underlying *sql.DB.
func (p *Pool) Close() error {
	return p.DB.Close()
}
