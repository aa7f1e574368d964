package dbconn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/dbconn"
	"sql-buns-migrate/internal/dialect"
)

func openPool(t *testing.T) *dbconn.Pool {
	t.Helper()
	pool, err := dbconn.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestOpen_UnsupportedDialectErrors(t *testing.T) {
	_, err := dbconn.Open(dialect.Type("oracle"), "whatever")
	require.Error(t, err)
	var unsupported *dialect.UnsupportedDialectError
	require.ErrorAs(t, err, &unsupported)
}

func TestPool_TableExists(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()

	_, err := pool.DB.ExecContext(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)")
	require.NoError(t, err)

	assert.True(t, pool.TableExists("users"))
	assert.False(t, pool.TableExists("ghost"))
}

func TestPool_ColumnExists(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()

	_, err := pool.DB.ExecContext(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)")
	require.NoError(t, err)

	assert.True(t, pool.ColumnExists("users", "email"))
	assert.False(t, pool.ColumnExists("users", "nickname"))
	assert.False(t, pool.ColumnExists("ghost", "email"))
}

func TestPool_TableDDL(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()

	_, err := pool.DB.ExecContext(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	ddl, err := pool.TableDDL(ctx)
	require.NoError(t, err)
	assert.Contains(t, ddl["users"], "CREATE TABLE users")
}

func TestPool_TriggerBodies(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()

	_, err := pool.DB.ExecContext(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = pool.DB.ExecContext(ctx, "CREATE TRIGGER trg_users_ai AFTER INSERT ON users BEGIN SELECT 1; END")
	require.NoError(t, err)

	triggers, err := pool.TriggerBodies(ctx)
	require.NoError(t, err)
	assert.Contains(t, triggers["trg_users_ai"], "CREATE TRIGGER")
}

func TestPool_PragmaForeignKeys_NoopOnNonSQLite(t *testing.T) {
	pool := openPool(t)
	pool.Dialect = dialect.Postgres
	require.NoError(t, pool.PragmaForeignKeys(context.Background(), true))
}

func TestPool_BeginTx_CommitsDDL(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()

	tx, err := pool.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "CREATE TABLE accounts (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.True(t, pool.TableExists("accounts"))
}
