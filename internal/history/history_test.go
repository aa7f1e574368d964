package history_test

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/dialect"
	"sql-buns-migrate/internal/dialect/sqlite"
	"sql-buns-migrate/internal/history"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_EnsureTable_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	store := history.NewStore(db, sqlite.NewDialect())
	ctx := context.Background()

	require.NoError(t, store.EnsureTable(ctx))
	require.NoError(t, store.EnsureTable(ctx))

	var name string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", history.TableName).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, history.TableName, name)
}

func TestStore_InsertAndLatestApplied(t *testing.T) {
	db := openTestDB(t)
	store := history.NewStore(db, sqlite.NewDialect())
	ctx := context.Background()
	require.NoError(t, store.EnsureTable(ctx))

	require.NoError(t, store.Insert(ctx, history.Row{Name: "1_initial", Checksum: "sum1", Direction: "up"}))
	require.NoError(t, store.Insert(ctx, history.Row{Name: "2_second", Checksum: "sum2", PreviousChecksum: "sum1", Direction: "up"}))

	latest, ok, err := store.LatestApplied(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2_second", latest.Name)
	assert.Equal(t, "sum2", latest.Checksum)
	assert.Equal(t, "sum1", latest.PreviousChecksum)
}

func TestStore_LatestApplied_NoneYet(t *testing.T) {
	db := openTestDB(t)
	store := history.NewStore(db, sqlite.NewDialect())
	ctx := context.Background()
	require.NoError(t, store.EnsureTable(ctx))

	_, ok, err := store.LatestApplied(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_AppliedNames_ExcludesRolledBack(t *testing.T) {
	db := openTestDB(t)
	store := history.NewStore(db, sqlite.NewDialect())
	ctx := context.Background()
	require.NoError(t, store.EnsureTable(ctx))

	require.NoError(t, store.Insert(ctx, history.Row{Name: "1_initial", Checksum: "sum1", Direction: "up"}))
	require.NoError(t, store.Insert(ctx, history.Row{Name: "2_second", Checksum: "sum2", Direction: "up"}))
	require.NoError(t, store.MarkRolledBack(ctx, "2_second"))

	names, err := store.AppliedNames(ctx)
	require.NoError(t, err)
	_, hasFirst := names["1_initial"]
	_, hasSecond := names["2_second"]
	assert.True(t, hasFirst)
	assert.False(t, hasSecond)
}

func TestStore_MarkRolledBack_RemovesFromLatestApplied(t *testing.T) {
	db := openTestDB(t)
	store := history.NewStore(db, sqlite.NewDialect())
	ctx := context.Background()
	require.NoError(t, store.EnsureTable(ctx))

	require.NoError(t, store.Insert(ctx, history.Row{Name: "1_initial", Checksum: "sum1", Direction: "up"}))
	require.NoError(t, store.MarkRolledBack(ctx, "1_initial"))

	_, ok, err := store.LatestApplied(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RunsWithinTransaction(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	bootstrap := history.NewStore(db, sqlite.NewDialect())
	require.NoError(t, bootstrap.EnsureTable(ctx))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	txStore := history.NewStore(tx, sqlite.NewDialect())
	require.NoError(t, txStore.Insert(ctx, history.Row{Name: "1_initial", Checksum: "sum1", Direction: "up"}))
	require.NoError(t, tx.Commit())

	latest, ok, err := bootstrap.LatestApplied(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1_initial", latest.Name)
}

var _ dialect.Dialect = sqlite.NewDialect()
