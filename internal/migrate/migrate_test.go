package migrate_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/config"
	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dbconn"
	"sql-buns-migrate/internal/dialect"
	"sql-buns-migrate/internal/dialect/sqlite"
	"sql-buns-migrate/internal/migrate"
)

func userModel(t *testing.T, extra ...core.NamedFieldSpec) *core.Model {
	t.Helper()
	fields := []core.NamedFieldSpec{
		{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
		{Name: "email", Spec: core.FieldSpec{Field: core.NewVarcharField(255)}},
	}
	fields = append(fields, extra...)
	m, err := core.NewModel("User", fields, nil, nil, core.Meta{TableName: "users"})
	require.NoError(t, err)
	return m
}

func newDeps(t *testing.T, dir string) migrate.Dependencies {
	t.Helper()
	pool, err := dbconn.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	return migrate.Dependencies{
		Config:  &config.Config{Engine: dialect.SQLite, MigrationsDir: dir},
		Pool:    pool,
		Dialect: sqlite.NewDialect(),
		Out:     &bytes.Buffer{},
	}
}

func TestCreate_FirstRun_WritesArtifactAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	deps := newDeps(t, dir)
	entries := []migrate.ModelEntry{{Key: "User", Model: userModel(t)}}

	result, err := migrate.Create(context.Background(), deps, entries, "create users")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.Artifact.Stem, "create_users")

	require.FileExists(t, filepath.Join(dir, "schema_snapshot.json"))
	forward, err := os.ReadFile(result.Artifact.Forward)
	require.NoError(t, err)
	assert.Contains(t, string(forward), "CREATE TABLE users")
}

func TestCreate_NoChanges_ReturnsNil(t *testing.T) {
	dir := t.TempDir()
	deps := newDeps(t, dir)
	entries := []migrate.ModelEntry{{Key: "User", Model: userModel(t)}}

	_, err := migrate.Create(context.Background(), deps, entries, "create users")
	require.NoError(t, err)

	result, err := migrate.Create(context.Background(), deps, entries, "create users again")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCreate_LocalAhead_WhenArtifactUnapplied(t *testing.T) {
	dir := t.TempDir()
	deps := newDeps(t, dir)
	entries := []migrate.ModelEntry{{Key: "User", Model: userModel(t)}}

	_, err := migrate.Create(context.Background(), deps, entries, "create users")
	require.NoError(t, err)

	entriesWithColumn := []migrate.ModelEntry{{Key: "User", Model: userModel(t,
		core.NamedFieldSpec{Name: "nickname", Spec: core.FieldSpec{Field: core.NewVarcharField(64, core.Nullable())}},
	)}}

	_, err = migrate.Create(context.Background(), deps, entriesWithColumn, "add nickname")
	require.Error(t, err)
	var localAhead *migrate.LocalAheadError
	require.ErrorAs(t, err, &localAhead)
}

func TestUpThenDown_FullLifecycle(t *testing.T) {
	dir := t.TempDir()
	deps := newDeps(t, dir)
	entries := []migrate.ModelEntry{{Key: "User", Model: userModel(t)}}

	createResult, err := migrate.Create(context.Background(), deps, entries, "create users")
	require.NoError(t, err)
	require.NotNil(t, createResult)

	upResult, err := migrate.Up(context.Background(), deps)
	require.NoError(t, err)
	assert.Equal(t, createResult.Artifact.Stem, upResult.Applied)
	assert.True(t, deps.Pool.TableExists("users"))

	secondUp, err := migrate.Up(context.Background(), deps)
	require.NoError(t, err)
	assert.Empty(t, secondUp.Applied)

	downResult, err := migrate.Down(context.Background(), deps)
	require.NoError(t, err)
	assert.Equal(t, createResult.Artifact.Stem, downResult.RolledBack)
	assert.False(t, deps.Pool.TableExists("users"))
}

func TestDown_NothingApplied_ReturnsEmptyResult(t *testing.T) {
	dir := t.TempDir()
	deps := newDeps(t, dir)

	result, err := migrate.Down(context.Background(), deps)
	require.NoError(t, err)
	assert.Empty(t, result.RolledBack)
}

func TestCreate_DriftDetected_WhenHistoryDisagreesWithSnapshot(t *testing.T) {
	dir := t.TempDir()
	deps := newDeps(t, dir)
	entries := []migrate.ModelEntry{{Key: "User", Model: userModel(t)}}

	_, err := migrate.Create(context.Background(), deps, entries, "create users")
	require.NoError(t, err)
	_, err = migrate.Up(context.Background(), deps)
	require.NoError(t, err)

	// Simulate drift: overwrite the snapshot so its checksum no longer
	// matches the checksum recorded in the history table by the apply above.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema_snapshot.json"), []byte("{}\n"), 0o644))

	entriesWithColumn := []migrate.ModelEntry{{Key: "User", Model: userModel(t,
		core.NamedFieldSpec{Name: "nickname", Spec: core.FieldSpec{Field: core.NewVarcharField(64, core.Nullable())}},
	)}}
	_, err = migrate.Create(context.Background(), deps, entriesWithColumn, "add nickname")
	require.Error(t, err)
	var drift *migrate.SchemaDriftError
	require.ErrorAs(t, err, &drift)
}
