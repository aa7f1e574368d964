package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/config"
	"sql-buns-migrate/internal/dialect"
	_ "sql-buns-migrate/internal/dialect/postgres"
	_ "sql-buns-migrate/internal/dialect/sqlite"
)

func writeProjectFile(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0o644))
}

func TestLoad_DefaultsWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_ENGINE", "sqlite")
	t.Setenv("DATABASE_DSN", "file:test.db")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, cfg.Engine)
	assert.Equal(t, "file:test.db", cfg.DSN)
	assert.Equal(t, config.DefaultModelsPath, cfg.ModelsPath)
	assert.Equal(t, config.DefaultMigrationsDir, cfg.MigrationsDir)
	assert.False(t, cfg.Interactive)
}

func TestLoad_ReadsProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, `
interactive = true

[database]
engine = "postgres"
dsn = "postgres://localhost/app"

[paths]
models_path = "app/models"
migrations_dir = "app/migrations"
`)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres, cfg.Engine)
	assert.Equal(t, "postgres://localhost/app", cfg.DSN)
	assert.Equal(t, "app/models", cfg.ModelsPath)
	assert.Equal(t, "app/migrations", cfg.MigrationsDir)
	assert.True(t, cfg.Interactive)
}

func TestLoad_EnvOverridesProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, `
[database]
engine = "postgres"
dsn = "postgres://localhost/app"
`)
	t.Setenv("DATABASE_ENGINE", "sqlite")
	t.Setenv("DATABASE_DSN", "file:override.db")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, cfg.Engine)
	assert.Equal(t, "file:override.db", cfg.DSN)
}

func TestLoad_MissingEngineErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Load(dir)
	require.Error(t, err)
	var unsupported *dialect.UnsupportedDialectError
	require.ErrorAs(t, err, &unsupported)
}

func TestLoad_UnregisteredEngineErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_ENGINE", "oracle")

	_, err := config.Load(dir)
	require.Error(t, err)
}

func TestLoad_MalformedProjectFileErrors(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "not = valid = toml = [")

	_, err := config.Load(dir)
	require.Error(t, err)
	var invalid *config.InvalidConfigError
	require.ErrorAs(t, err, &invalid)
}
