package cli

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
	_ "sql-buns-migrate/internal/dialect/sqlite"
	"sql-buns-migrate/internal/migrate"
	"sql-buns-migrate/internal/rename"
)

func TestOracleFor_NonInteractiveByDefault(t *testing.T) {
	cfg := &config.Config{Interactive: false}
	o := oracleFor(cfg, Options{})
	_, ok := o.(rename.NonInteractive)
	assert.True(t, ok)
}

func TestOracleFor_InteractiveWithPrompt(t *testing.T) {
	cfg := &config.Config{Interactive: true}
	called := false
	opts := Options{PromptRename: func(table, oldName, newName, kind string) bool {
		called = true
		return true
	}}
	o := oracleFor(cfg, opts)
	assert.True(t, o.ConfirmRename("t", "a", "b", "column"))
	assert.True(t, called)
}

func TestOracleFor_InteractiveButNoPromptFallsBackToNonInteractive(t *testing.T) {
	cfg := &config.Config{Interactive: true}
	o := oracleFor(cfg, Options{})
	_, ok := o.(rename.NonInteractive)
	assert.True(t, ok)
}

func TestDefaultBootstrapper_ReturnsErrNotImplemented(t *testing.T) {
	b := defaultBootstrapper{}
	_, err := b.Bootstrap(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestCreateCmd_RequiresModelLoader(t *testing.T) {
	cmd := createCmd(Options{})
	cmd.SetArgs([]string{"initial"})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ModelLoader configured")
}

func TestRunCreate_WritesMigrationArtifact(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_ENGINE", "sqlite")
	t.Setenv("DATABASE_DSN", ":memory:")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	opts := Options{
		ModelLoader: func() ([]migrate.ModelEntry, error) {
			model, err := core.NewModel("User", []core.NamedFieldSpec{
				{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
			}, nil, nil, core.Meta{TableName: "users"})
			if err != nil {
				return nil, err
			}
			return []migrate.ModelEntry{{Key: "User", Model: model}}, nil
		},
	}

	cmd := createCmd(opts)
	cmd.SetArgs([]string{"initial"})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "wrote")

	entries, err := os.ReadDir(filepath.Join(dir, config.DefaultMigrationsDir))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestInspectdbCmd_NoBootstrapperReportsError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_ENGINE", "sqlite")
	t.Setenv("DATABASE_DSN", ":memory:")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cmd := inspectdbCmd(Options{})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)

	err = cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Bootstrapper configured")
}
