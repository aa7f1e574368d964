package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/snapshot"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "add_users_table", snapshot.Slugify("Add Users Table!"))
	assert.Equal(t, "already_ok", snapshot.Slugify("already_ok"))
	assert.Equal(t, "trimmed", snapshot.Slugify("__trimmed__"))
}

func TestNewArtifactStem(t *testing.T) {
	assert.Equal(t, "1700000000000_add_users", snapshot.NewArtifactStem("Add Users", 1700000000000))
}

func TestWriteAndReadSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	model, err := core.NewModel("User", []core.NamedFieldSpec{
		{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
		{Name: "email", Spec: core.FieldSpec{Field: core.NewVarcharField(255)}},
	}, nil, nil, core.Meta{TableName: "users"})
	require.NoError(t, err)

	schema := core.NewSchemaInOrder([]string{"User"}, map[string]*core.Model{"User": model})
	require.NoError(t, snapshot.WriteSnapshot(dir, schema))

	require.FileExists(t, filepath.Join(dir, snapshot.SnapshotFileName))

	loaded, err := snapshot.ReadSnapshot(dir)
	require.NoError(t, err)
	loadedModel, ok := loaded.Model("User")
	require.True(t, ok)
	assert.Equal(t, "users", loadedModel.TableName())

	originalSum, err := core.Checksum(schema)
	require.NoError(t, err)
	loadedSum, err := core.Checksum(loaded)
	require.NoError(t, err)
	assert.Equal(t, originalSum, loadedSum)
}

func TestReadSnapshot_MissingFileReturnsEmptySchema(t *testing.T) {
	dir := t.TempDir()
	schema, err := snapshot.ReadSnapshot(dir)
	require.NoError(t, err)
	assert.Empty(t, schema.Keys())
}

func TestWriteArtifact_WritesForwardReverseAndChecksumSidecar(t *testing.T) {
	dir := t.TempDir()
	art, err := snapshot.WriteArtifact(dir, "1_initial", []string{"CREATE TABLE users (id INTEGER);"}, []string{"DROP TABLE users;"}, "deadbeef")
	require.NoError(t, err)

	fwd, err := os.ReadFile(art.Forward)
	require.NoError(t, err)
	assert.Contains(t, string(fwd), "CREATE TABLE users")

	rev, err := os.ReadFile(art.Reverse)
	require.NoError(t, err)
	assert.Contains(t, string(rev), "DROP TABLE users")

	checksum, err := os.ReadFile(filepath.Join(dir, "1_initial.checksum"))
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", string(checksum))
}

func TestListArtifacts_OrderedAndChecksumAttached(t *testing.T) {
	dir := t.TempDir()
	_, err := snapshot.WriteArtifact(dir, "2_second", []string{"SELECT 1;"}, []string{"SELECT 1;"}, "sumtwo")
	require.NoError(t, err)
	_, err = snapshot.WriteArtifact(dir, "1_first", []string{"SELECT 1;"}, []string{"SELECT 1;"}, "sumone")
	require.NoError(t, err)

	artifacts, err := snapshot.ListArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "1_first", artifacts[0].Stem)
	assert.Equal(t, "sumone", artifacts[0].Checksum)
	assert.Equal(t, "2_second", artifacts[1].Stem)
	assert.Equal(t, "sumtwo", artifacts[1].Checksum)
}

func TestListArtifacts_EmptyDirReturnsNil(t *testing.T) {
	dir := t.TempDir()
	artifacts, err := snapshot.ListArtifacts(filepath.Join(dir, "does-not-exist"))
	require.NoError(t, err)
	assert.Nil(t, artifacts)
}

func TestReadStatements(t *testing.T) {
	dir := t.TempDir()
	art, err := snapshot.WriteArtifact(dir, "1_x", []string{"CREATE TABLE a (id INTEGER);", "CREATE TABLE b (id INTEGER);"}, []string{"DROP TABLE b;", "DROP TABLE a;"}, "sum")
	require.NoError(t, err)

	script, err := snapshot.ReadStatements(art.Forward)
	require.NoError(t, err)
	assert.Contains(t, script, "CREATE TABLE a")
	assert.Contains(t, script, "CREATE TABLE b")
}
