package differ_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/depgraph"
	"sql-buns-migrate/internal/dialect"
	"sql-buns-migrate/internal/dialect/mysql"
	"sql-buns-migrate/internal/dialect/postgres"
	"sql-buns-migrate/internal/dialect/sqlite"
	"sql-buns-migrate/internal/differ"
	"sql-buns-migrate/internal/rename"
)

func schemaOf(t *testing.T, models map[string]*core.Model) *core.Schema {
	t.Helper()
	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	s, err := depgraph.Resolve(keys, models)
	require.NoError(t, err)
	return s
}

func emptySchema() *core.Schema {
	return core.NewSchemaInOrder(nil, map[string]*core.Model{})
}

func userModel(t *testing.T, fields ...core.NamedFieldSpec) *core.Model {
	t.Helper()
	if len(fields) == 0 {
		fields = []core.NamedFieldSpec{
			{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
			{Name: "email", Spec: core.FieldSpec{Field: core.NewVarcharField(255)}},
		}
	}
	m, err := core.NewModel("User", fields, nil, nil, core.Meta{TableName: "users"})
	require.NoError(t, err)
	return m
}

func TestDiff_NewTable_SQLite(t *testing.T) {
	old := emptySchema()
	current := schemaOf(t, map[string]*core.Model{"User": userModel(t)})

	result, err := differ.Diff(old, current, differ.Options{Dialect: sqlite.NewDialect()})
	require.NoError(t, err)
	require.Len(t, result.Forward, 1)
	require.Len(t, result.Reverse, 1)
	assert.Contains(t, result.Forward[0], "CREATE TABLE users")
	assert.Contains(t, result.Reverse[0], "DROP TABLE IF EXISTS users")
	assert.Empty(t, result.Warnings)
}

func TestDiff_AddColumn_Postgres(t *testing.T) {
	old := schemaOf(t, map[string]*core.Model{"User": userModel(t)})
	current := schemaOf(t, map[string]*core.Model{"User": userModel(t,
		core.NamedFieldSpec{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
		core.NamedFieldSpec{Name: "email", Spec: core.FieldSpec{Field: core.NewVarcharField(255)}},
		core.NamedFieldSpec{Name: "nickname", Spec: core.FieldSpec{Field: core.NewVarcharField(64, core.Nullable())}},
	)})

	result, err := differ.Diff(old, current, differ.Options{Dialect: postgres.NewDialect()})
	require.NoError(t, err)
	require.Len(t, result.Forward, 1)
	assert.Contains(t, result.Forward[0], "ADD COLUMN")
	assert.Contains(t, result.Forward[0], "nickname")
	assert.Contains(t, result.Reverse[0], "DROP COLUMN")
}

func TestDiff_AddNotNullColumnWithoutDefault_Warns(t *testing.T) {
	old := schemaOf(t, map[string]*core.Model{"User": userModel(t)})
	current := schemaOf(t, map[string]*core.Model{"User": userModel(t,
		core.NamedFieldSpec{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
		core.NamedFieldSpec{Name: "email", Spec: core.FieldSpec{Field: core.NewVarcharField(255)}},
		core.NamedFieldSpec{Name: "age", Spec: core.FieldSpec{Field: core.NewIntegerField()}},
	)})

	result, err := differ.Diff(old, current, differ.Options{Dialect: postgres.NewDialect()})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, differ.WarnAddNotNullWithoutDefault, result.Warnings[0].Code)
}

func TestDiff_DropTable_Warns(t *testing.T) {
	old := schemaOf(t, map[string]*core.Model{"User": userModel(t)})
	current := emptySchema()

	result, err := differ.Diff(old, current, differ.Options{Dialect: mysql.NewDialect()})
	require.NoError(t, err)
	require.Len(t, result.Forward, 1)
	assert.Contains(t, result.Forward[0], "DROP TABLE")
	require.Len(t, result.Reverse, 1)
	assert.Contains(t, result.Reverse[0], "CREATE TABLE")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, differ.WarnDroppedTable, result.Warnings[0].Code)
}

func TestDiff_ConfirmedRename_EmitsRenameNotDropAdd(t *testing.T) {
	old := schemaOf(t, map[string]*core.Model{"User": userModel(t)})
	current := schemaOf(t, map[string]*core.Model{"User": userModel(t,
		core.NamedFieldSpec{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
		core.NamedFieldSpec{Name: "email_address", Spec: core.FieldSpec{Field: core.NewVarcharField(255)}},
	)})

	confirmed := rename.Func(func(table, oldName, newName, kind string) bool {
		return oldName == "email" && newName == "email_address"
	})

	result, err := differ.Diff(old, current, differ.Options{Dialect: postgres.NewDialect(), Oracle: confirmed})
	require.NoError(t, err)
	require.Len(t, result.Forward, 1)
	assert.Contains(t, result.Forward[0], "RENAME COLUMN")
}

func TestDiff_UnconfirmedRename_EmitsDropAndAdd(t *testing.T) {
	old := schemaOf(t, map[string]*core.Model{"User": userModel(t)})
	current := schemaOf(t, map[string]*core.Model{"User": userModel(t,
		core.NamedFieldSpec{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
		core.NamedFieldSpec{Name: "email_address", Spec: core.FieldSpec{Field: core.NewVarcharField(255)}},
	)})

	result, err := differ.Diff(old, current, differ.Options{Dialect: postgres.NewDialect(), Oracle: rename.NonInteractive{}})
	require.NoError(t, err)
	joined := strings.Join(result.Forward, "\n")
	assert.Contains(t, joined, "DROP COLUMN")
	assert.Contains(t, joined, "ADD COLUMN")
}

func TestDiff_ModifiedColumn_SQLiteRoutesThroughRebuild(t *testing.T) {
	old := schemaOf(t, map[string]*core.Model{"User": userModel(t)})
	current := schemaOf(t, map[string]*core.Model{"User": userModel(t,
		core.NamedFieldSpec{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
		core.NamedFieldSpec{Name: "email", Spec: core.FieldSpec{Field: core.NewVarcharField(320)}},
	)})

	result, err := differ.Diff(old, current, differ.Options{Dialect: sqlite.NewDialect()})
	require.NoError(t, err)
	require.NotEmpty(t, result.Forward)
	joined := ""
	for _, s := range result.Forward {
		joined += s + "\n"
	}
	assert.Contains(t, joined, "users_new")
}

func TestDiff_NoChange_ProducesEmptyResult(t *testing.T) {
	m := userModel(t)
	old := schemaOf(t, map[string]*core.Model{"User": m})
	current := schemaOf(t, map[string]*core.Model{"User": userModel(t)})

	result, err := differ.Diff(old, current, differ.Options{Dialect: postgres.NewDialect()})
	require.NoError(t, err)
	assert.Empty(t, result.Forward)
	assert.Empty(t, result.Reverse)
	assert.Empty(t, result.Warnings)
}

func TestDiff_RequiresDialect(t *testing.T) {
	_, err := differ.Diff(emptySchema(), emptySchema(), differ.Options{})
	require.Error(t, err)
}

func TestDiff_IndexNameOnlyChange_ProducesNoDDL(t *testing.T) {
	base := func(indexName string) *core.Model {
		m, err := core.NewModel("User", []core.NamedFieldSpec{
			{Name: "id", Spec: core.FieldSpec{Field: core.NewIntegerField(core.PrimaryKey(), core.AutoIncrement())}},
			{Name: "email", Spec: core.FieldSpec{Field: core.NewVarcharField(255)}},
		}, nil, nil, core.Meta{
			TableName: "users",
			Indexes:   []*core.Index{core.NewIndex([]string{"email"}, true, indexName)},
		})
		require.NoError(t, err)
		return m
	}

	old := schemaOf(t, map[string]*core.Model{"User": base("idx_users_email_legacy")})
	current := schemaOf(t, map[string]*core.Model{"User": base("")})

	result, err := differ.Diff(old, current, differ.Options{Dialect: postgres.NewDialect()})
	require.NoError(t, err)
	assert.Empty(t, result.Forward)
	assert.Empty(t, result.Reverse)

	oldSum, curSum, err := core.ChecksumPair(old, current)
	require.NoError(t, err)
	assert.Equal(t, oldSum, curSum)
}

func TestDialectRegistry_UnknownDialectErrors(t *testing.T) {
	_, err := dialect.GetDialect(dialect.Type("oracle"))
	require.Error(t, err)
	var unsupported *dialect.UnsupportedDialectError
	require.ErrorAs(t, err, &unsupported)
}
