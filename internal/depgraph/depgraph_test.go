package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/core"
)

func simpleModel(t *testing.T, name string, relations []core.NamedRelationSpec) *core.Model {
	t.Helper()
	m, err := core.NewModel(name, nil, relations, nil, core.Meta{})
	require.NoError(t, err)
	return m
}

func hasOneTo(t *testing.T, target string) core.NamedRelationSpec {
	t.Helper()
	rel, err := core.NewRelation("owner", core.HasOne, target, "owner_id")
	require.NoError(t, err)
	return core.NamedRelationSpec{Name: "owner", Spec: core.RelationSpec{Relation: rel}}
}

func TestResolve_OrdersDependenciesBeforeDependents(t *testing.T) {
	models := map[string]*core.Model{
		"post": simpleModel(t, "post", []core.NamedRelationSpec{hasOneTo(t, "author")}),
		"author": simpleModel(t, "author", nil),
	}
	schema, err := Resolve([]string{"post", "author"}, models)
	require.NoError(t, err)

	order := schema.Keys()
	authorIdx, postIdx := indexOf(order, "author"), indexOf(order, "post")
	assert.GreaterOrEqual(t, postIdx, 0)
	assert.Less(t, authorIdx, postIdx)
}

func TestResolve_IndependentModelsPreserveInsertionOrder(t *testing.T) {
	models := map[string]*core.Model{
		"b": simpleModel(t, "b", nil),
		"a": simpleModel(t, "a", nil),
	}
	schema, err := Resolve([]string{"b", "a"}, models)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, schema.Keys())
}

func TestResolve_PhantomTargetDoesNotBlockOrdering(t *testing.T) {
	models := map[string]*core.Model{
		"comment": simpleModel(t, "comment", []core.NamedRelationSpec{hasOneTo(t, "not_in_batch")}),
	}
	schema, err := Resolve([]string{"comment"}, models)
	require.NoError(t, err)
	assert.Equal(t, []string{"comment"}, schema.Keys())
}

func TestResolve_DetectsCycle(t *testing.T) {
	models := map[string]*core.Model{
		"a": simpleModel(t, "a", []core.NamedRelationSpec{hasOneTo(t, "b")}),
		"b": simpleModel(t, "b", []core.NamedRelationSpec{hasOneTo(t, "a")}),
	}
	_, err := Resolve([]string{"a", "b"}, models)
	require.Error(t, err)
	var cyclic *core.CyclicSchemaError
	require.ErrorAs(t, err, &cyclic)
	assert.NotEmpty(t, cyclic.Path)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
