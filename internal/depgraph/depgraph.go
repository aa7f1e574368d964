// Package depgraph resolves the creation order of models by topologically
// sorting the graph of relation dependencies (spec.md §4.4, C4): an edge
// A -> B means "B owns a relation whose target is A", so A must be visited
// before B. It has no dependency on package differ or dialect; it only
// needs enough of core.Model to read relation targets.
package depgraph

import (
	"strings"

	"sql-buns-migrate/internal/core"
)

// Resolve builds a core.Schema from models, ordering keys so that every
// model appears after all models it depends on (its relation targets).
// keys gives the caller's load order (e.g. the order model files were
// read from disk); Go maps have no iteration order of their own, so the
// "insertion order" tie-break from spec.md §4.4 is anchored on keys, not
// on models itself. Target names absent from models are treated as
// phantom leaves so that a model depending on a not-yet-known table is
// still ordered, without the resolver itself rejecting the reference (C5
// decides whether that reference is createNow/defer/error).
func Resolve(keys []string, models map[string]*core.Model) (*core.Schema, error) {
	g := newGraph(keys, models)
	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	return core.NewSchemaInOrder(order, models), nil
}

type graph struct {
	insertion []string
	edges     map[string][]string // node -> nodes that must come before it
}

func newGraph(keys []string, models map[string]*core.Model) *graph {
	g := &graph{
		insertion: keys,
		edges:     make(map[string][]string, len(models)),
	}
	for _, key := range keys {
		m, ok := models[key]
		if !ok {
			continue
		}
		for _, rel := range m.Relations() {
			target := rel.Relation.Target
			if _, ok := models[target]; !ok {
				target = phantomKey(target)
			}
			g.edges[key] = append(g.edges[key], target)
		}
	}
	return g
}

func phantomKey(name string) string {
	return "\x00phantom:" + name
}

const (
	unvisited = 0
	visiting  = 1
	visited   = 2
)

func (g *graph) topoSort() ([]string, error) {
	state := make(map[string]int, len(g.insertion))
	var order []string
	var path []string

	var visit func(node string) error
	visit = func(node string) error {
		switch state[node] {
		case visited:
			return nil
		case visiting:
			cycle := append(append([]string(nil), path...), node)
			return &core.CyclicSchemaError{Path: stripPhantoms(cycle)}
		}
		state[node] = visiting
		path = append(path, node)

		for _, dep := range g.edges[node] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[node] = visited
		if !isPhantom(node) {
			order = append(order, node)
		}
		return nil
	}

	for _, node := range g.insertion {
		if err := visit(node); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func isPhantom(node string) bool {
	return strings.HasPrefix(node, "\x00phantom:")
}

func stripPhantoms(path []string) []string {
	out := make([]string, 0, len(path))
	for _, n := range path {
		if isPhantom(n) {
			out = append(out, strings.TrimPrefix(n, "\x00phantom:"))
			continue
		}
		out = append(out, n)
	}
	return out
}
