// Package dag provides the resource import graph of a catalog.
// It answers whether one document scope can see another through declared imports.
package dag

import (
	"slices"
	"strings"
)

// ImportGraph is a directed graph of resource imports.
type ImportGraph struct {
	edges map[string][]string // importer -> imported
}

// NewImportGraph creates a new empty graph.
func NewImportGraph() *ImportGraph {
	return &ImportGraph{
		edges: make(map[string][]string),
	}
}

// AddEdge adds a directed edge from the importing resource to the imported one.
// Fragments of either resource are ignored. Duplicate edges are collapsed.
func (g *ImportGraph) AddEdge(from, to string) {
	from, to = Resource(from), Resource(to)

	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
}

// Imports returns the resources directly imported by a resource.
func (g *ImportGraph) Imports(resource string) []string {
	return g.edges[Resource(resource)]
}

// EdgeCount returns the number of edges in the graph.
func (g *ImportGraph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// Reachable reports whether scope `to` is visible from scope `from`.
// A resource is visible when a directed import path leads from `from` to `to`,
// or from `to` to `from`. A resource is always visible to itself.
func (g *ImportGraph) Reachable(from, to string) bool {
	from, to = Resource(from), Resource(to)
	if from == to {
		return true
	}
	return g.search(from, to) || g.search(to, from)
}

// search performs a breadth-first search along import edges.
func (g *ImportGraph) search(from, to string) bool {
	visited := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) != 0 {
		id := queue[0]
		queue = queue[1:]

		for _, childID := range g.Imports(id) {
			if childID == to {
				return true
			}
			if !visited[childID] {
				visited[childID] = true
				queue = append(queue, childID)
			}
		}
	}
	return false
}

// Resource strips any fragment from a scope URL.
func Resource(scope string) string {
	if i := strings.IndexByte(scope, '#'); i >= 0 {
		return scope[:i]
	}
	return scope
}
