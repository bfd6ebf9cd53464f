package dag

import (
	"testing"
)

func TestImportGraph_AddEdge(t *testing.T) {
	g := NewImportGraph()

	g.AddEdge("file:///a.yaml", "file:///b.yaml")
	g.AddEdge("file:///a.yaml#/collections", "file:///b.yaml") // same edge, different fragment
	g.AddEdge("file:///b.yaml", "file:///c.yaml")

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}

	imports := g.Imports("file:///a.yaml#/collections/x")
	if len(imports) != 1 || imports[0] != "file:///b.yaml" {
		t.Errorf("unexpected imports of a: %v", imports)
	}
	if imports := g.Imports("file:///c.yaml"); len(imports) != 0 {
		t.Errorf("unexpected imports of c: %v", imports)
	}
}

func TestImportGraph_Reachable(t *testing.T) {
	g := NewImportGraph()

	// a -> b -> c, d -> c, e isolated.
	g.AddEdge("file:///a.yaml", "file:///b.yaml")
	g.AddEdge("file:///b.yaml", "file:///c.yaml")
	g.AddEdge("file:///d.yaml", "file:///c.yaml")

	tests := []struct {
		name     string
		from, to string
		want     bool
	}{
		{"self", "file:///e.yaml", "file:///e.yaml#/collections/foo", true},
		{"direct", "file:///a.yaml", "file:///b.yaml", true},
		{"transitive", "file:///a.yaml#/collections/x", "file:///c.yaml#/collections/y", true},
		{"against import direction", "file:///c.yaml", "file:///a.yaml", true},
		{"siblings sharing an import", "file:///a.yaml", "file:///d.yaml", false},
		{"isolated", "file:///a.yaml", "file:///e.yaml", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Reachable(tt.from, tt.to); got != tt.want {
				t.Errorf("Reachable(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
			// Reachability is symmetric.
			if got := g.Reachable(tt.to, tt.from); got != tt.want {
				t.Errorf("Reachable(%q, %q) = %v, want %v", tt.to, tt.from, got, tt.want)
			}
		})
	}
}

func TestImportGraph_ReachableWithCycle(t *testing.T) {
	g := NewImportGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	if !g.Reachable("a", "c") {
		t.Error("expected a to reach c")
	}
	if g.Reachable("a", "z") {
		t.Error("expected a not to reach z")
	}
}

func TestResource(t *testing.T) {
	if got := Resource("file:///a.yaml#/collections/x"); got != "file:///a.yaml" {
		t.Errorf("unexpected resource %q", got)
	}
	if got := Resource("file:///a.yaml"); got != "file:///a.yaml" {
		t.Errorf("unexpected resource %q", got)
	}
}
