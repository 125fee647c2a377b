// Package dag builds the graph of struct references in a schema.
//
// An edge runs from a struct to every struct it embeds by value: a struct
// or abstract field outside any array or iter. Such a field is always
// encoded, zero-filled when nil, so a cycle of them can never be written.
// References inside sequences are not edges because an empty sequence ends
// the recursion.
package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/structkit/pkg/schema"
)

// Graph is a directed graph of struct names.
type Graph struct {
	names   []string            // insertion order
	edges   map[string][]string // struct -> structs it embeds
	parents map[string][]string // struct -> structs embedding it
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// FromDefs builds the by-value reference graph of defs. References to
// structs outside defs are ignored.
func FromDefs(defs []*schema.StructDef) *Graph {
	g := NewGraph()
	for _, def := range defs {
		g.AddNode(def.Name)
	}
	for _, def := range defs {
		for _, f := range def.Fields {
			switch f.Type.Kind {
			case schema.KindStruct, schema.KindAbstract:
				if g.HasNode(f.Type.StructName) {
					_ = g.AddEdge(def.Name, f.Type.StructName)
				}
			}
		}
	}
	return g
}

// AddNode adds a struct. Adding it again is a no-op.
func (g *Graph) AddNode(name string) {
	if g.HasNode(name) {
		return
	}
	g.names = append(g.names, name)
	g.edges[name] = []string{}
	g.parents[name] = []string{}
}

// HasNode reports whether name is in the graph.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.edges[name]
	return ok
}

// AddEdge records that from embeds to. Self edges are allowed.
func (g *Graph) AddEdge(from, to string) error {
	if !g.HasNode(from) {
		return fmt.Errorf("struct %q does not exist", from)
	}
	if !g.HasNode(to) {
		return fmt.Errorf("struct %q does not exist", to)
	}
	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
	if !slices.Contains(g.parents[to], from) {
		g.parents[to] = append(g.parents[to], from)
	}
	return nil
}

// Embeds returns the structs name embeds directly.
func (g *Graph) Embeds(name string) []string {
	return g.edges[name]
}

// EmbeddedBy returns the structs embedding name directly.
func (g *Graph) EmbeddedBy(name string) []string {
	return g.parents[name]
}

// NodeCount returns the number of structs.
func (g *Graph) NodeCount() int {
	return len(g.names)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, to := range g.edges {
		count += len(to)
	}
	return count
}

// Cycle returns a cycle as a path that starts and ends with the same
// struct, or nil. Structs are visited in insertion order so the result is
// deterministic.
func (g *Graph) Cycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	from := make(map[string]string)

	var cycle []string
	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true
		for _, next := range g.edges[name] {
			if !visited[next] {
				from[next] = name
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				cycle = []string{next}
				for cur := name; cur != next; cur = from[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, next)
				slices.Reverse(cycle)
				return true
			}
		}
		onStack[name] = false
		return false
	}

	for _, name := range g.names {
		if !visited[name] && dfs(name) {
			return cycle
		}
	}
	return nil
}

// CycleError reports structs that embed each other by value.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "struct cycle: " + strings.Join(e.Path, " -> ")
}

// Order returns the structs with every struct after the structs it
// embeds, keeping insertion order where the graph allows.
func (g *Graph) Order() ([]string, error) {
	if path := g.Cycle(); path != nil {
		return nil, &CycleError{Path: path}
	}

	visited := make(map[string]bool)
	out := make([]string, 0, len(g.names))
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range g.edges[name] {
			visit(dep)
		}
		out = append(out, name)
	}
	for _, name := range g.names {
		visit(name)
	}
	return out, nil
}

// Dependents returns every struct that embeds name, directly or not,
// sorted.
func (g *Graph) Dependents(name string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for _, p := range g.parents[n] {
			if !seen[p] {
				seen[p] = true
				walk(p)
			}
		}
	}
	walk(name)
	delete(seen, name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
