package scripts

import (
	"slices"
	"sort"

	"geektools.dev/cli/internal/core/domain"
)

// Graph maps every discovered script to the scripts it imports. Edges point
// from the dependent script to its dependency.
type Graph struct {
	imports map[string][]string
}

// NewGraph creates an empty import graph
func NewGraph() *Graph {
	return &Graph{imports: make(map[string][]string)}
}

// Add records node with its imports. Duplicate imports are collapsed and the
// list is kept sorted so traversal never depends on map iteration order.
func (g *Graph) Add(node string, imports []string) {
	deps := slices.Clone(imports)
	slices.Sort(deps)
	g.imports[node] = slices.Compact(deps)
}

// Contains reports whether node has been added
func (g *Graph) Contains(node string) bool {
	_, ok := g.imports[node]
	return ok
}

// Imports returns the sorted imports of node
func (g *Graph) Imports(node string) []string {
	return slices.Clone(g.imports[node])
}

// Nodes returns every node in lexicographic order
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.imports))
	for node := range g.imports {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.imports)
}

// DetectCycle runs a depth-first traversal keeping a visiting and a visited
// set. Reaching a node that is still being visited means the graph has a
// cycle through it.
func (g *Graph) DetectCycle() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var path []string

	var visit func(node string) error
	visit = func(node string) error {
		if visiting[node] {
			start := slices.Index(path, node)
			cycle := append(slices.Clone(path[start:]), node)
			return domain.CircularDependency(node, cycle)
		}
		if visited[node] {
			return nil
		}

		visiting[node] = true
		path = append(path, node)
		for _, dep := range g.imports[node] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(visiting, node)
		visited[node] = true
		return nil
	}

	for _, node := range g.Nodes() {
		if visited[node] {
			continue
		}
		if err := visit(node); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns the nodes so that every node comes after all of
// its imports (Kahn's algorithm). A node's in-degree is the number of its
// imports not yet emitted; ready nodes are taken in lexicographic order.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycle(); err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, len(g.imports))
	dependents := make(map[string][]string, len(g.imports))
	for node, deps := range g.imports {
		inDegree[node] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], node)
		}
	}

	var ready []string
	for node, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, node)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.imports))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		for _, dependent := range dependents[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				i, _ := slices.BinarySearch(ready, dependent)
				ready = slices.Insert(ready, i, dependent)
			}
		}
	}

	if len(order) != len(g.imports) {
		var missing []string
		for _, node := range g.Nodes() {
			if inDegree[node] > 0 {
				missing = append(missing, node)
			}
		}
		return nil, domain.UnresolvedDependencies(missing)
	}
	return order, nil
}
