// Package planner builds the dependency graph over a filtered set of
// TestSpecs and turns it into a deterministic, grouped ExecutionPlan
// (spec.md §4.2).
package planner

import (
	"sort"

	"github.com/nullbridge/testforge/internal/errs"
	"github.com/nullbridge/testforge/internal/spec"
)

// Node is one vertex in the dependency graph.
type Node struct {
	Name       string
	Spec       *spec.TestSpec
	Requires   []*Node // must complete before Name
	RequiredBy []*Node // depend on Name
}

// Graph is the directed dependency graph over a set of specs. Edges always
// point dependency -> dependent, so both `requires` and `before` collapse
// into the same forward representation (spec.md §4.2).
type Graph struct {
	Nodes map[string]*Node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

func (g *Graph) addNode(s *spec.TestSpec) *Node {
	if n, ok := g.Nodes[s.Name]; ok {
		return n
	}
	n := &Node{Name: s.Name, Spec: s}
	g.Nodes[s.Name] = n
	return n
}

func (g *Graph) addEdge(from, to string) {
	source := g.Nodes[from]
	target := g.Nodes[to]
	source.RequiredBy = append(source.RequiredBy, target)
	target.Requires = append(target.Requires, source)
}

// BuildGraph constructs the dependency graph for a filtered set of specs.
// Every `requires d` on s becomes edge d -> s; every `before d` on s becomes
// edge s -> d (spec.md §4.2). Unresolved references are collected into a
// MissingDependencyError rather than failing on the first one.
func BuildGraph(specs []spec.TestSpec) (*Graph, error) {
	g := NewGraph()
	for i := range specs {
		g.addNode(&specs[i])
	}

	var missing []errs.MissingRef
	for i := range specs {
		s := &specs[i]
		for _, dep := range s.Dependencies.Requires {
			if _, ok := g.Nodes[dep]; !ok {
				missing = append(missing, errs.MissingRef{Spec: s.Name, Reference: dep})
				continue
			}
			g.addEdge(dep, s.Name)
		}
		for _, dep := range s.Dependencies.Before {
			if _, ok := g.Nodes[dep]; !ok {
				missing = append(missing, errs.MissingRef{Spec: s.Name, Reference: dep})
				continue
			}
			g.addEdge(s.Name, dep)
		}
	}

	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool {
			if missing[i].Spec != missing[j].Spec {
				return missing[i].Spec < missing[j].Spec
			}
			return missing[i].Reference < missing[j].Reference
		})
		return nil, &errs.MissingDependencyError{Missing: missing}
	}

	return g, nil
}

// sortedNames returns every node name in the graph, lexicographically sorted.
func (g *Graph) sortedNames() []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectCycle returns one cycle (in DFS-discovery order) if the graph has
// one, or nil if it is acyclic. Nodes are visited in lexicographic order for
// deterministic results (spec.md §8 scenario 2).
func (g *Graph) DetectCycle() []string {
	visited := make(map[string]bool, len(g.Nodes))
	onStack := make(map[string]bool, len(g.Nodes))
	var path []string
	var cycle []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true
		path = append(path, name)

		dependents := append([]*Node(nil), g.Nodes[name].RequiredBy...)
		sort.Slice(dependents, func(i, j int) bool { return dependents[i].Name < dependents[j].Name })

		for _, dep := range dependents {
			if !visited[dep.Name] {
				if dfs(dep.Name) {
					return true
				}
			} else if onStack[dep.Name] {
				idx := len(path) - 1
				for idx >= 0 && path[idx] != dep.Name {
					idx--
				}
				if idx >= 0 {
					cycle = append([]string{}, path[idx:]...)
				}
				return true
			}
		}

		onStack[name] = false
		path = path[:len(path)-1]
		return false
	}

	for _, name := range g.sortedNames() {
		if !visited[name] {
			if dfs(name) {
				break
			}
		}
	}

	return cycle
}

// TopologicalOrder returns a valid topological ordering via Kahn's
// algorithm, tie-breaking by name for deterministic output (spec.md §4.2,
// §8: "the ordering is deterministic for identical input").
func (g *Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	for name, n := range g.Nodes {
		indegree[name] = len(n.Requires)
	}

	var queue []string
	for name, degree := range indegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		dependents := append([]*Node(nil), g.Nodes[current].RequiredBy...)
		sort.Slice(dependents, func(i, j int) bool { return dependents[i].Name < dependents[j].Name })

		var added []string
		for _, dep := range dependents {
			indegree[dep.Name]--
			if indegree[dep.Name] == 0 {
				added = append(added, dep.Name)
			}
		}
		if len(added) > 0 {
			queue = append(queue, added...)
			sort.Strings(queue)
		}
	}

	if len(order) != len(g.Nodes) {
		cycle := g.DetectCycle()
		return nil, &errs.CycleError{Cycle: cycle}
	}

	return order, nil
}

// reachableForward returns every node transitively reachable by following
// RequiredBy edges from start (used by the parallel-group partition's
// transitive-dependency check).
func (g *Graph) reachableForward(start string) map[string]bool {
	visited := map[string]bool{}
	queue := []string{start}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dep := range g.Nodes[name].RequiredBy {
			if !visited[dep.Name] {
				visited[dep.Name] = true
				queue = append(queue, dep.Name)
			}
		}
	}
	return visited
}
