package planner

import (
	"github.com/nullbridge/testforge/internal/spec"
)

// ExecutionPlan is a topological ordering of specs partitioned into
// execution groups: members of a group may run concurrently, groups
// themselves run in order (spec.md §3 "ExecutionPlan").
type ExecutionPlan struct {
	Order  []string
	Groups [][]string
}

// Plan builds the execution plan for a filtered set of specs: build the
// graph, fail on unresolved references, fail on cycles, compute a
// deterministic topological order, then partition it into parallel groups.
// A valid plan is never partial (spec.md §4.2 "Failure semantics").
func Plan(specs []spec.TestSpec) (*ExecutionPlan, error) {
	g, err := BuildGraph(specs)
	if err != nil {
		return nil, err
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	groups := partition(g, order)
	return &ExecutionPlan{Order: order, Groups: groups}, nil
}

// partition walks the topological order once; for each unprocessed spec it
// greedily extends a group with subsequent unprocessed specs that share (or
// both lack) an explicit parallel_group tag and have no transitive
// dependency relation with the group's seed member (spec.md §4.2).
//
// `before` edges already collapsed into forward Requires/RequiredBy edges
// during graph construction (see BuildGraph), so the transitive-dependency
// check below covers both relations symmetrically (SPEC_FULL.md §13.3).
func partition(g *Graph, order []string) [][]string {
	assigned := make(map[string]bool, len(order))
	cachedDescendants := make(map[string]map[string]bool, len(order))
	descendantsOf := func(name string) map[string]bool {
		if cached, ok := cachedDescendants[name]; ok {
			return cached
		}
		d := g.reachableForward(name)
		cachedDescendants[name] = d
		return d
	}

	var groups [][]string
	for i, seed := range order {
		if assigned[seed] {
			continue
		}

		group := []string{seed}
		assigned[seed] = true
		seedTag := g.Nodes[seed].Spec.Options.ParallelGroup
		seedDescendants := descendantsOf(seed)

		for j := i + 1; j < len(order); j++ {
			candidate := order[j]
			if assigned[candidate] {
				continue
			}
			if g.Nodes[candidate].Spec.Options.ParallelGroup != seedTag {
				continue
			}
			if seedDescendants[candidate] {
				continue // candidate transitively depends on seed
			}
			if descendantsOf(candidate)[seed] {
				continue // seed transitively depends on candidate
			}
			related := false
			for _, member := range group {
				if member == seed {
					continue
				}
				if descendantsOf(member)[candidate] || descendantsOf(candidate)[member] {
					related = true
					break
				}
			}
			if related {
				continue
			}

			group = append(group, candidate)
			assigned[candidate] = true
		}

		groups = append(groups, group)
	}

	return groups
}
