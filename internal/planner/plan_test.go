package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nullbridge/testforge/internal/errs"
	"github.com/nullbridge/testforge/internal/spec"
)

func bareSpec(name string, requires ...string) spec.TestSpec {
	return spec.TestSpec{
		Name:         name,
		Recipe:       spec.Recipe{Path: name + ".rb"},
		Environment:  spec.Environment{Type: "local", Distribution: "ubuntu"},
		Validators:   []spec.ValidatorConfig{{Type: "package"}},
		Dependencies: spec.Dependencies{Requires: requires},
	}
}

func TestPlan_LinearChainThenParallel(t *testing.T) {
	t.Parallel()

	specs := []spec.TestSpec{
		bareSpec("A"),
		bareSpec("B", "A"),
		bareSpec("C", "A"),
	}

	plan, err := Plan(specs)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, plan.Order)
	require.Len(t, plan.Groups, 2)
	require.Equal(t, []string{"A"}, plan.Groups[0])
	require.ElementsMatch(t, []string{"B", "C"}, plan.Groups[1])
}

func TestPlan_DetectsCycle(t *testing.T) {
	t.Parallel()

	specs := []spec.TestSpec{
		bareSpec("A", "B"),
		bareSpec("B", "A"),
	}

	plan, err := Plan(specs)
	require.Nil(t, plan)
	require.Error(t, err)

	var cycleErr *errs.CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Contains(t, err.Error(), "Circular dependency detected")
	require.Contains(t, err.Error(), "A -> B -> A")
}

func TestPlan_MissingDependencyCollectsAll(t *testing.T) {
	t.Parallel()

	specs := []spec.TestSpec{
		bareSpec("A", "ghost1"),
		bareSpec("B", "ghost2"),
	}

	plan, err := Plan(specs)
	require.Nil(t, plan)
	require.Error(t, err)

	var missingErr *errs.MissingDependencyError
	require.ErrorAs(t, err, &missingErr)
	require.Len(t, missingErr.Missing, 2)
}

func TestPlan_BeforeEdgeOrdersAndExcludesFromParallelGroup(t *testing.T) {
	t.Parallel()

	a := bareSpec("A")
	a.Dependencies.Before = []string{"C"}
	specs := []spec.TestSpec{a, bareSpec("B"), bareSpec("C")}

	plan, err := Plan(specs)
	require.NoError(t, err)

	posA, posC := indexOfName(plan.Order, "A"), indexOfName(plan.Order, "C")
	require.Less(t, posA, posC)

	for _, group := range plan.Groups {
		if contains(group, "A") {
			require.False(t, contains(group, "C"), "A and C share a before-edge and must not be grouped together")
		}
	}
}

func TestPlan_ParallelGroupTagKeepsDistinctTagsApart(t *testing.T) {
	t.Parallel()

	a := bareSpec("A")
	a.Options.ParallelGroup = "web"
	b := bareSpec("B")
	b.Options.ParallelGroup = "db"

	plan, err := Plan([]spec.TestSpec{a, b})
	require.NoError(t, err)
	require.Len(t, plan.Groups, 2)
}

func indexOfName(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func contains(group []string, name string) bool {
	for _, n := range group {
		if n == name {
			return true
		}
	}
	return false
}
