package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nullbridge/testforge/internal/environment"
	"github.com/nullbridge/testforge/internal/errs"
	"github.com/nullbridge/testforge/internal/spec"
)

// writeNodeAttributes serializes the recipe's node attributes to a fixed
// in-environment path, ahead of recipe invocation (spec.md §4.7 step 4).
func writeNodeAttributes(ctx context.Context, env environment.Environment, nodeAttributes map[string]any) error {
	data, err := json.Marshal(nodeAttributes)
	if err != nil {
		return errs.NewExecutionError("", "marshaling node attributes", err, false)
	}
	if err := env.WriteFile(ctx, nodeAttributesPath, data); err != nil {
		return errs.NewExecutionError("", "writing node attributes into environment", err, true)
	}
	return nil
}

// runRecipe exports the recipe's env vars and invokes the recipe path with
// its own timeout, independent of the spec's overall timeout (spec.md
// §4.7 step 4).
func runRecipe(ctx context.Context, env environment.Environment, s spec.TestSpec) error {
	command := buildRecipeCommand(s)
	result, err := env.Execute(ctx, command, defaultRecipeTimeout)
	if err != nil {
		return errs.NewExecutionError("", "invoking recipe "+s.Recipe.Path, err, true)
	}
	if !result.Success {
		return errs.NewExecutionError("", fmt.Sprintf(
			"recipe %s exited %d\nstdout:\n%s\nstderr:\n%s",
			s.Recipe.Path, result.ExitCode, result.Stdout, result.Stderr,
		), nil, false)
	}
	return nil
}

func buildRecipeCommand(s spec.TestSpec) string {
	var b strings.Builder

	keys := make([]string, 0, len(s.Recipe.Environment))
	for k := range s.Recipe.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "export %s=%q; ", k, s.Recipe.Environment[k])
	}

	b.WriteString(s.Recipe.Path)
	return b.String()
}
