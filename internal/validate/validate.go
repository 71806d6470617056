// Package validate defines the Validator capability contract. Concrete
// validators (package/service/configuration_file/idempotency/
// functional_test/custom) are out of scope (spec.md §1 Non-goals); only the
// contract the Executor dispatches through is specified here (spec.md §6).
package validate

import (
	"context"

	"github.com/nullbridge/testforge/internal/environment"
	"github.com/nullbridge/testforge/internal/model"
)

// Context carries the per-spec state a Validator needs beyond the
// environment itself: the recipe's node attributes and the spec's own
// validator configuration block.
type Context struct {
	SpecName       string
	NodeAttributes map[string]any
	Config         map[string]any
}

// Validator mutates its own internal errors/warnings during Validate, then
// reports them via Success/Errors/Warnings (spec.md §6 "Validator
// capability"). PluginName identifies the validator kind for reports.
type Validator interface {
	Validate(ctx context.Context, env environment.Environment, vctx Context) error
	Success() bool
	Errors() []model.Error
	Warnings() []model.Warning
	PluginName() string
}

// Factory constructs a Validator, resolved from the Plugin Registry by
// (registry.KindValidator, name).
type Factory func(config map[string]any) (Validator, error)
