package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nullbridge/testforge/internal/environment"
	"github.com/nullbridge/testforge/internal/errs"
	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/registry"
	"github.com/nullbridge/testforge/internal/spec"
	"github.com/nullbridge/testforge/internal/validate"
)

// dispatchValidators resolves and runs each configured validator in
// declaration order, stopping early on a failure unless
// options.continue_on_error is set (spec.md §4.7 step 5).
func (e *Executor) dispatchValidators(ctx context.Context, env environment.Environment, s spec.TestSpec, nodeAttributes map[string]any) ([]model.ValidatorOutcome, error) {
	outcomes := make([]model.ValidatorOutcome, 0, len(s.Validators))

	for _, vc := range s.Validators {
		v, err := e.resolveValidator(vc)
		if err != nil {
			return outcomes, err
		}

		vctx := validate.Context{
			SpecName:       s.Name,
			NodeAttributes: nodeAttributes,
			Config:         vc.Config,
		}

		started := time.Now()
		if err := v.Validate(ctx, env, vctx); err != nil {
			return outcomes, errs.NewValidationError("", "validator "+v.PluginName()+" failed to run", err)
		}

		outcomes = append(outcomes, model.ValidatorOutcome{
			ValidatorKind: v.PluginName(),
			Success:       v.Success(),
			Errors:        v.Errors(),
			Warnings:      v.Warnings(),
			Duration:      time.Since(started),
		})

		if !v.Success() && !s.Options.ContinueOnError {
			break
		}
	}

	return outcomes, nil
}

// resolveValidator resolves a validator by its declared type, falling back
// to a by-name lookup for type=custom (spec.md §4.7 step 5).
func (e *Executor) resolveValidator(vc spec.ValidatorConfig) (validate.Validator, error) {
	lookupName := vc.Type
	if vc.Type == "custom" && vc.Name != "" {
		lookupName = vc.Name
	}

	raw, err := e.registry.Resolve(registry.KindValidator, lookupName)
	if err != nil {
		return nil, errs.NewPluginError(string(registry.KindValidator), lookupName, err)
	}
	factory, ok := raw.(validate.Factory)
	if !ok {
		return nil, errs.NewPluginError(string(registry.KindValidator), lookupName,
			fmt.Errorf("registered plugin is not a validate.Factory"))
	}
	return factory(vc.Config)
}

// statusFor computes the test's terminal status from the recipe/validator
// error and the validator outcomes collected so far (spec.md §4.7 step 6).
func statusFor(err error, outcomes []model.ValidatorOutcome) model.Status {
	if err != nil {
		return model.StatusError
	}
	for _, o := range outcomes {
		if !o.Success {
			return model.StatusFailed
		}
	}
	return model.StatusPassed
}

func aggregateValidatorErrors(outcomes []model.ValidatorOutcome) string {
	var messages []string
	for _, o := range outcomes {
		for _, e := range o.Errors {
			messages = append(messages, o.ValidatorKind+": "+e.Message)
		}
	}
	return strings.Join(messages, "; ")
}
