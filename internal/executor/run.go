package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/nullbridge/testforge/internal/environment"
	"github.com/nullbridge/testforge/internal/errs"
	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/registry"
	"github.com/nullbridge/testforge/internal/retry"
	"github.com/nullbridge/testforge/internal/spec"
)

const nodeAttributesPath = "/tmp/testforge-node-attributes.json"

// Run executes one TestSpec through its full lifecycle (spec.md §4.7).
func (e *Executor) Run(ctx context.Context, s spec.TestSpec) (model.TestResult, error) {
	start := time.Now().UTC()

	if skipped, reason := isSkipped(s, start); skipped {
		return model.TestResult{
			SpecName: s.Name,
			Status:   model.StatusSkipped,
			Start:    start,
			End:      start,
			Message:  reason,
		}, nil
	}

	nodeAttributes := s.Recipe.NodeJSON

	if e.cache != nil {
		if cached, hit, err := e.cache.Lookup(s, nodeAttributes); err == nil && hit {
			cached.FromCache = true
			return cached, nil
		}
	}

	timeout := time.Duration(s.Options.TimeoutSeconds()) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := e.runUninstrumented(runCtx, s, nodeAttributes, start)

	if e.cache != nil && result.Status == model.StatusPassed {
		if err := e.cache.Store(s, nodeAttributes, result); err != nil && e.logger != nil {
			e.logger.Warn("result cache store failed", "spec", s.Name, "error", err)
		}
	}

	return result, nil
}

// runUninstrumented drives environment creation through teardown, recovering
// from a panic in any step as an `error`-status result rather than
// propagating it (spec.md §4.7 step 6 "uncaught exceptions").
func (e *Executor) runUninstrumented(ctx context.Context, s spec.TestSpec, nodeAttributes map[string]any, start time.Time) (result model.TestResult) {
	defer func() {
		if r := recover(); r != nil {
			result = model.TestResult{
				SpecName:   s.Name,
				Status:     model.StatusError,
				Start:      start,
				End:        time.Now().UTC(),
				ErrMessage: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	env, err := e.createEnvironment(ctx, s)
	if err != nil {
		return model.TestResult{
			SpecName: s.Name, Status: model.StatusError, Start: start, End: time.Now().UTC(),
			ErrMessage: err.Error(), Err: err,
		}
	}
	defer environment.Destroy(ctx, env, e.logger)

	if err := environment.RunSetup(ctx, env, s.Setup, e.logger); err != nil {
		testPassed := false
		environment.RunCleanup(ctx, env, s.Cleanup, testPassed, e.logger)
		result := model.TestResult{
			SpecName: s.Name, Status: model.StatusError, Start: start, End: time.Now().UTC(),
			ErrMessage: err.Error(), Err: err,
		}
		e.collectArtifacts(ctx, s, env, result)
		return result
	}

	var outcomes []model.ValidatorOutcome
	var recipeErr error

	attempt := func(attemptCtx context.Context) error {
		var attemptErr error
		outcomes, attemptErr = e.executeAndValidate(attemptCtx, env, s, nodeAttributes)
		return attemptErr
	}

	if s.Options.Retries > 0 {
		recipeErr = retry.Do(ctx, retry.Policy{MaxAttempts: s.Options.Retries + 1}, attempt)
	} else {
		recipeErr = attempt(ctx)
	}

	status := statusFor(recipeErr, outcomes)
	testPassed := status == model.StatusPassed
	environment.RunCleanup(ctx, env, s.Cleanup, testPassed, e.logger)

	result = model.TestResult{
		SpecName:          s.Name,
		Status:            status,
		Start:             start,
		End:               time.Now().UTC(),
		ValidatorOutcomes: outcomes,
	}
	if recipeErr != nil {
		result.ErrMessage = recipeErr.Error()
		result.Err = recipeErr
	} else if status != model.StatusPassed {
		result.Message = aggregateValidatorErrors(outcomes)
	}

	e.collectArtifacts(ctx, s, env, result)
	return result
}

// collectArtifacts requests artifact collection while the environment is
// still alive: mandatory on failure/error, optional on success per policy
// (spec.md §4.7 step 8). Failures are logged, never escalated onto the
// test's own outcome.
func (e *Executor) collectArtifacts(ctx context.Context, s spec.TestSpec, env environment.Environment, result model.TestResult) {
	if e.collector == nil {
		return
	}
	if result.Status == model.StatusPassed && !e.collectOnSuccess {
		return
	}
	if err := e.collector.Collect(ctx, s, env, result); err != nil && e.logger != nil {
		e.logger.Warn("artifact collection failed", "spec", s.Name, "error", err)
	}
}

func (e *Executor) createEnvironment(ctx context.Context, s spec.TestSpec) (environment.Environment, error) {
	raw, err := e.registry.Resolve(registry.KindEnvironment, s.Environment.Type)
	if err != nil {
		return nil, errs.NewPluginError(string(registry.KindEnvironment), s.Environment.Type, err)
	}
	factory, ok := raw.(environment.Factory)
	if !ok {
		return nil, errs.NewPluginError(string(registry.KindEnvironment), s.Environment.Type,
			fmt.Errorf("registered plugin is not an environment.Factory"))
	}
	return factory(ctx, environment.Options{
		SpecName:     s.Name,
		Type:         s.Environment.Type,
		Distribution: s.Environment.Distribution,
		Backend:      s.Environment.Options,
	})
}

// executeAndValidate runs the recipe and dispatches validators in
// declaration order (spec.md §4.7 steps 4-5). Wrapped by retry.Do when
// spec.options.retries > 0.
func (e *Executor) executeAndValidate(ctx context.Context, env environment.Environment, s spec.TestSpec, nodeAttributes map[string]any) ([]model.ValidatorOutcome, error) {
	if err := writeNodeAttributes(ctx, env, nodeAttributes); err != nil {
		return nil, err
	}

	if err := runRecipe(ctx, env, s); err != nil {
		return nil, err
	}

	return e.dispatchValidators(ctx, env, s, nodeAttributes)
}
