// Package orchestrator drives an ExecutionPlan group by group, dispatching
// each group's specs to a bounded worker pool and flushing reporter
// boundaries between groups (spec.md §4.8).
package orchestrator

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/nullbridge/testforge/internal/logging"
	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/planner"
	"github.com/nullbridge/testforge/internal/report"
	"github.com/nullbridge/testforge/internal/spec"
)

// Runner is the narrow contract the Orchestrator drives one spec through;
// satisfied by *executor.Executor without importing internal/executor
// directly, mirroring the ArtifactCollector boundary in internal/executor.
type Runner interface {
	Run(ctx context.Context, s spec.TestSpec) (model.TestResult, error)
}

// ResultSink receives each spec's terminal result as workers finish, in
// arrival order; satisfied by *aggregator.Aggregator.
type ResultSink interface {
	Record(s spec.TestSpec, result model.TestResult)
}

// Options configures an Orchestrator.
type Options struct {
	Runner          Runner
	Sink            ResultSink
	Reporter        report.Reporter
	ParallelWorkers int // 0 = default to max(1, hardware-concurrency-1)
	Logger          *logging.Logger
}

// Orchestrator dispatches an ExecutionPlan's groups to a bounded worker
// pool (spec.md §4.8).
type Orchestrator struct {
	runner   Runner
	sink     ResultSink
	reporter report.Reporter
	workers  int
	logger   *logging.Logger
}

// New builds an Orchestrator from Options, resolving the worker budget to
// max(1, hardware-concurrency-1) when unset (spec.md §4.8).
func New(opts Options) *Orchestrator {
	workers := opts.ParallelWorkers
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}
	return &Orchestrator{
		runner:   opts.Runner,
		sink:     opts.Sink,
		reporter: opts.Reporter,
		workers:  workers,
		logger:   opts.Logger,
	}
}

// specsByName indexes the plan's full spec set for group-member lookup.
func specsByName(specs []spec.TestSpec) map[string]spec.TestSpec {
	byName := make(map[string]spec.TestSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	return byName
}

// Run drives the plan to completion: every group runs to exhaustion, in
// plan order, before the next group is dispatched (spec.md §5 "Ordering
// guarantees"). A cancelled ctx stops dispatch of new specs but still
// awaits outstanding workers in the current group (spec.md §5
// "Cancellation and timeouts").
func (o *Orchestrator) Run(ctx context.Context, plan *planner.ExecutionPlan, specs []spec.TestSpec) error {
	byName := specsByName(specs)

	if o.reporter != nil {
		o.reporter.StartSuite(specs)
		defer o.reporter.FinishSuite(specs)
	}

	for _, group := range plan.Groups {
		members := make([]spec.TestSpec, 0, len(group))
		for _, name := range group {
			s, ok := byName[name]
			if !ok {
				return fmt.Errorf("orchestrator: plan references unknown spec %q", name)
			}
			members = append(members, s)
		}

		if err := o.runGroup(ctx, members); err != nil {
			return err
		}

		if flusher, ok := o.reporter.(interface{ Flush() }); ok {
			flusher.Flush()
		}
	}

	return nil
}

// runGroup runs one group's members either sequentially (group size 1, or
// a worker budget of 1) or on the bounded worker pool, waiting for every
// member before returning (spec.md §4.8).
func (o *Orchestrator) runGroup(ctx context.Context, members []spec.TestSpec) error {
	if len(members) == 1 || o.workers == 1 {
		for _, s := range members {
			o.runOne(ctx, s)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, s := range members {
		s := s
		g.Go(func() error {
			o.runOne(gctx, s)
			return nil
		})
	}

	// g.Wait only ever returns non-nil from a worker's own returned error;
	// runOne never returns one (failures become `error`-status results),
	// so this is purely a join point.
	return g.Wait()
}

// runOne runs a single spec through the Runner, recovering an uncaught
// worker failure into an `error` outcome rather than aborting the group
// (spec.md §4.8 "Uncaught worker failures ... do not abort the group").
// Reporter callbacks for a spec are ordered start -> outcome -> finish
// (spec.md §5 "Ordering guarantees").
func (o *Orchestrator) runOne(ctx context.Context, s spec.TestSpec) {
	if ctx.Err() != nil {
		return // cancelled: this spec is not dispatched
	}
	if o.reporter != nil {
		o.reporter.StartTest(s)
	}

	result := o.execute(ctx, s)

	if o.reporter != nil {
		switch result.Status {
		case model.StatusSkipped:
			o.reporter.TestSkipped(s, result.Message)
		case model.StatusPassed:
			o.reporter.TestPassed(s, result.ValidatorOutcomes)
		default:
			o.reporter.TestFailed(s, result.ValidatorOutcomes)
		}
		o.reporter.FinishTest(s)
	}

	if o.sink != nil {
		o.sink.Record(s, result)
	}
}

// execute recovers a panic escaping the Runner (the executor already
// recovers its own panics, but a faulty registry plugin or a bug in a
// future Runner implementation must not take the whole group down) into an
// `error`-status result.
func (o *Orchestrator) execute(ctx context.Context, s spec.TestSpec) (result model.TestResult) {
	defer func() {
		if r := recover(); r != nil {
			result = model.TestResult{
				SpecName:   s.Name,
				Status:     model.StatusError,
				ErrMessage: fmt.Sprintf("panic: %v", r),
			}
			if o.logger != nil {
				o.logger.Error(nil, "uncaught worker failure", "spec", s.Name, "panic", r)
			}
		}
	}()

	result, err := o.runner.Run(ctx, s)
	if err != nil {
		return model.TestResult{SpecName: s.Name, Status: model.StatusError, ErrMessage: err.Error(), Err: err}
	}
	return result
}
