// Package runcontroller is the composition root that wires spec loading,
// planning, orchestration, execution, and persistence into one suite run
// (spec.md §2 "Run Controller", §6 control flow).
package runcontroller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nullbridge/testforge/internal/aggregator"
	"github.com/nullbridge/testforge/internal/artifacts"
	"github.com/nullbridge/testforge/internal/cache"
	"github.com/nullbridge/testforge/internal/executor"
	"github.com/nullbridge/testforge/internal/history"
	"github.com/nullbridge/testforge/internal/logging"
	"github.com/nullbridge/testforge/internal/orchestrator"
	"github.com/nullbridge/testforge/internal/planner"
	"github.com/nullbridge/testforge/internal/registry"
	"github.com/nullbridge/testforge/internal/report"
	"github.com/nullbridge/testforge/internal/spec"
)

// ExitCode mirrors spec.md §6's process exit code contract. Translating it
// into an actual process exit is a CLI front-end concern, out of scope
// here (spec.md §1).
type ExitCode int

const (
	ExitSuitePassed           ExitCode = 0
	ExitSuiteFailedOrErrored  ExitCode = 1
	ExitUncaughtInternalError ExitCode = 2
	ExitSpecLoadOrValidation  ExitCode = 3
)

// Filter selects the subset of loaded specs the run should plan over
// (spec.md §6 control flow, "Run Controller loads specs and applies
// filters").
type Filter struct {
	Tags  []string // keep only specs carrying at least one of these tags
	Names []string // keep only specs whose name is in this set
}

func (f Filter) apply(specs []spec.TestSpec) []spec.TestSpec {
	if len(f.Tags) == 0 && len(f.Names) == 0 {
		return specs
	}

	nameSet := make(map[string]bool, len(f.Names))
	for _, n := range f.Names {
		nameSet[n] = true
	}

	out := make([]spec.TestSpec, 0, len(specs))
	for _, s := range specs {
		if len(f.Names) > 0 && !nameSet[s.Name] {
			continue
		}
		if len(f.Tags) > 0 {
			matched := false
			for _, tag := range f.Tags {
				if s.HasTag(tag) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Config configures a RunController. Root is the directory under which the
// cache, run history, and artifact repository are persisted (spec.md §6
// "Persisted state layouts ... relative to a configurable root").
type Config struct {
	Root             string
	SpecPaths        []string
	Filter           Filter
	Registry         *registry.Registry
	Reporter         report.Reporter
	ParallelWorkers  int
	ToolVersion      string
	ArtifactConfig   artifacts.Config
	CollectOnSuccess bool
	Logger           *logging.Logger
}

// RunController is the composition root wiring every component into one
// suite execution (spec.md §2).
type RunController struct {
	cfg Config

	cache      *cache.Cache
	history    *history.History
	artifacts  *artifacts.Repository
	aggregator *aggregator.Aggregator
}

// Result is what Run returns: the suite's final status, the per-spec
// outcomes, and the exit code a CLI front-end would surface.
type Result struct {
	Suite    aggregator.SuiteStatus
	Entries  []aggregator.Entry
	ExitCode ExitCode
	RunID    string
}

// collector adapts the artifact repository to executor.ArtifactCollector,
// storing collected files under a timestamp-named collection per spec
// (spec.md §6 "Each artifact collection: a timestamp-named directory").
type collector struct {
	repo *artifacts.Repository
}

func New(cfg Config) (*RunController, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Options{Component: "runcontroller"})
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.New(cfg.Logger)
	}

	c, err := cache.Open(filepath.Join(cfg.Root, ".cache"))
	if err != nil {
		return nil, fmt.Errorf("opening result cache: %w", err)
	}

	h, err := history.Open(filepath.Join(cfg.Root, ".history"), cfg.ToolVersion)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}

	artifactCfg := cfg.ArtifactConfig
	if artifactCfg == (artifacts.Config{}) {
		artifactCfg = artifacts.DefaultConfig()
	}
	artifactDir := filepath.Join(cfg.Root, "artifacts")
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	repo, err := artifacts.Open(filepath.Join(artifactDir, "artifacts.db"), artifactCfg)
	if err != nil {
		return nil, fmt.Errorf("opening artifact repository: %w", err)
	}

	return &RunController{
		cfg:        cfg,
		cache:      c,
		history:    h,
		artifacts:  repo,
		aggregator: aggregator.New(),
	}, nil
}

// Close releases every persisted store the controller opened.
func (rc *RunController) Close() error {
	return rc.artifacts.Close()
}

// Run drives one complete suite execution: load -> filter -> plan ->
// orchestrate -> aggregate -> record history (spec.md §6 control flow).
func (rc *RunController) Run(ctx context.Context) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{ExitCode: ExitUncaughtInternalError}
			err = fmt.Errorf("runcontroller: uncaught internal error: %v", r)
		}
	}()

	specs, err := spec.LoadDir(rc.cfg.SpecPaths)
	if err != nil {
		return Result{ExitCode: ExitSpecLoadOrValidation}, fmt.Errorf("loading specs: %w", err)
	}
	if err := spec.ValidateSet(specs); err != nil {
		return Result{ExitCode: ExitSpecLoadOrValidation}, fmt.Errorf("validating specs: %w", err)
	}

	filtered := rc.cfg.Filter.apply(specs)

	plan, err := planner.Plan(filtered)
	if err != nil {
		return Result{ExitCode: ExitSpecLoadOrValidation}, fmt.Errorf("planning: %w", err)
	}

	run := rc.history.Start(suiteName(rc.cfg.SpecPaths))

	exec := executor.New(executor.Options{
		Registry:          rc.cfg.Registry,
		Cache:             rc.cache,
		Logger:            rc.cfg.Logger,
		ArtifactCollector: &collector{repo: rc.artifacts},
		CollectOnSuccess:  rc.cfg.CollectOnSuccess,
	})

	orch := orchestrator.New(orchestrator.Options{
		Runner:          exec,
		Sink:            rc.aggregator,
		Reporter:        rc.cfg.Reporter,
		ParallelWorkers: rc.cfg.ParallelWorkers,
		Logger:          rc.cfg.Logger,
	})

	if err := orch.Run(ctx, plan, filtered); err != nil {
		return Result{ExitCode: ExitUncaughtInternalError}, fmt.Errorf("orchestrating: %w", err)
	}

	recordHistory(run, rc.aggregator)
	suiteStatus := rc.aggregator.FinalStatus()
	record, recErr := run.Finish(summaryFor(rc.aggregator))
	if recErr != nil && rc.cfg.Logger != nil {
		rc.cfg.Logger.Warn("failed to persist run history", "error", recErr)
	}

	return Result{
		Suite:    suiteStatus,
		Entries:  rc.aggregator.Entries(),
		ExitCode: exitCodeFor(suiteStatus),
		RunID:    record.RunID,
	}, nil
}

func exitCodeFor(status aggregator.SuiteStatus) ExitCode {
	switch status {
	case aggregator.SuitePassed, aggregator.SuiteCompleted:
		return ExitSuitePassed
	default:
		return ExitSuiteFailedOrErrored
	}
}

func suiteName(paths []string) string {
	if len(paths) == 0 {
		return "suite"
	}
	return paths[0]
}
