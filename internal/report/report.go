// Package report defines the Reporter capability contract the Aggregator
// feeds outcomes through. Concrete reporters (console/HTML/JSON rendering)
// are out of scope (spec.md §1 Non-goals); only the contract is specified
// here (spec.md §6).
package report

import (
	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/spec"
)

// Reporter receives suite and per-test lifecycle events as the Orchestrator
// drives an ExecutionPlan (spec.md §6 "Reporter capability").
type Reporter interface {
	StartSuite(specs []spec.TestSpec)
	FinishSuite(specs []spec.TestSpec)
	StartTest(s spec.TestSpec)
	FinishTest(s spec.TestSpec)
	TestPassed(s spec.TestSpec, outcomes []model.ValidatorOutcome)
	TestFailed(s spec.TestSpec, outcomes []model.ValidatorOutcome)
	TestSkipped(s spec.TestSpec, reason string)
}

// Factory constructs a Reporter, resolved from the Plugin Registry by
// (registry.KindReporter, name).
type Factory func(config map[string]any) (Reporter, error)
