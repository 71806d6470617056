// Package executor runs one TestSpec end to end: skip check, cache lookup,
// environment provisioning, recipe execution, validator dispatch, cleanup,
// teardown, and artifact-collection handoff (spec.md §4.7).
package executor

import (
	"context"
	"time"

	"github.com/nullbridge/testforge/internal/cache"
	"github.com/nullbridge/testforge/internal/environment"
	"github.com/nullbridge/testforge/internal/logging"
	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/registry"
	"github.com/nullbridge/testforge/internal/spec"
)

// defaultRecipeTimeout is the recipe step's own deadline, independent of
// spec.options.timeout (spec.md §4.7 step 4).
const defaultRecipeTimeout = 600 * time.Second

// ArtifactCollector receives the post-run state for a test so it can store
// diagnostic artifacts (spec.md §4.7 step 8). Concrete collectors adapt
// internal/artifacts.Repository; the executor only depends on this narrow
// contract to avoid binding the two packages together.
type ArtifactCollector interface {
	Collect(ctx context.Context, s spec.TestSpec, env environment.Environment, result model.TestResult) error
}

// Options configures an Executor.
type Options struct {
	Registry          *registry.Registry
	Cache             *cache.Cache // nil disables caching
	Logger            *logging.Logger
	ArtifactCollector ArtifactCollector // nil disables artifact collection
	CollectOnSuccess  bool              // artifact collection is optional on success (spec.md §4.7 step 8)
}

// Executor runs individual TestSpecs.
type Executor struct {
	registry         *registry.Registry
	cache            *cache.Cache
	logger           *logging.Logger
	collector        ArtifactCollector
	collectOnSuccess bool
}

// New builds an Executor from Options.
func New(opts Options) *Executor {
	return &Executor{
		registry:         opts.Registry,
		cache:            opts.Cache,
		logger:           opts.Logger,
		collector:        opts.ArtifactCollector,
		collectOnSuccess: opts.CollectOnSuccess,
	}
}
