// Package environment defines the capability contract a backend plugin
// implements to provision and drive an isolated execution environment, plus
// the lifecycle sequencing the Executor drives it through (spec.md §4.6, §6
// "Environment capability"). Concrete backends (container runtimes, VM
// drivers) are out of scope; internal/environment/local is the one
// reference backend this module ships.
package environment

import (
	"context"
	"time"
)

// ExecResult is the outcome of one command run inside an environment.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Success  bool
}

// Environment is the capability surface the Executor and Validators consume
// (spec.md §6 "Environment capability").
type Environment interface {
	Name() string
	Distribution() string
	Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error)
	FileExists(ctx context.Context, path string) (bool, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, content []byte) error
	CopyFile(ctx context.Context, source, destination string) error
	Destroy(ctx context.Context) error
}

// ScreenshotCapable is an optional capability: backends that can capture a
// screenshot implement it.
type ScreenshotCapable interface {
	TakeScreenshot(ctx context.Context, outPath string) (string, error)
}

// LogCollector is an optional capability: backends that expose named log
// files implement it.
type LogCollector interface {
	CollectLogs(ctx context.Context) (map[string]string, error)
}

// Options describes what the Executor asks a backend factory to provision.
type Options struct {
	SpecName     string
	Type         string // container | vm | local
	Distribution string
	Backend      map[string]any
}

// Factory provisions a new Environment, resolved from the Plugin Registry
// by (registry.KindEnvironment, Options.Type) (spec.md §4.6 step 1).
type Factory func(ctx context.Context, opts Options) (Environment, error)
