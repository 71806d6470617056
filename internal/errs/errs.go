// Package errs defines the typed error taxonomy shared by every component of
// the orchestration engine. Each category maps to one of the error kinds in
// the error handling design: Configuration, Plugin, Dependency, Environment,
// Execution, Validation, Resource.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies which taxonomy category an error belongs to.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindPlugin        Kind = "plugin"
	KindDependency    Kind = "dependency"
	KindEnvironment   Kind = "environment"
	KindExecution     Kind = "execution"
	KindValidation    Kind = "validation"
	KindResource      Kind = "resource"
)

// Error is the common shape every taxonomy error implements.
type Error interface {
	error
	Kind() Kind
	StepID() string
	Recoverable() bool
	Details() map[string]any
	Unwrap() error
}

type baseError struct {
	kind        Kind
	stepID      string
	message     string
	err         error
	recoverable bool
	details     map[string]any
}

func (e *baseError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.kind))
	b.WriteString(" error")
	if e.stepID != "" {
		fmt.Fprintf(&b, " [%s]", e.stepID)
	}
	if e.message != "" {
		fmt.Fprintf(&b, ": %s", e.message)
	} else if e.err != nil {
		fmt.Fprintf(&b, ": %s", e.err.Error())
	}
	return b.String()
}

func (e *baseError) Kind() Kind               { return e.kind }
func (e *baseError) StepID() string           { return e.stepID }
func (e *baseError) Recoverable() bool        { return e.recoverable }
func (e *baseError) Details() map[string]any  { return e.details }
func (e *baseError) Unwrap() error            { return e.err }
func (e *baseError) Is(target error) bool {
	other, ok := target.(*baseError)
	return ok && other.kind == e.kind
}

func newError(kind Kind, stepID, message string, err error, recoverable bool, details map[string]any) *baseError {
	return &baseError{kind: kind, stepID: stepID, message: message, err: err, recoverable: recoverable, details: details}
}

// NewConfigurationError wraps a spec-loading or field-validation failure. Always fatal.
func NewConfigurationError(field, message string, err error) Error {
	return newError(KindConfiguration, "", message, err, false, map[string]any{"field": field})
}

// NewPluginError wraps a registry failure (not found, load failure, init failure, cycle). Always fatal.
func NewPluginError(kind, name string, err error) Error {
	return newError(KindPlugin, "", fmt.Sprintf("plugin (%s, %s)", kind, name), err, false, map[string]any{"kind": kind, "name": name})
}

// NewDependencyError wraps a missing or circular test dependency. Always fatal at plan time.
func NewDependencyError(message string, details map[string]any) Error {
	return newError(KindDependency, "", message, nil, false, details)
}

// NewEnvironmentError wraps setup/teardown/backend failures. Setup errors are fatal for the
// test; teardown errors are logged but non-fatal; backend-unavailable errors are fatal for the run.
func NewEnvironmentError(stepID, message string, err error, recoverable bool) Error {
	return newError(KindEnvironment, stepID, message, err, recoverable, nil)
}

// NewExecutionError wraps a recipe/command failure or timeout. Recoverable only for
// timeout and network-classified causes, per the default recoverable policy.
func NewExecutionError(stepID, message string, err error, recoverable bool) Error {
	return newError(KindExecution, stepID, message, err, recoverable, nil)
}

// NewValidationError wraps a validator-reported failure. Fatal for the test unless
// continue_on_error is set.
func NewValidationError(stepID, message string, err error) Error {
	return newError(KindValidation, stepID, message, err, false, nil)
}

// NewResourceError wraps a filesystem access failure. Recoverable for transient
// conditions (EEXIST, ENOENT on created paths); fatal on EACCES.
func NewResourceError(stepID, message string, err error, recoverable bool) Error {
	return newError(KindResource, stepID, message, err, recoverable, nil)
}

// Classify extracts a taxonomy Error from any error, following wrapped chains.
func Classify(err error) (Error, bool) {
	var classified Error
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// IsRecoverable reports whether err is both a taxonomy error and marked recoverable.
func IsRecoverable(err error) bool {
	classified, ok := Classify(err)
	return ok && classified.Recoverable()
}

// CycleError lists a dependency cycle in DFS-discovery order; the first element repeats
// at the end when rendered so the error reads as a closed loop (spec.md §8 scenario 2).
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "circular dependency detected"
	}
	path := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("Circular dependency detected: %s", strings.Join(path, " -> "))
}

// MissingDependencyError collects every unresolved dependency reference found while
// building the dependency graph; planning fails whenever this set is non-empty.
type MissingDependencyError struct {
	Missing []MissingRef
}

// MissingRef names one unresolved requires/before reference.
type MissingRef struct {
	Spec      string
	Reference string
}

func (e *MissingDependencyError) Error() string {
	refs := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		refs = append(refs, fmt.Sprintf("%s -> %s", m.Spec, m.Reference))
	}
	sort.Strings(refs)
	return fmt.Sprintf("missing dependency references: %s", strings.Join(refs, ", "))
}
