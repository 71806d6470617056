package registry

import (
	"fmt"
	"strings"
)

// PluginNotFoundError is returned when a requested (kind, name) is absent
// from the registry (spec.md §4.1).
type PluginNotFoundError struct {
	Kind Kind
	Name string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("plugin not found: kind=%s name=%s", e.Kind, e.Name)
}

// PluginLoadError wraps a failure raised by an eager factory or a lazy
// loader while constructing a plugin instance.
type PluginLoadError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *PluginLoadError) Error() string {
	return fmt.Sprintf("plugin load failed: kind=%s name=%s: %v", e.Kind, e.Name, e.Err)
}

func (e *PluginLoadError) Unwrap() error {
	return e.Err
}

// CircularDependencyError is returned when resolving a plugin's
// dependencies revisits an entry already on the resolution stack.
type CircularDependencyError struct {
	Stack []Ref
}

func (e *CircularDependencyError) Error() string {
	parts := make([]string, 0, len(e.Stack))
	for _, ref := range e.Stack {
		parts = append(parts, fmt.Sprintf("%s/%s", ref.Kind, ref.Name))
	}
	return "circular plugin dependency detected: " + strings.Join(parts, " -> ")
}
