// Package registry maintains a typed (kind, name) lookup of plugin
// implementations — environment backends, validators, reporters, and
// distribution adapters — with eager and lazy registration and transitive
// dependency resolution (spec.md §4.1).
package registry

// Kind identifies a plugin capability category. The core only ever
// dispatches by (Kind, name); concrete implementations are out of scope
// (spec.md §1 Non-goals).
type Kind string

const (
	KindEnvironment  Kind = "environment"
	KindValidator    Kind = "validator"
	KindReporter     Kind = "reporter"
	KindDistribution Kind = "distribution"
)

// Ref names one plugin dependency or resolution-stack entry.
type Ref struct {
	Kind Kind
	Name string
}

// Metadata describes a registered plugin: its version, a human-readable
// description, and the other plugins it requires to be resolvable.
type Metadata struct {
	Version      string
	Description  string
	Dependencies []Ref
}
