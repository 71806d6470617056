package registry

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nullbridge/testforge/internal/logging"
)

// Factory constructs a plugin instance, given the registry it was resolved
// from (so constructors can themselves call Resolve for their dependencies).
type Factory func(r *Registry) (any, error)

// Descriptor is one registration: a (Kind, Name) pair plus either an eager
// factory (invoked immediately at Register time) or a lazy loader (invoked
// once on first Resolve and memoized thereafter) (spec.md §3
// "PluginDescriptor").
type Descriptor struct {
	Kind     Kind
	Name     string
	Metadata Metadata

	factory Factory
	loader  Factory
}

// NewEager builds a Descriptor whose factory runs immediately at
// registration time.
func NewEager(kind Kind, name string, meta Metadata, factory Factory) Descriptor {
	return Descriptor{Kind: kind, Name: name, Metadata: meta, factory: factory}
}

// NewLazy builds a Descriptor whose loader runs on first resolution and is
// memoized afterward.
func NewLazy(kind Kind, name string, meta Metadata, loader Factory) Descriptor {
	return Descriptor{Kind: kind, Name: name, Metadata: meta, loader: loader}
}

type key struct {
	kind Kind
	name string
}

// Registry is a thread-safe (kind, name) -> plugin instance lookup with
// dependency-aware resolution.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[key]Descriptor
	instances   map[key]any
	scanned     map[string]bool
	logger      *logging.Logger

	loaders singleflight.Group // serializes concurrent lazy loads per (kind, name)
}

// New creates an empty registry. log may be nil (overwrite/scan warnings
// are then dropped silently).
func New(log *logging.Logger) *Registry {
	return &Registry{
		descriptors: make(map[key]Descriptor),
		instances:   make(map[key]any),
		scanned:     make(map[string]bool),
		logger:      log,
	}
}

// Register adds a descriptor. A duplicate (kind, name) overwrites the
// previous registration and logs a warning (spec.md §4.1 "directory
// loading"). An eager descriptor's factory runs immediately; failures are
// reported as PluginLoadError and the registration is rejected.
func (r *Registry) Register(d Descriptor) error {
	k := key{d.Kind, d.Name}

	r.mu.Lock()
	if _, exists := r.descriptors[k]; exists {
		r.logWarn("overwriting existing plugin registration", d.Kind, d.Name)
	}
	delete(r.instances, k)
	r.mu.Unlock()

	if d.factory != nil {
		instance, err := d.factory(r)
		if err != nil {
			return &PluginLoadError{Kind: d.Kind, Name: d.Name, Err: err}
		}
		r.mu.Lock()
		r.instances[k] = instance
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.descriptors[k] = d
	r.mu.Unlock()
	return nil
}

// Resolve returns the plugin instance for (kind, name), transitively
// resolving and memoizing its declared dependencies first. Cycles in the
// dependency graph fail with CircularDependencyError naming the full
// resolution stack (spec.md §4.1).
func (r *Registry) Resolve(kind Kind, name string) (any, error) {
	return r.resolve(kind, name, nil)
}

func (r *Registry) resolve(kind Kind, name string, stack []Ref) (any, error) {
	k := key{kind, name}

	r.mu.RLock()
	if instance, ok := r.instances[k]; ok {
		r.mu.RUnlock()
		return instance, nil
	}
	d, ok := r.descriptors[k]
	r.mu.RUnlock()
	if !ok {
		return nil, &PluginNotFoundError{Kind: kind, Name: name}
	}

	for _, entry := range stack {
		if entry.Kind == kind && entry.Name == name {
			cycle := append(append([]Ref{}, stack...), Ref{Kind: kind, Name: name})
			return nil, &CircularDependencyError{Stack: cycle}
		}
	}
	nextStack := append(append([]Ref{}, stack...), Ref{Kind: kind, Name: name})

	for _, dep := range d.Metadata.Dependencies {
		if _, err := r.resolve(dep.Kind, dep.Name, nextStack); err != nil {
			return nil, err
		}
	}

	if d.loader == nil {
		// Eager descriptors populate their instance at Register time; reaching
		// here with no loader means the eager factory previously failed and
		// the registration was rejected, so there is nothing left to resolve.
		return nil, &PluginNotFoundError{Kind: kind, Name: name}
	}

	// Concurrent Resolve calls for the same not-yet-loaded (kind, name) must
	// not both invoke the loader: singleflight serializes them onto one
	// in-flight call, and every waiter receives its result (spec.md §5
	// "lazy loaders run under a per-key lock").
	sfKey := string(kind) + "\x00" + name
	result, err, _ := r.loaders.Do(sfKey, func() (any, error) {
		r.mu.RLock()
		if instance, ok := r.instances[k]; ok {
			r.mu.RUnlock()
			return instance, nil
		}
		r.mu.RUnlock()

		instance, err := d.loader(r)
		if err != nil {
			return nil, &PluginLoadError{Kind: kind, Name: name, Err: err}
		}

		r.mu.Lock()
		r.instances[k] = instance
		r.mu.Unlock()
		return instance, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns the sorted union of every registered name for kind,
// regardless of whether it has been lazily resolved yet.
func (r *Registry) List(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0)
	for k := range r.descriptors {
		if k.kind == kind {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

// Has reports whether (kind, name) has a registered descriptor.
func (r *Registry) Has(kind Kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[key{kind, name}]
	return ok
}

func (r *Registry) logWarn(msg string, kind Kind, name string) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(msg, "kind", string(kind), "name", name)
}
