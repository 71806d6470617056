package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubPlugin struct{ name string }

func TestRegistry_EagerRegisterAndResolve(t *testing.T) {
	t.Parallel()

	r := New(nil)
	err := r.Register(NewEager(KindEnvironment, "local", Metadata{Version: "1.0.0"}, func(r *Registry) (any, error) {
		return &stubPlugin{name: "local"}, nil
	}))
	require.NoError(t, err)

	instance, err := r.Resolve(KindEnvironment, "local")
	require.NoError(t, err)
	require.Equal(t, "local", instance.(*stubPlugin).name)
}

func TestRegistry_LazyLoaderRunsOnceAndMemoizes(t *testing.T) {
	t.Parallel()

	calls := 0
	r := New(nil)
	err := r.Register(NewLazy(KindValidator, "package", Metadata{}, func(r *Registry) (any, error) {
		calls++
		return &stubPlugin{name: "package"}, nil
	}))
	require.NoError(t, err)

	_, err = r.Resolve(KindValidator, "package")
	require.NoError(t, err)
	_, err = r.Resolve(KindValidator, "package")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRegistry_NotFound(t *testing.T) {
	t.Parallel()

	r := New(nil)
	_, err := r.Resolve(KindReporter, "missing")
	require.Error(t, err)

	var notFound *PluginNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRegistry_LoadErrorWraps(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r := New(nil)
	err := r.Register(NewLazy(KindValidator, "broken", Metadata{}, func(r *Registry) (any, error) {
		return nil, boom
	}))
	require.NoError(t, err) // lazy registration itself never fails

	_, err = r.Resolve(KindValidator, "broken")
	require.Error(t, err)

	var loadErr *PluginLoadError
	require.ErrorAs(t, err, &loadErr)
	require.ErrorIs(t, err, boom)
}

func TestRegistry_EagerFactoryFailureRejectsRegistration(t *testing.T) {
	t.Parallel()

	r := New(nil)
	err := r.Register(NewEager(KindValidator, "broken", Metadata{}, func(r *Registry) (any, error) {
		return nil, errors.New("boom")
	}))
	require.Error(t, err)

	var loadErr *PluginLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestRegistry_TransitiveDependencyResolvedFirst(t *testing.T) {
	t.Parallel()

	var order []string
	r := New(nil)
	require.NoError(t, r.Register(NewLazy(KindValidator, "base", Metadata{}, func(r *Registry) (any, error) {
		order = append(order, "base")
		return &stubPlugin{name: "base"}, nil
	})))
	require.NoError(t, r.Register(NewLazy(KindValidator, "derived", Metadata{
		Dependencies: []Ref{{Kind: KindValidator, Name: "base"}},
	}, func(r *Registry) (any, error) {
		order = append(order, "derived")
		return &stubPlugin{name: "derived"}, nil
	})))

	_, err := r.Resolve(KindValidator, "derived")
	require.NoError(t, err)
	require.Equal(t, []string{"base", "derived"}, order)
}

func TestRegistry_CircularDependencyDetected(t *testing.T) {
	t.Parallel()

	r := New(nil)
	require.NoError(t, r.Register(NewLazy(KindValidator, "a", Metadata{
		Dependencies: []Ref{{Kind: KindValidator, Name: "b"}},
	}, func(r *Registry) (any, error) { return &stubPlugin{name: "a"}, nil })))
	require.NoError(t, r.Register(NewLazy(KindValidator, "b", Metadata{
		Dependencies: []Ref{{Kind: KindValidator, Name: "a"}},
	}, func(r *Registry) (any, error) { return &stubPlugin{name: "b"}, nil })))

	_, err := r.Resolve(KindValidator, "a")
	require.Error(t, err)

	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
}

func TestRegistry_ListReturnsSortedNames(t *testing.T) {
	t.Parallel()

	r := New(nil)
	require.NoError(t, r.Register(NewEager(KindReporter, "json", Metadata{}, func(r *Registry) (any, error) { return &stubPlugin{}, nil })))
	require.NoError(t, r.Register(NewLazy(KindReporter, "console", Metadata{}, func(r *Registry) (any, error) { return &stubPlugin{}, nil })))

	require.Equal(t, []string{"console", "json"}, r.List(KindReporter))
}

func TestRegistry_ConcurrentResolveInvokesLazyLoaderOnce(t *testing.T) {
	t.Parallel()

	var calls int64
	release := make(chan struct{})
	r := New(nil)
	require.NoError(t, r.Register(NewLazy(KindValidator, "slow", Metadata{}, func(r *Registry) (any, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return &stubPlugin{name: "slow"}, nil
	})))

	const workers = 8
	var wg sync.WaitGroup
	results := make([]any, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(KindValidator, "slow")
		}(i)
	}

	close(release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt64(&calls))
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Same(t, results[0].(*stubPlugin), results[i].(*stubPlugin))
	}
}

func TestRegistry_DuplicateRegistrationOverwrites(t *testing.T) {
	t.Parallel()

	r := New(nil)
	require.NoError(t, r.Register(NewEager(KindReporter, "console", Metadata{Version: "1.0.0"}, func(r *Registry) (any, error) {
		return &stubPlugin{name: "v1"}, nil
	})))
	require.NoError(t, r.Register(NewEager(KindReporter, "console", Metadata{Version: "2.0.0"}, func(r *Registry) (any, error) {
		return &stubPlugin{name: "v2"}, nil
	})))

	instance, err := r.Resolve(KindReporter, "console")
	require.NoError(t, err)
	require.Equal(t, "v2", instance.(*stubPlugin).name)
}
