package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDir_ScansEachPathOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env_local.yaml"), []byte("name: local\n"), 0o644))

	scans := 0
	load := func(path string) ([]Descriptor, error) {
		scans++
		return []Descriptor{
			NewEager(KindEnvironment, "local", Metadata{}, func(r *Registry) (any, error) {
				return &stubPlugin{name: "local"}, nil
			}),
		}, nil
	}

	r := New(nil)
	require.NoError(t, r.LoadDir(dir, load))
	require.NoError(t, r.LoadDir(dir, load))
	require.Equal(t, 1, scans)
	require.True(t, r.Has(KindEnvironment, "local"))
}

func TestLoadDir_PropagatesLoaderError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("x"), 0o644))

	r := New(nil)
	err := r.LoadDir(dir, func(path string) ([]Descriptor, error) {
		return nil, os.ErrInvalid
	})
	require.Error(t, err)
}
