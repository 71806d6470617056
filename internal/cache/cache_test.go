package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/spec"
)

func writeRecipe(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCache_StoreThenLookupHits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recipe := writeRecipe(t, dir, "recipe.rb", "package 'git'")

	c, err := Open(filepath.Join(dir, ".cache"))
	require.NoError(t, err)

	s := spec.TestSpec{Name: "t1", Recipe: spec.Recipe{Path: recipe}, Environment: spec.Environment{Type: "local", Distribution: "ubuntu"}}
	result := model.TestResult{SpecName: "t1", Status: model.StatusPassed}

	require.NoError(t, c.Store(s, nil, result))

	got, ok, err := c.Lookup(s, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "t1", got.SpecName)
	require.True(t, got.FromCache)
}

func TestCache_FailedResultsNeverStored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recipe := writeRecipe(t, dir, "recipe.rb", "x")
	c, err := Open(filepath.Join(dir, ".cache"))
	require.NoError(t, err)

	s := spec.TestSpec{Name: "t1", Recipe: spec.Recipe{Path: recipe}}
	require.NoError(t, c.Store(s, nil, model.TestResult{SpecName: "t1", Status: model.StatusFailed}))

	_, ok, err := c.Lookup(s, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_StaleRecipeInvalidatesEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recipe := writeRecipe(t, dir, "recipe.rb", "v1")
	c, err := Open(filepath.Join(dir, ".cache"))
	require.NoError(t, err)

	s := spec.TestSpec{Name: "t1", Recipe: spec.Recipe{Path: recipe}}
	require.NoError(t, c.Store(s, nil, model.TestResult{SpecName: "t1", Status: model.StatusPassed}))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(recipe, []byte("v2 changed"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(recipe, future, future))

	_, ok, err := c.Lookup(s, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_DifferentNodeAttributesMiss(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recipe := writeRecipe(t, dir, "recipe.rb", "x")
	c, err := Open(filepath.Join(dir, ".cache"))
	require.NoError(t, err)

	s := spec.TestSpec{Name: "t1", Recipe: spec.Recipe{Path: recipe}}
	require.NoError(t, c.Store(s, map[string]any{"version": "1"}, model.TestResult{SpecName: "t1", Status: model.StatusPassed}))

	_, ok, err := c.Lookup(s, map[string]any{"version": "2"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_InvalidateRemovesEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recipe := writeRecipe(t, dir, "recipe.rb", "x")
	c, err := Open(filepath.Join(dir, ".cache"))
	require.NoError(t, err)

	s := spec.TestSpec{Name: "t1", Recipe: spec.Recipe{Path: recipe}}
	require.NoError(t, c.Store(s, nil, model.TestResult{SpecName: "t1", Status: model.StatusPassed}))

	fp, err := Fingerprint(s, nil)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(fp))

	_, ok, err := c.Lookup(s, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_PruneRemovesOldEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recipe := writeRecipe(t, dir, "recipe.rb", "x")
	c, err := Open(filepath.Join(dir, ".cache"))
	require.NoError(t, err)

	s := spec.TestSpec{Name: "t1", Recipe: spec.Recipe{Path: recipe}}
	require.NoError(t, c.Store(s, nil, model.TestResult{SpecName: "t1", Status: model.StatusPassed}))

	require.NoError(t, c.Prune(-1*time.Second)) // everything is "older" than a negative age

	_, ok, err := c.Lookup(s, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_ReopenLoadsPersistedIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recipe := writeRecipe(t, dir, "recipe.rb", "x")
	cacheDir := filepath.Join(dir, ".cache")

	c1, err := Open(cacheDir)
	require.NoError(t, err)
	s := spec.TestSpec{Name: "t1", Recipe: spec.Recipe{Path: recipe}}
	require.NoError(t, c1.Store(s, nil, model.TestResult{SpecName: "t1", Status: model.StatusPassed}))

	c2, err := Open(cacheDir)
	require.NoError(t, err)
	_, ok, err := c2.Lookup(s, nil)
	require.NoError(t, err)
	require.True(t, ok)
}
