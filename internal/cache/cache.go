package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nullbridge/testforge/internal/errs"
	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/spec"
)

const indexFileName = "index.json"

// Cache is the filesystem-backed Result Cache (spec.md §4.3). It is a
// single-writer structure: concurrent Store calls must be serialized by the
// caller. Lookup only needs the in-memory index snapshot, guarded by a
// read-write lock.
type Cache struct {
	root       string
	resultsDir string
	indexPath  string

	mu    sync.RWMutex
	index indexFile
}

// Open loads (or creates) the cache directory at root.
func Open(root string) (*Cache, error) {
	c := &Cache{
		root:       root,
		resultsDir: filepath.Join(root, "results"),
		indexPath:  filepath.Join(root, indexFileName),
		index:      indexFile{Entries: make(map[string]Entry)},
	}

	if err := os.MkdirAll(c.resultsDir, 0o755); err != nil {
		return nil, errs.NewResourceError("", "creating cache directory", err, false)
	}

	data, err := os.ReadFile(c.indexPath)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &c.index); jsonErr != nil {
			return nil, errs.NewResourceError("", "parsing cache index", jsonErr, false)
		}
		if c.index.Entries == nil {
			c.index.Entries = make(map[string]Entry)
		}
	case os.IsNotExist(err):
		// fresh cache
	default:
		return nil, errs.NewResourceError("", "reading cache index", err, false)
	}

	return c, nil
}

// Lookup returns the cached result for spec if a valid entry exists.
// Validity requires every dependency snapshot to still match the file on
// disk, and the recipe file's mtime to not exceed the cache time (spec.md
// §4.3).
func (c *Cache) Lookup(s spec.TestSpec, nodeAttributes map[string]any) (model.TestResult, bool, error) {
	fingerprint, err := Fingerprint(s, nodeAttributes)
	if err != nil {
		return model.TestResult{}, false, err
	}

	c.mu.RLock()
	entry, ok := c.index.Entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return model.TestResult{}, false, nil
	}

	if !entryStillValid(entry) {
		return model.TestResult{}, false, nil
	}

	data, err := os.ReadFile(filepath.Join(c.resultsDir, entry.ResultFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.TestResult{}, false, nil
		}
		return model.TestResult{}, false, errs.NewResourceError("", "reading cached result", err, false)
	}

	var result model.TestResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.TestResult{}, false, errs.NewResourceError("", "parsing cached result", err, false)
	}
	result.FromCache = true
	return result, true, nil
}

func entryStillValid(entry Entry) bool {
	for _, dep := range entry.Dependencies {
		info, err := os.Stat(dep.Path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // a dependency that has since disappeared can't invalidate a cache hit
			}
			return false
		}
		if info.ModTime().After(entry.CachedAt) {
			return false
		}
		currentHash, err := hashFile(dep.Path)
		if err != nil || currentHash != dep.ContentHash {
			return false
		}
	}
	return true
}

// Store persists result under spec's fingerprint. Only passed results are
// stored (spec.md §13.1 Open Question decision): the cache is authoritative
// for known-good runs, and failures are always retried rather than replayed
// from a stale cache.
func (c *Cache) Store(s spec.TestSpec, nodeAttributes map[string]any, result model.TestResult) error {
	if result.Status != model.StatusPassed {
		return nil
	}

	fingerprint, err := Fingerprint(s, nodeAttributes)
	if err != nil {
		return err
	}

	resultFile := fingerprint + ".json"
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errs.NewResourceError("", "marshaling result for cache", err, false)
	}
	if err := writeAtomic(filepath.Join(c.resultsDir, resultFile), data); err != nil {
		return err
	}

	deps := dependencySnapshots(s)
	entry := Entry{
		Fingerprint:  fingerprint,
		SpecName:     s.Name,
		CachedAt:     time.Now(),
		ResultFile:   resultFile,
		Dependencies: deps,
	}

	c.mu.Lock()
	c.index.Entries[fingerprint] = entry
	c.mu.Unlock()

	return c.saveIndex()
}

// Invalidate removes a single cache entry by fingerprint.
func (c *Cache) Invalidate(fingerprint string) error {
	c.mu.Lock()
	entry, ok := c.index.Entries[fingerprint]
	delete(c.index.Entries, fingerprint)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	_ = os.Remove(filepath.Join(c.resultsDir, entry.ResultFile))
	return c.saveIndex()
}

// InvalidateAll deletes every cached result and re-creates an empty cache
// directory.
func (c *Cache) InvalidateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.root); err != nil {
		return errs.NewResourceError("", "clearing cache directory", err, false)
	}
	if err := os.MkdirAll(c.resultsDir, 0o755); err != nil {
		return errs.NewResourceError("", "recreating cache directory", err, false)
	}
	c.index = indexFile{Entries: make(map[string]Entry)}
	return c.saveIndexLocked()
}

// Prune removes entries older than maxAge.
func (c *Cache) Prune(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	c.mu.Lock()
	var stale []Entry
	for fp, entry := range c.index.Entries {
		if entry.CachedAt.Before(cutoff) {
			stale = append(stale, entry)
			delete(c.index.Entries, fp)
		}
	}
	c.mu.Unlock()

	for _, entry := range stale {
		_ = os.Remove(filepath.Join(c.resultsDir, entry.ResultFile))
	}
	return c.saveIndex()
}

func (c *Cache) saveIndex() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveIndexLocked()
}

func (c *Cache) saveIndexLocked() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return errs.NewResourceError("", "marshaling cache index", err, false)
	}
	return writeAtomic(c.indexPath, data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.NewResourceError("", "writing "+path, err, false)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errs.NewResourceError("", "finalizing "+path, err, false)
	}
	return nil
}

// dependencySnapshots captures the recipe file plus any setup file sources
// as the dependency set a cached result's validity is tied to.
func dependencySnapshots(s spec.TestSpec) []DependencySnapshot {
	paths := []string{s.Recipe.Path}
	for _, f := range s.Setup.Files {
		paths = append(paths, f.Source)
	}

	snapshots := make([]DependencySnapshot, 0, len(paths))
	for _, p := range paths {
		hash, err := hashFile(p)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, DependencySnapshot{Path: p, ContentHash: hash})
	}
	return snapshots
}
