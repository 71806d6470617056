// Package cache is the fingerprint-keyed Result Cache: a filesystem
// directory holding a JSON index plus one result blob per stored entry,
// written atomically via write-to-temp-then-rename (spec.md §4.3).
package cache

import "time"

// DependencySnapshot records a file's state at the moment a result was
// cached, so a later lookup can detect staleness.
type DependencySnapshot struct {
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
}

// Entry is one cache index record (spec.md §3 "CacheEntry").
type Entry struct {
	Fingerprint  string               `json:"fingerprint"`
	SpecName     string               `json:"spec_name"`
	CachedAt     time.Time            `json:"cached_at"`
	ResultFile   string               `json:"result_file"`
	Dependencies []DependencySnapshot `json:"dependencies"`
}

// indexFile is the on-disk shape of the index.json.
type indexFile struct {
	Entries map[string]Entry `json:"entries"`
}
