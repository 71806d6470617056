package artifacts

import "time"

// CollectionMetadata is the caller-supplied description of one artifact
// collection (spec.md §4.5 "collections").
type CollectionMetadata struct {
	SessionID       string
	EnvironmentName string
	Success         bool
	Duration        time.Duration
	Extra           map[string]any
}

// ArtifactFile is one file on disk to ingest into a collection.
type ArtifactFile struct {
	Type string // e.g. "log", "screenshot", "config"
	Name string
	Path string
}

// Collection is a stored collection row plus its artifacts.
type Collection struct {
	ID              int64
	SessionID       string
	EnvironmentName string
	Success         bool
	Duration        time.Duration
	TotalSize       int64
	ArtifactCount   int
	Metadata        map[string]any
	CreatedAt       time.Time
	Artifacts       []Artifact
}

// Artifact is one stored file's metadata row.
type Artifact struct {
	ID           int64
	CollectionID int64
	Type         string
	Name         string
	Path         string
	ContentType  string
	Size         int64
	SHA256       string
}

// SearchFilters narrows a Search call (spec.md §4.5 "Search").
type SearchFilters struct {
	Environment  string
	ArtifactType string
	Success      *bool
	DateFrom     time.Time
	DateTo       time.Time
	Tag          string
}

// SearchResult is one row of a search response: a collection joined with
// one matching artifact (or none, when no query was given and the
// collection has no artifacts).
type SearchResult struct {
	Collection Collection
	Artifact   *Artifact
}

const searchResultLimit = 1000
