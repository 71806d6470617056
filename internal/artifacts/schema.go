// Package artifacts implements the Artifact Repository: a durable, indexed
// store of test-run artifacts backed by an embedded relational database
// (spec.md §4.5).
package artifacts

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nullbridge/testforge/internal/errs"
)

// schemaVersion is recorded in schema_info and bumped whenever the DDL below
// changes shape.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_info (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS collections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	environment_name TEXT NOT NULL,
	success INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	total_size INTEGER NOT NULL DEFAULT 0,
	artifact_count INTEGER NOT NULL DEFAULT 0,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_collections_created_env_success
	ON collections(created_at, environment_name, success);

CREATE TABLE IF NOT EXISTS artifacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size INTEGER NOT NULL,
	sha256 TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_collection_type_name_ctype
	ON artifacts(collection_id, type, name, content_type);

CREATE TABLE IF NOT EXISTS artifact_content (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	artifact_id INTEGER NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	content TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifact_content_collection
	ON artifact_content(collection_id);

CREATE TABLE IF NOT EXISTS collection_tags (
	collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	PRIMARY KEY (collection_id, tag)
);
CREATE INDEX IF NOT EXISTS idx_collection_tags_tag ON collection_tags(tag);

CREATE TABLE IF NOT EXISTS artifact_views (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	query TEXT NOT NULL DEFAULT '',
	filters TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comparisons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_id1 INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	collection_id2 INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	result TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (collection_id1, collection_id2)
);
`

// Config enumerates the repository's tunables (spec.md §4.5 "Configuration").
type Config struct {
	EnableContentIndexing bool
	MaxContentSize        int64
	IndexTextFilesOnly    bool
	AutoVacuum            bool
	JournalMode           string
}

// DefaultConfig matches spec.md §4.5's enumerated defaults.
func DefaultConfig() Config {
	return Config{
		EnableContentIndexing: true,
		MaxContentSize:        10 * 1024 * 1024,
		IndexTextFilesOnly:    true,
		AutoVacuum:            true,
		JournalMode:           "WAL",
	}
}

// Repository is the embedded-database-backed artifact store.
type Repository struct {
	db     *sql.DB
	path   string
	config Config
}

// Open creates or opens the SQLite-backed repository at path, applying the
// journal-mode and auto-vacuum pragmas from cfg (spec.md §4.5).
func Open(path string, cfg Config) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.NewResourceError("", "opening artifact repository", err, false)
	}
	db.SetMaxOpenConns(1) // single-writer embedded store (SPEC_FULL.md §5)

	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "WAL"
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA journal_mode=%s;", journalMode)); err != nil {
		db.Close()
		return nil, errs.NewResourceError("", "setting journal_mode", err, false)
	}
	if cfg.AutoVacuum {
		if _, err := db.Exec("PRAGMA auto_vacuum=FULL;"); err != nil {
			db.Close()
			return nil, errs.NewResourceError("", "setting auto_vacuum", err, false)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, errs.NewResourceError("", "enabling foreign_keys", err, false)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errs.NewResourceError("", "applying artifact repository schema", err, false)
	}

	if _, err := db.Exec(
		`INSERT INTO schema_info (id, version) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version = excluded.version`, schemaVersion); err != nil {
		db.Close()
		return nil, errs.NewResourceError("", "recording schema version", err, false)
	}

	return &Repository{db: db, path: path, config: cfg}, nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}
