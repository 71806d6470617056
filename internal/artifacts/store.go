package artifacts

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"os"
	"time"

	"github.com/nullbridge/testforge/internal/errs"
)

// StoreCollection ingests metadata plus a set of artifact files
// transactionally: insert the collection row, hash/size/content-type each
// artifact, roll up total_size/artifact_count, and index eligible content
// (spec.md §4.5 "store_collection"). Returns the new collection id. An
// artifact whose path no longer exists on disk is skipped rather than
// failing the transaction (spec.md §8); any other failure rolls the whole
// transaction back.
func (r *Repository) StoreCollection(meta CollectionMetadata, files []ArtifactFile) (int64, error) {
	metaJSON, err := json.Marshal(meta.Extra)
	if err != nil {
		return 0, errs.NewResourceError("", "marshaling collection metadata", err, false)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, errs.NewResourceError("", "beginning store_collection transaction", err, true)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	createdAt := time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO collections (session_id, environment_name, success, duration_ms, total_size, artifact_count, metadata, created_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?, ?)`,
		meta.SessionID, meta.EnvironmentName, boolToInt(meta.Success), meta.Duration.Milliseconds(), string(metaJSON), createdAt,
	)
	if err != nil {
		return 0, errs.NewResourceError("", "inserting collection", err, false)
	}
	collectionID, err := res.LastInsertId()
	if err != nil {
		return 0, errs.NewResourceError("", "reading collection id", err, false)
	}

	var totalSize int64
	var stored int
	for _, f := range files {
		_, size, ok, err := storeArtifact(tx, collectionID, f, r.config)
		if err != nil {
			return 0, err
		}
		if !ok {
			// a file referenced by the collection but missing on disk by the
			// time it's stored is skipped rather than failing the whole
			// collection (spec.md §8 "artifacts.size == |A'|").
			continue
		}
		totalSize += size
		stored++
	}

	if _, err := tx.Exec(
		`UPDATE collections SET total_size = ?, artifact_count = ? WHERE id = ?`,
		totalSize, stored, collectionID,
	); err != nil {
		return 0, errs.NewResourceError("", "updating collection rollup", err, false)
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.NewResourceError("", "committing store_collection transaction", err, true)
	}
	return collectionID, nil
}

// storeArtifact inserts one artifact row. The third return value is false
// (with a nil error) when f.Path no longer exists on disk — the caller
// skips such artifacts rather than failing the whole collection.
func storeArtifact(tx *sql.Tx, collectionID int64, f ArtifactFile, cfg Config) (int64, int64, bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, false, nil
		}
		return 0, 0, false, errs.NewResourceError("", "reading artifact "+f.Path, err, false)
	}

	contentType := detectContentType(f.Path, data)
	hash := sha256.Sum256(data)

	res, err := tx.Exec(
		`INSERT INTO artifacts (collection_id, type, name, path, content_type, size, sha256)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		collectionID, f.Type, f.Name, f.Path, contentType, len(data), hex.EncodeToString(hash[:]),
	)
	if err != nil {
		return 0, 0, false, errs.NewResourceError("", "inserting artifact "+f.Name, err, false)
	}
	artifactID, err := res.LastInsertId()
	if err != nil {
		return 0, 0, false, errs.NewResourceError("", "reading artifact id", err, false)
	}

	if shouldIndex(cfg, contentType, int64(len(data))) {
		if _, err := tx.Exec(
			`INSERT INTO artifact_content (artifact_id, collection_id, content) VALUES (?, ?, ?)`,
			artifactID, collectionID, string(data),
		); err != nil {
			return 0, 0, false, errs.NewResourceError("", "indexing artifact content for "+f.Name, err, false)
		}
	}

	return artifactID, int64(len(data)), true, nil
}

func shouldIndex(cfg Config, contentType string, size int64) bool {
	if !cfg.EnableContentIndexing {
		return false
	}
	if size > cfg.MaxContentSize {
		return false
	}
	if cfg.IndexTextFilesOnly && !isTextLike(contentType) {
		return false
	}
	return true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
