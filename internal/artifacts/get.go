package artifacts

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nullbridge/testforge/internal/errs"
)

// ErrNotFound is returned by Get when no collection matches the given id.
var ErrNotFound = errors.New("artifacts: collection not found")

// Get loads a collection and its artifacts by id.
func (r *Repository) Get(collectionID int64) (Collection, error) {
	row := r.db.QueryRow(
		`SELECT id, session_id, environment_name, success, duration_ms, total_size, artifact_count, metadata, created_at
		 FROM collections WHERE id = ?`, collectionID)

	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, ErrNotFound
	}
	if err != nil {
		return Collection{}, errs.NewResourceError("", "loading collection", err, true)
	}

	artifacts, err := r.artifactsFor(collectionID)
	if err != nil {
		return Collection{}, err
	}
	c.Artifacts = artifacts
	return c, nil
}

func (r *Repository) artifactsFor(collectionID int64) ([]Artifact, error) {
	rows, err := r.db.Query(
		`SELECT id, collection_id, type, name, path, content_type, size, sha256
		 FROM artifacts WHERE collection_id = ? ORDER BY type, name`, collectionID)
	if err != nil {
		return nil, errs.NewResourceError("", "querying artifacts", err, true)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.CollectionID, &a.Type, &a.Name, &a.Path, &a.ContentType, &a.Size, &a.SHA256); err != nil {
			return nil, errs.NewResourceError("", "scanning artifact row", err, false)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (Collection, error) {
	var c Collection
	var metaJSON string
	var success int
	var durationMS int64
	if err := row.Scan(&c.ID, &c.SessionID, &c.EnvironmentName, &success, &durationMS, &c.TotalSize, &c.ArtifactCount, &metaJSON, &c.CreatedAt); err != nil {
		return Collection{}, err
	}
	c.Success = success != 0
	c.Duration = time.Duration(durationMS) * time.Millisecond
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &c.Metadata)
	}
	return c, nil
}
