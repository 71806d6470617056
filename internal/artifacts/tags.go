package artifacts

import "github.com/nullbridge/testforge/internal/errs"

// Tag replaces collectionID's tag set atomically (spec.md §4.5 "Tagging").
func (r *Repository) Tag(collectionID int64, tags []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errs.NewResourceError("", "beginning tag transaction", err, true)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM collection_tags WHERE collection_id = ?`, collectionID); err != nil {
		return errs.NewResourceError("", "clearing existing tags", err, false)
	}
	for _, tag := range tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO collection_tags (collection_id, tag) VALUES (?, ?)`, collectionID, tag); err != nil {
			return errs.NewResourceError("", "inserting tag "+tag, err, false)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.NewResourceError("", "committing tag transaction", err, true)
	}
	return nil
}

// FindByTag returns every collection carrying tag (spec.md §4.5 "Tagging").
func (r *Repository) FindByTag(tag string) ([]Collection, error) {
	rows, err := r.db.Query(
		`SELECT c.id, c.session_id, c.environment_name, c.success, c.duration_ms, c.total_size, c.artifact_count, c.metadata, c.created_at
		 FROM collections c
		 JOIN collection_tags t ON t.collection_id = c.id
		 WHERE t.tag = ?
		 ORDER BY c.created_at DESC`, tag)
	if err != nil {
		return nil, errs.NewResourceError("", "querying collections by tag", err, true)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, errs.NewResourceError("", "scanning tagged collection", err, false)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
