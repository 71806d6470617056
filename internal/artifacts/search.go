package artifacts

import (
	"database/sql"
	"strings"
	"time"

	"github.com/nullbridge/testforge/internal/errs"
)

// Search joins collections with artifacts (and, when a query is given,
// artifact_content) via LIKE-match, ordered newest-collection-first then by
// artifact type then name, capped at 1000 rows (spec.md §4.5 "Search").
func (r *Repository) Search(query string, filters SearchFilters) ([]SearchResult, error) {
	clauses := []string{"1=1"}
	var args []any

	if filters.Environment != "" {
		clauses = append(clauses, "c.environment_name = ?")
		args = append(args, filters.Environment)
	}
	if filters.ArtifactType != "" {
		clauses = append(clauses, "a.type = ?")
		args = append(args, filters.ArtifactType)
	}
	if filters.Success != nil {
		clauses = append(clauses, "c.success = ?")
		args = append(args, boolToInt(*filters.Success))
	}
	if !filters.DateFrom.IsZero() {
		clauses = append(clauses, "c.created_at >= ?")
		args = append(args, filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		clauses = append(clauses, "c.created_at <= ?")
		args = append(args, filters.DateTo)
	}
	if filters.Tag != "" {
		clauses = append(clauses, "c.id IN (SELECT collection_id FROM collection_tags WHERE tag = ?)")
		args = append(args, filters.Tag)
	}

	join := "LEFT JOIN artifacts a ON a.collection_id = c.id"
	if strings.TrimSpace(query) != "" {
		join = `LEFT JOIN artifacts a ON a.collection_id = c.id
			LEFT JOIN artifact_content ac ON ac.artifact_id = a.id`
		like := "%" + query + "%"
		clauses = append(clauses, "(a.name LIKE ? OR ac.content LIKE ?)")
		args = append(args, like, like)
	}

	stmt := `
		SELECT c.id, c.session_id, c.environment_name, c.success, c.duration_ms, c.total_size, c.artifact_count, c.metadata, c.created_at,
		       a.id, a.collection_id, a.type, a.name, a.path, a.content_type, a.size, a.sha256
		FROM collections c
		` + join + `
		WHERE ` + strings.Join(clauses, " AND ") + `
		ORDER BY c.created_at DESC, a.type ASC, a.name ASC
		LIMIT ?`
	args = append(args, searchResultLimit)

	rows, err := r.db.Query(stmt, args...)
	if err != nil {
		return nil, errs.NewResourceError("", "searching artifacts", err, true)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			c                                                Collection
			metaJSON                                         string
			success                                          int
			durationMS                                       int64
			artifactID, artifactCollectionID, size           sql.NullInt64
			artifactType, artifactName, path, contentType, sha256 sql.NullString
		)
		if err := rows.Scan(
			&c.ID, &c.SessionID, &c.EnvironmentName, &success, &durationMS, &c.TotalSize, &c.ArtifactCount, &metaJSON, &c.CreatedAt,
			&artifactID, &artifactCollectionID, &artifactType, &artifactName, &path, &contentType, &size, &sha256,
		); err != nil {
			return nil, errs.NewResourceError("", "scanning search row", err, false)
		}
		c.Success = success != 0
		c.Duration = time.Duration(durationMS) * time.Millisecond

		result := SearchResult{Collection: c}
		if artifactID.Valid {
			result.Artifact = &Artifact{
				ID:           artifactID.Int64,
				CollectionID: artifactCollectionID.Int64,
				Type:         artifactType.String,
				Name:         artifactName.String,
				Path:         path.String,
				ContentType:  contentType.String,
				Size:         size.Int64,
				SHA256:       sha256.String,
			}
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
