package artifacts

import (
	"time"

	"github.com/nullbridge/testforge/internal/errs"
)

// CleanupOld deletes collections older than maxAge, cascading to their
// artifacts/content/tags via foreign keys, and returns the number of
// collections removed (spec.md §4.5 "Cleanup").
func (r *Repository) CleanupOld(maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := r.db.Exec(`DELETE FROM collections WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, errs.NewResourceError("", "cleaning up old collections", err, false)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errs.NewResourceError("", "reading cleanup row count", err, false)
	}

	if r.config.AutoVacuum {
		if _, err := r.db.Exec(`VACUUM;`); err != nil {
			return int(affected), errs.NewResourceError("", "vacuuming after cleanup", err, true)
		}
	}
	return int(affected), nil
}
