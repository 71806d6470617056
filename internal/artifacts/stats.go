package artifacts

import "github.com/nullbridge/testforge/internal/errs"

// Stats is the repository-wide rollup (spec.md §4.5 "Statistics", carried
// forward as a full call per SPEC_FULL.md §12).
type Stats struct {
	TotalCollections int
	TotalArtifacts   int
	TotalBytes       int64
	ByEnvironment    map[string]int
	ByType           map[string]int
	Recent7Days      int
	DistinctTags     int
}

// Statistics computes the repository-wide rollup.
func (r *Repository) Statistics() (Stats, error) {
	stats := Stats{ByEnvironment: map[string]int{}, ByType: map[string]int{}}

	row := r.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(total_size), 0) FROM collections`)
	if err := row.Scan(&stats.TotalCollections, &stats.TotalBytes); err != nil {
		return Stats{}, errs.NewResourceError("", "counting collections", err, true)
	}

	if err := r.db.QueryRow(`SELECT COUNT(*) FROM artifacts`).Scan(&stats.TotalArtifacts); err != nil {
		return Stats{}, errs.NewResourceError("", "counting artifacts", err, true)
	}

	envRows, err := r.db.Query(`SELECT environment_name, COUNT(*) FROM collections GROUP BY environment_name`)
	if err != nil {
		return Stats{}, errs.NewResourceError("", "grouping by environment", err, true)
	}
	defer envRows.Close()
	for envRows.Next() {
		var name string
		var count int
		if err := envRows.Scan(&name, &count); err != nil {
			return Stats{}, errs.NewResourceError("", "scanning environment breakdown", err, false)
		}
		stats.ByEnvironment[name] = count
	}

	typeRows, err := r.db.Query(`SELECT type, COUNT(*) FROM artifacts GROUP BY type`)
	if err != nil {
		return Stats{}, errs.NewResourceError("", "grouping by type", err, true)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var typ string
		var count int
		if err := typeRows.Scan(&typ, &count); err != nil {
			return Stats{}, errs.NewResourceError("", "scanning type breakdown", err, false)
		}
		stats.ByType[typ] = count
	}

	if err := r.db.QueryRow(
		`SELECT COUNT(*) FROM collections WHERE created_at >= datetime('now', '-7 days')`,
	).Scan(&stats.Recent7Days); err != nil {
		return Stats{}, errs.NewResourceError("", "counting recent collections", err, true)
	}

	if err := r.db.QueryRow(`SELECT COUNT(DISTINCT tag) FROM collection_tags`).Scan(&stats.DistinctTags); err != nil {
		return Stats{}, errs.NewResourceError("", "counting distinct tags", err, true)
	}

	return stats, nil
}
