package artifacts

import (
	"encoding/json"
	"time"

	"github.com/nullbridge/testforge/internal/errs"
)

// View is a saved search (spec.md §4.5 "Views").
type View struct {
	ID        int64
	Name      string
	Query     string
	Filters   SearchFilters
	CreatedAt time.Time
}

type storedFilters struct {
	Environment  string    `json:"environment"`
	ArtifactType string    `json:"artifact_type"`
	Success      *bool     `json:"success,omitempty"`
	DateFrom     time.Time `json:"date_from,omitempty"`
	DateTo       time.Time `json:"date_to,omitempty"`
	Tag          string    `json:"tag"`
}

// CreateView persists a saved search under name (spec.md §4.5 "Views").
func (r *Repository) CreateView(name, query string, filters SearchFilters) (int64, error) {
	data, err := json.Marshal(toStoredFilters(filters))
	if err != nil {
		return 0, errs.NewResourceError("", "marshaling view filters", err, false)
	}
	res, err := r.db.Exec(
		`INSERT INTO artifact_views (name, query, filters, created_at) VALUES (?, ?, ?, ?)`,
		name, query, string(data), time.Now().UTC(),
	)
	if err != nil {
		return 0, errs.NewResourceError("", "creating view "+name, err, false)
	}
	return res.LastInsertId()
}

// ExecuteView runs a previously saved search (spec.md §4.5 "execute_view").
func (r *Repository) ExecuteView(name string) ([]SearchResult, error) {
	view, err := r.getView(name)
	if err != nil {
		return nil, err
	}
	return r.Search(view.Query, view.Filters)
}

// ListViews returns every saved view, alphabetically by name.
func (r *Repository) ListViews() ([]View, error) {
	rows, err := r.db.Query(`SELECT id, name, query, filters, created_at FROM artifact_views ORDER BY name`)
	if err != nil {
		return nil, errs.NewResourceError("", "listing views", err, true)
	}
	defer rows.Close()

	var out []View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteView removes a saved view by name.
func (r *Repository) DeleteView(name string) error {
	_, err := r.db.Exec(`DELETE FROM artifact_views WHERE name = ?`, name)
	if err != nil {
		return errs.NewResourceError("", "deleting view "+name, err, false)
	}
	return nil
}

func (r *Repository) getView(name string) (View, error) {
	row := r.db.QueryRow(`SELECT id, name, query, filters, created_at FROM artifact_views WHERE name = ?`, name)
	return scanView(row)
}

func scanView(row rowScanner) (View, error) {
	var v View
	var filtersJSON string
	if err := row.Scan(&v.ID, &v.Name, &v.Query, &filtersJSON, &v.CreatedAt); err != nil {
		return View{}, errs.NewResourceError("", "scanning view", err, false)
	}
	var stored storedFilters
	if filtersJSON != "" {
		_ = json.Unmarshal([]byte(filtersJSON), &stored)
	}
	v.Filters = SearchFilters{
		Environment:  stored.Environment,
		ArtifactType: stored.ArtifactType,
		Success:      stored.Success,
		DateFrom:     stored.DateFrom,
		DateTo:       stored.DateTo,
		Tag:          stored.Tag,
	}
	return v, nil
}

func toStoredFilters(f SearchFilters) storedFilters {
	return storedFilters{
		Environment:  f.Environment,
		ArtifactType: f.ArtifactType,
		Success:      f.Success,
		DateFrom:     f.DateFrom,
		DateTo:       f.DateTo,
		Tag:          f.Tag,
	}
}
