package artifacts

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/nullbridge/testforge/internal/errs"
)

// Significance is compare's overall change-severity verdict (spec.md §4.5
// "Comparison" summary categorization).
type Significance string

const (
	SignificanceHigh    Significance = "high"
	SignificanceMedium  Significance = "medium"
	SignificanceLow     Significance = "low"
	SignificanceMinimal Significance = "minimal"
)

// MetadataDiff captures the collection-level deltas between two collections.
type MetadataDiff struct {
	EnvironmentMatch     bool
	SuccessChanged       bool
	DurationDelta        time.Duration
	SizeDelta            int64
	ArtifactCountDelta   int
	TimeBetweenHours     float64
}

// ArtifactDiff classifies one artifact name's change between two
// collections (spec.md §4.5 "per-type artifact diffs").
type ArtifactDiff struct {
	Type    string
	Name    string
	Kind    string // "new", "missing", "changed"
	Content *unifiedDiff
}

// Comparison is the full result of comparing two collections.
type Comparison struct {
	Collection1ID int64
	Collection2ID int64
	Metadata      MetadataDiff
	Artifacts     []ArtifactDiff
	Categories    []string
	Significance  Significance
	Recommendations []string
}

// Compare produces and persists the comparison of two collections (spec.md
// §4.5 "Comparison"), keyed uniquely per ordered pair.
func (r *Repository) Compare(id1, id2 int64) (Comparison, error) {
	c1, err := r.Get(id1)
	if err != nil {
		return Comparison{}, err
	}
	c2, err := r.Get(id2)
	if err != nil {
		return Comparison{}, err
	}

	cmp := Comparison{
		Collection1ID: id1,
		Collection2ID: id2,
		Metadata:      diffMetadata(c1, c2),
		Artifacts:     diffArtifacts(c1, c2, r.config.MaxContentSize),
	}
	cmp.Categories = categorize(cmp)
	cmp.Significance = significanceOf(cmp.Categories, cmp.Metadata.SuccessChanged)
	cmp.Recommendations = recommend(cmp.Categories)

	if err := r.persistComparison(cmp); err != nil {
		return Comparison{}, err
	}
	return cmp, nil
}

func diffMetadata(c1, c2 Collection) MetadataDiff {
	hours := c2.CreatedAt.Sub(c1.CreatedAt).Hours()
	if hours < 0 {
		hours = -hours
	}
	return MetadataDiff{
		EnvironmentMatch:   c1.EnvironmentName == c2.EnvironmentName,
		SuccessChanged:     c1.Success != c2.Success,
		DurationDelta:      c2.Duration - c1.Duration,
		SizeDelta:          c2.TotalSize - c1.TotalSize,
		ArtifactCountDelta: c2.ArtifactCount - c1.ArtifactCount,
		TimeBetweenHours:   hours,
	}
}

func diffArtifacts(c1, c2 Collection, maxContentSize int64) []ArtifactDiff {
	byKey1 := artifactsByKey(c1.Artifacts)
	byKey2 := artifactsByKey(c2.Artifacts)

	var diffs []ArtifactDiff
	for key, a1 := range byKey1 {
		a2, ok := byKey2[key]
		if !ok {
			diffs = append(diffs, ArtifactDiff{Type: a1.Type, Name: a1.Name, Kind: "missing"})
			continue
		}
		if a1.SHA256 != a2.SHA256 || a1.Size != a2.Size {
			d := ArtifactDiff{Type: a1.Type, Name: a1.Name, Kind: "changed"}
			if isTextLike(a1.ContentType) && isTextLike(a2.ContentType) && a1.Size <= maxContentSize && a2.Size <= maxContentSize {
				if content, err := textContentDiff(a1, a2); err == nil {
					d.Content = &content
				}
			}
			diffs = append(diffs, d)
		}
	}
	for key, a2 := range byKey2 {
		if _, ok := byKey1[key]; !ok {
			diffs = append(diffs, ArtifactDiff{Type: a2.Type, Name: a2.Name, Kind: "new"})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].Type != diffs[j].Type {
			return diffs[i].Type < diffs[j].Type
		}
		return diffs[i].Name < diffs[j].Name
	})
	return diffs
}

func textContentDiff(a1, a2 Artifact) (unifiedDiff, error) {
	data1, err := os.ReadFile(a1.Path)
	if err != nil {
		return unifiedDiff{}, err
	}
	data2, err := os.ReadFile(a2.Path)
	if err != nil {
		return unifiedDiff{}, err
	}
	return generateUnifiedDiff(data1, data2, a1.Name+" (before)", a2.Name+" (after)"), nil
}

func artifactsByKey(artifacts []Artifact) map[string]Artifact {
	m := make(map[string]Artifact, len(artifacts))
	for _, a := range artifacts {
		m[a.Type+"/"+a.Name] = a
	}
	return m
}

func categorize(cmp Comparison) []string {
	var categories []string
	if cmp.Metadata.SuccessChanged {
		categories = append(categories, "test_result")
	}
	if cmp.Metadata.DurationDelta != 0 {
		categories = append(categories, "performance")
	}
	if cmp.Metadata.SizeDelta != 0 {
		categories = append(categories, "size")
	}
	var hasNew, hasMissing, hasChanged bool
	for _, a := range cmp.Artifacts {
		switch a.Kind {
		case "new":
			hasNew = true
		case "missing":
			hasMissing = true
		case "changed":
			hasChanged = true
		}
	}
	if hasNew {
		categories = append(categories, "new_artifacts")
	}
	if hasMissing {
		categories = append(categories, "missing_artifacts")
	}
	if hasChanged {
		categories = append(categories, "changed_artifacts")
	}
	return categories
}

func significanceOf(categories []string, successChanged bool) Significance {
	switch {
	case successChanged:
		return SignificanceHigh
	case len(categories) >= 3:
		return SignificanceMedium
	case len(categories) > 0:
		return SignificanceLow
	default:
		return SignificanceMinimal
	}
}

func recommend(categories []string) []string {
	var recs []string
	for _, category := range categories {
		switch category {
		case "test_result":
			recs = append(recs, "investigate the change in pass/fail outcome before merging")
		case "performance":
			recs = append(recs, "review the duration delta against the environment's historical baseline")
		case "missing_artifacts":
			recs = append(recs, "confirm the missing artifacts are an intentional change to the test's output")
		case "changed_artifacts":
			recs = append(recs, "review the changed artifact diffs for unintended regressions")
		}
	}
	return recs
}

func (r *Repository) persistComparison(cmp Comparison) error {
	data, err := json.Marshal(cmp)
	if err != nil {
		return errs.NewResourceError("", "marshaling comparison result", err, false)
	}
	_, err = r.db.Exec(
		`INSERT INTO comparisons (collection_id1, collection_id2, result, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection_id1, collection_id2) DO UPDATE SET result = excluded.result, created_at = excluded.created_at`,
		cmp.Collection1ID, cmp.Collection2ID, string(data), time.Now().UTC(),
	)
	if err != nil {
		return errs.NewResourceError("", "persisting comparison", err, false)
	}
	return nil
}
