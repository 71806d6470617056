package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	repo, err := Open(filepath.Join(dir, "artifacts.db"), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRepository_StoreAndGet(t *testing.T) {
	repo := openTestRepo(t)
	dir := t.TempDir()

	logPath := writeFile(t, dir, "run.log", "hello world\n")
	cfgPath := writeFile(t, dir, "config.json", `{"key":"value"}`)

	id, err := repo.StoreCollection(CollectionMetadata{
		SessionID:       "session-1",
		EnvironmentName: "ubuntu",
		Success:         true,
		Duration:        2 * time.Second,
		Extra:           map[string]any{"note": "first run"},
	}, []ArtifactFile{
		{Type: "log", Name: "run.log", Path: logPath},
		{Type: "config", Name: "config.json", Path: cfgPath},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	collection, err := repo.Get(id)
	require.NoError(t, err)
	require.Equal(t, "session-1", collection.SessionID)
	require.True(t, collection.Success)
	require.Equal(t, 2, collection.ArtifactCount)
	require.Len(t, collection.Artifacts, 2)
	require.Equal(t, "first run", collection.Metadata["note"])
}

func TestRepository_GetMissingReturnsNotFound(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.Get(999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Search(t *testing.T) {
	repo := openTestRepo(t)
	dir := t.TempDir()

	logPath := writeFile(t, dir, "run.log", "needle in haystack\n")
	_, err := repo.StoreCollection(CollectionMetadata{SessionID: "s1", EnvironmentName: "ubuntu", Success: true},
		[]ArtifactFile{{Type: "log", Name: "run.log", Path: logPath}})
	require.NoError(t, err)

	results, err := repo.Search("needle", SearchFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.NotNil(t, results[0].Artifact)
}

func TestRepository_TagAndFindByTag(t *testing.T) {
	repo := openTestRepo(t)
	id, err := repo.StoreCollection(CollectionMetadata{SessionID: "s1", EnvironmentName: "ubuntu"}, nil)
	require.NoError(t, err)

	require.NoError(t, repo.Tag(id, []string{"smoke", "nightly"}))

	found, err := repo.FindByTag("nightly")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, id, found[0].ID)

	require.NoError(t, repo.Tag(id, []string{"smoke"}))
	found, err = repo.FindByTag("nightly")
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestRepository_ViewsCRUD(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.CreateView("recent-failures", "", SearchFilters{Success: boolPtr(false)})
	require.NoError(t, err)

	views, err := repo.ListViews()
	require.NoError(t, err)
	require.Len(t, views, 1)

	results, err := repo.ExecuteView("recent-failures")
	require.NoError(t, err)
	require.Empty(t, results)

	require.NoError(t, repo.DeleteView("recent-failures"))
	views, err = repo.ListViews()
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestRepository_Compare(t *testing.T) {
	repo := openTestRepo(t)
	dir := t.TempDir()

	logA := writeFile(t, dir, "a.log", "line one\nline two\n")
	id1, err := repo.StoreCollection(CollectionMetadata{SessionID: "s1", EnvironmentName: "ubuntu", Success: true, Duration: time.Second},
		[]ArtifactFile{{Type: "log", Name: "run.log", Path: logA}})
	require.NoError(t, err)

	logB := writeFile(t, dir, "b.log", "line one\nline TWO changed\n")
	id2, err := repo.StoreCollection(CollectionMetadata{SessionID: "s2", EnvironmentName: "ubuntu", Success: false, Duration: 5 * time.Second},
		[]ArtifactFile{{Type: "log", Name: "run.log", Path: logB}})
	require.NoError(t, err)

	cmp, err := repo.Compare(id1, id2)
	require.NoError(t, err)
	require.True(t, cmp.Metadata.SuccessChanged)
	require.Equal(t, SignificanceHigh, cmp.Significance)
	require.Contains(t, cmp.Categories, "test_result")

	var changed *ArtifactDiff
	for i := range cmp.Artifacts {
		if cmp.Artifacts[i].Kind == "changed" {
			changed = &cmp.Artifacts[i]
		}
	}
	require.NotNil(t, changed)
	require.NotNil(t, changed.Content)
	require.Greater(t, changed.Content.Additions+changed.Content.Deletions, 0)
}

func TestRepository_CleanupOld(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.StoreCollection(CollectionMetadata{SessionID: "old", EnvironmentName: "ubuntu"}, nil)
	require.NoError(t, err)

	removed, err := repo.CleanupOld(-time.Hour) // negative age: everything is "older"
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	stats, err := repo.Statistics()
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalCollections)
}

func TestRepository_Statistics(t *testing.T) {
	repo := openTestRepo(t)
	dir := t.TempDir()
	logPath := writeFile(t, dir, "run.log", "content\n")

	_, err := repo.StoreCollection(CollectionMetadata{SessionID: "s1", EnvironmentName: "ubuntu", Success: true},
		[]ArtifactFile{{Type: "log", Name: "run.log", Path: logPath}})
	require.NoError(t, err)

	stats, err := repo.Statistics()
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalCollections)
	require.Equal(t, 1, stats.TotalArtifacts)
	require.Equal(t, 1, stats.ByEnvironment["ubuntu"])
	require.Equal(t, 1, stats.ByType["log"])
}

func TestRepository_ExportImportRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	dir := t.TempDir()
	logPath := writeFile(t, dir, "run.log", "exported content\n")

	id, err := repo.StoreCollection(CollectionMetadata{SessionID: "s1", EnvironmentName: "ubuntu", Success: true, Extra: map[string]any{"k": "v"}},
		[]ArtifactFile{{Type: "log", Name: "run.log", Path: logPath}})
	require.NoError(t, err)

	archivePath := filepath.Join(dir, "export.tar.gz")
	require.NoError(t, repo.Export(id, archivePath))
	require.FileExists(t, archivePath)

	original, err := repo.Get(id)
	require.NoError(t, err)

	extractDir := filepath.Join(dir, "extracted")
	newID, err := repo.Import(archivePath, extractDir)
	require.NoError(t, err)
	require.NotEqual(t, id, newID)

	imported, err := repo.Get(newID)
	require.NoError(t, err)
	require.Equal(t, archivePath, imported.Metadata["imported_from"])
	require.Len(t, imported.Artifacts, 1)
	require.NotEqual(t, original.SessionID, imported.SessionID, "Import must assign a fresh session id")
	require.NotEmpty(t, imported.SessionID)
}

func TestRepository_StoreCollectionSkipsMissingArtifactPath(t *testing.T) {
	repo := openTestRepo(t)
	dir := t.TempDir()

	present := writeFile(t, dir, "run.log", "still here\n")
	missing := filepath.Join(dir, "gone.log")

	id, err := repo.StoreCollection(CollectionMetadata{SessionID: "s1", EnvironmentName: "ubuntu"}, []ArtifactFile{
		{Type: "log", Name: "run.log", Path: present},
		{Type: "log", Name: "gone.log", Path: missing},
	})
	require.NoError(t, err)

	collection, err := repo.Get(id)
	require.NoError(t, err)
	require.Equal(t, 1, collection.ArtifactCount)
	require.Len(t, collection.Artifacts, 1)
	require.Equal(t, "run.log", collection.Artifacts[0].Name)
}

func TestRepository_BackupAndRestore(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.StoreCollection(CollectionMetadata{SessionID: "s1", EnvironmentName: "ubuntu"}, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	backupPath := filepath.Join(dir, "backup.db")
	require.NoError(t, repo.Backup(backupPath))
	require.FileExists(t, backupPath)

	restorePath := filepath.Join(dir, "restored.db")
	restored, err := Restore(restorePath, backupPath, DefaultConfig())
	require.NoError(t, err)
	defer restored.Close()

	stats, err := restored.Statistics()
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalCollections)
}

func boolPtr(b bool) *bool { return &b }
