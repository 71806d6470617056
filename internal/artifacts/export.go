package artifacts

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nullbridge/testforge/internal/errs"
)

// exportManifest is the YAML sidecar recorded alongside an exported
// collection's archived artifacts (spec.md §6 "collection_metadata.yaml").
type exportManifest struct {
	SessionID       string         `yaml:"session_id"`
	EnvironmentName string         `yaml:"environment_name"`
	Success         bool           `yaml:"success"`
	DurationMS      int64          `yaml:"duration_ms"`
	CreatedAt       time.Time      `yaml:"created_at"`
	Metadata        map[string]any `yaml:"metadata,omitempty"`
	Artifacts       []exportedFile `yaml:"artifacts"`
	ImportedFrom    string         `yaml:"imported_from,omitempty"`
	OriginalID      int64          `yaml:"original_id,omitempty"`
}

type exportedFile struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	ArchivePath string `yaml:"archive_path"`
	ContentType string `yaml:"content_type"`
	Size        int64  `yaml:"size"`
	SHA256      string `yaml:"sha256"`
}

// Export produces a self-contained tar.gz archive of collectionID's
// artifacts plus a YAML metadata manifest (spec.md §4.5 "Export").
func (r *Repository) Export(collectionID int64, archivePath string) error {
	collection, err := r.Get(collectionID)
	if err != nil {
		return err
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return errs.NewResourceError("", "creating export archive", err, false)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	manifest := exportManifest{
		OriginalID:      collection.ID,
		SessionID:       collection.SessionID,
		EnvironmentName: collection.EnvironmentName,
		Success:         collection.Success,
		DurationMS:      collection.Duration.Milliseconds(),
		CreatedAt:       collection.CreatedAt,
		Metadata:        collection.Metadata,
	}

	for i, a := range collection.Artifacts {
		archiveName := fmt.Sprintf("artifacts/%d_%s", i, a.Name)
		if err := addFileToTar(tw, a.Path, archiveName); err != nil {
			return err
		}
		manifest.Artifacts = append(manifest.Artifacts, exportedFile{
			Type: a.Type, Name: a.Name, ArchivePath: archiveName,
			ContentType: a.ContentType, Size: a.Size, SHA256: a.SHA256,
		})
	}

	manifestData, err := yaml.Marshal(manifest)
	if err != nil {
		return errs.NewResourceError("", "marshaling export manifest", err, false)
	}
	if err := addBytesToTar(tw, "collection_metadata.yaml", manifestData); err != nil {
		return err
	}

	return nil
}

func addFileToTar(tw *tar.Writer, path, archiveName string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.NewResourceError("", "reading artifact for export: "+path, err, false)
	}
	return addBytesToTar(tw, archiveName, data)
}

func addBytesToTar(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644, ModTime: time.Now()}
	if err := tw.WriteHeader(hdr); err != nil {
		return errs.NewResourceError("", "writing tar header for "+name, err, false)
	}
	if _, err := tw.Write(data); err != nil {
		return errs.NewResourceError("", "writing tar entry for "+name, err, false)
	}
	return nil
}

// Import unpacks a previously exported archive, assigns the collection a
// fresh id, and re-ingests it via StoreCollection with imported_from/
// original_id recorded in metadata (spec.md §4.5 "Import").
func (r *Repository) Import(archivePath, extractDir string) (int64, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, errs.NewResourceError("", "opening import archive", err, false)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return 0, errs.NewResourceError("", "reading gzip import archive", err, false)
	}
	defer gr.Close()

	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return 0, errs.NewResourceError("", "creating import extraction dir", err, false)
	}

	var manifest exportManifest
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errs.NewResourceError("", "reading tar entry", err, false)
		}

		dest := filepath.Join(extractDir, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return 0, errs.NewResourceError("", "creating import subdirectory", err, false)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return 0, errs.NewResourceError("", "reading tar entry contents for "+hdr.Name, err, false)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return 0, errs.NewResourceError("", "writing extracted file "+dest, err, false)
		}
		if hdr.Name == "collection_metadata.yaml" {
			if err := yaml.Unmarshal(data, &manifest); err != nil {
				return 0, errs.NewResourceError("", "parsing import manifest", err, false)
			}
		}
	}

	if manifest.Metadata == nil {
		manifest.Metadata = map[string]any{}
	}
	manifest.Metadata["imported_from"] = archivePath
	manifest.Metadata["original_id"] = manifest.OriginalID

	var files []ArtifactFile
	for _, a := range manifest.Artifacts {
		files = append(files, ArtifactFile{
			Type: a.Type, Name: a.Name, Path: filepath.Join(extractDir, a.ArchivePath),
		})
	}

	return r.StoreCollection(CollectionMetadata{
		SessionID:       uuid.NewString(),
		EnvironmentName: manifest.EnvironmentName,
		Success:         manifest.Success,
		Duration:        time.Duration(manifest.DurationMS) * time.Millisecond,
		Extra:           manifest.Metadata,
	}, files)
}
