package runcontroller

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nullbridge/testforge/internal/artifacts"
	"github.com/nullbridge/testforge/internal/environment"
	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/spec"
)

// Collect stores whatever the environment can hand back (logs, an optional
// screenshot) into the artifact repository under one collection per test
// run (spec.md §6 "Each artifact collection: a timestamp-named directory").
// Satisfies executor.ArtifactCollector.
func (c *collector) Collect(ctx context.Context, s spec.TestSpec, env environment.Environment, result model.TestResult) error {
	var files []artifacts.ArtifactFile

	if lc, ok := env.(environment.LogCollector); ok {
		logs, err := lc.CollectLogs(ctx)
		if err == nil {
			for name, path := range logs {
				files = append(files, artifacts.ArtifactFile{Type: "log", Name: name, Path: path})
			}
		}
	}

	if sc, ok := env.(environment.ScreenshotCapable); ok {
		outPath := filepath.Join(os.TempDir(), s.Name+"-failure.png")
		if path, err := sc.TakeScreenshot(ctx, outPath); err == nil {
			files = append(files, artifacts.ArtifactFile{Type: "screenshot", Name: "failure", Path: path})
		}
	}

	if len(files) == 0 {
		return nil
	}

	meta := artifacts.CollectionMetadata{
		SessionID:       s.Name,
		EnvironmentName: env.Name(),
		Success:         result.Status == model.StatusPassed,
		Duration:        result.Duration(),
	}
	_, err := c.repo.StoreCollection(meta, files)
	return err
}
