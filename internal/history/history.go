package history

import (
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nullbridge/testforge/internal/errs"
)

const (
	indexFileName = "index.json"
	maxIndexSize  = 100
)

// indexEntry is the lightweight per-run record kept in index.json, so
// listing/trend queries don't have to read every run file.
type indexEntry struct {
	RunID     string    `json:"run_id"`
	SuiteName string    `json:"suite_name"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

type indexFile struct {
	Runs []indexEntry `json:"runs"`
}

// History is the filesystem-backed Run History store (spec.md §4.4).
type History struct {
	root      string
	runsDir   string
	indexPath string
	toolVer   string

	mu    sync.Mutex
	index indexFile
}

// Open loads (or creates) the history directory at root. toolVersion is
// recorded on every run's EnvironmentDescriptor.
func Open(root string, toolVersion string) (*History, error) {
	h := &History{
		root:      root,
		runsDir:   filepath.Join(root, "runs"),
		indexPath: filepath.Join(root, indexFileName),
		toolVer:   toolVersion,
	}

	if err := os.MkdirAll(h.runsDir, 0o755); err != nil {
		return nil, errs.NewResourceError("", "creating history directory", err, false)
	}

	data, err := os.ReadFile(h.indexPath)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &h.index); jsonErr != nil {
			return nil, errs.NewResourceError("", "parsing history index", jsonErr, false)
		}
	case os.IsNotExist(err):
		// fresh history
	default:
		return nil, errs.NewResourceError("", "reading history index", err, false)
	}

	return h, nil
}

// Run accumulates entries for one in-progress suite run between Start and
// Finish.
type Run struct {
	history *History
	record  RunRecord
}

// Start begins a new run: captures the environment descriptor and the
// current source revision, and mints a timestamp-prefixed run id (spec.md
// §4.4).
func (h *History) Start(suiteName string) *Run {
	return &Run{
		history: h,
		record: RunRecord{
			RunID:          newRunID(),
			SuiteName:      suiteName,
			Start:          time.Now().UTC(),
			Environment:    captureEnvironment(h.toolVer),
			SourceRevision: CaptureSourceRevision("."),
		},
	}
}

// Record appends one test's outcome to the in-progress run.
func (r *Run) Record(entry TestEntry) {
	r.record.Tests = append(r.record.Tests, entry)
}

// Finish writes the run file and prepends it to the capped index (newest
// maxIndexSize runs).
func (r *Run) Finish(summary RunSummary) (RunRecord, error) {
	r.record.End = time.Now().UTC()
	r.record.Summary = summary

	data, err := json.MarshalIndent(r.record, "", "  ")
	if err != nil {
		return RunRecord{}, errs.NewResourceError("", "marshaling run record", err, false)
	}

	path := filepath.Join(r.history.runsDir, r.record.RunID+".json")
	if err := writeAtomic(path, data); err != nil {
		return RunRecord{}, err
	}

	r.history.mu.Lock()
	defer r.history.mu.Unlock()

	entries := append([]indexEntry{{
		RunID:     r.record.RunID,
		SuiteName: r.record.SuiteName,
		Start:     r.record.Start,
		End:       r.record.End,
	}}, r.history.index.Runs...)
	if len(entries) > maxIndexSize {
		evicted := entries[maxIndexSize:]
		entries = entries[:maxIndexSize]
		for _, e := range evicted {
			_ = os.Remove(filepath.Join(r.history.runsDir, e.RunID+".json"))
		}
	}
	r.history.index.Runs = entries

	indexData, err := json.MarshalIndent(r.history.index, "", "  ")
	if err != nil {
		return RunRecord{}, errs.NewResourceError("", "marshaling history index", err, false)
	}
	if err := writeAtomic(r.history.indexPath, indexData); err != nil {
		return RunRecord{}, err
	}

	return r.record, nil
}

// Recent returns up to n of the most recently finished runs, newest first.
func (h *History) Recent(n int) ([]RunRecord, error) {
	h.mu.Lock()
	entries := append([]indexEntry(nil), h.index.Runs...)
	h.mu.Unlock()

	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}

	runs := make([]RunRecord, 0, len(entries))
	for _, e := range entries {
		record, err := h.load(e.RunID)
		if err != nil {
			continue // a run file removed out-of-band shouldn't fail the whole query
		}
		runs = append(runs, record)
	}
	return runs, nil
}

func (h *History) load(runID string) (RunRecord, error) {
	data, err := os.ReadFile(filepath.Join(h.runsDir, runID+".json"))
	if err != nil {
		return RunRecord{}, err
	}
	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return RunRecord{}, err
	}
	return record, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.NewResourceError("", "writing "+path, err, false)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errs.NewResourceError("", "finalizing "+path, err, false)
	}
	return nil
}

func newRunID() string {
	return time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

func captureEnvironment(toolVersion string) EnvironmentDescriptor {
	hostname, _ := os.Hostname()
	username := ""
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	return EnvironmentDescriptor{
		InterpreterVersion: runtime.Version(),
		Platform:           runtime.GOOS + "/" + runtime.GOARCH,
		ToolVersion:        toolVersion,
		Hostname:           hostname,
		User:               username,
	}
}
