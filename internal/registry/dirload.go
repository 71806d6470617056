package registry

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/nullbridge/testforge/internal/errs"
)

// Loader inspects one candidate file and returns the descriptors it
// contributes (zero or more; a file need not be a plugin at all).
type Loader func(path string) ([]Descriptor, error)

// LoadDir enumerates every file directly under dir once, memoized by path
// so a second call is a no-op for paths already scanned, and registers
// whatever descriptors each candidate yields (spec.md §4.1 "directory
// loading").
func (r *Registry) LoadDir(dir string, load Loader) error {
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return errs.NewConfigurationError(dir, "listing plugin directory", err)
	}

	for _, path := range entries {
		if err := r.loadPath(path, load); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) loadPath(path string, load Loader) error {
	r.mu.Lock()
	if r.scanned[path] {
		r.mu.Unlock()
		return nil
	}
	r.scanned[path] = true
	r.mu.Unlock()

	descriptors, err := load(path)
	if err != nil {
		return errs.NewConfigurationError(path, "loading plugin candidate", err)
	}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// WatchDir watches dir for newly created files and loads each one as it
// appears, for long-lived processes that accept plugins dropped in after
// startup. It blocks until ctx is cancelled or the watcher fails.
func (r *Registry) WatchDir(ctx context.Context, dir string, load Loader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.NewConfigurationError(dir, "starting plugin directory watch", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errs.NewConfigurationError(dir, "watching plugin directory", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			r.mu.Lock()
			delete(r.scanned, event.Name) // force reload on write, pick up on create
			r.mu.Unlock()
			if err := r.loadPath(event.Name, load); err != nil {
				r.logWarn(err.Error(), "", "")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logWarn(err.Error(), "", "")
		}
	}
}
