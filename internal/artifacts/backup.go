package artifacts

import (
	"io"
	"os"
	"path/filepath"

	"github.com/nullbridge/testforge/internal/errs"
)

// Backup copies the repository's database file to destPath, after
// checkpointing the WAL into it. Only the database file is copied; no
// other file in the repository's directory is included.
func (r *Repository) Backup(destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return errs.NewResourceError("", "creating backup directory", err, false)
	}

	// flush the WAL into the main database file so the copy below is complete.
	if _, err := r.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return errs.NewResourceError("", "checkpointing WAL before backup", err, true)
	}

	src, err := os.Open(r.path)
	if err != nil {
		return errs.NewResourceError("", "opening repository file for backup", err, false)
	}
	defer src.Close()

	tmp := destPath + ".tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return errs.NewResourceError("", "creating backup file", err, false)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return errs.NewResourceError("", "copying repository into backup", err, false)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return errs.NewResourceError("", "finalizing backup file", err, false)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return errs.NewResourceError("", "renaming backup into place", err, false)
	}
	return nil
}

// Restore replaces the repository at path with the contents of
// backupPath: the current database is renamed aside, the backup copied
// into place (backupPath itself is left as it is), and the previous
// database renamed back if the copy or the reopen fails (spec.md §4.5
// "Restore: replace current with backup").
func Restore(path, backupPath string, cfg Config) (*Repository, error) {
	previous := path + ".before-restore"
	hadPrevious := false
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, previous); err != nil {
			return nil, errs.NewResourceError("", "staging current repository aside", err, false)
		}
		hadPrevious = true
	}

	if err := copyFile(backupPath, path); err != nil {
		if hadPrevious {
			os.Rename(previous, path) //nolint:errcheck // best-effort rollback
		}
		return nil, err
	}

	repo, err := Open(path, cfg)
	if err != nil {
		os.Remove(path)
		if hadPrevious {
			os.Rename(previous, path) //nolint:errcheck // best-effort rollback
		}
		return nil, err
	}

	if hadPrevious {
		os.Remove(previous)
	}
	return repo, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.NewResourceError("", "opening restore source", err, false)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errs.NewResourceError("", "creating restore destination", err, false)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errs.NewResourceError("", "copying restore contents", err, false)
	}
	return out.Close()
}
