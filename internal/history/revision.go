package history

import (
	git "github.com/go-git/go-git/v5"
)

// CaptureSourceRevision opens the git repository at root read-only and
// reports its HEAD commit, branch, and dirty-worktree state (SPEC_FULL.md
// §11.4). When root is not a git repository, it returns a zero-value
// SourceRevision rather than an error — source-revision capture is
// informational, not a precondition for recording a run.
func CaptureSourceRevision(root string) SourceRevision {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return SourceRevision{}
	}

	head, err := repo.Head()
	if err != nil {
		return SourceRevision{}
	}

	revision := SourceRevision{
		Commit: head.Hash().String(),
		Branch: head.Name().Short(),
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return revision
	}
	status, err := worktree.Status()
	if err != nil {
		return revision
	}
	revision.Dirty = !status.IsClean()
	return revision
}
