package executor

import (
	"time"

	"github.com/nullbridge/testforge/internal/spec"
)

const skipUntilLayout = "2006-01-02"

// isSkipped evaluates a spec's skip directive against now, honoring the
// `until: <date>` form that lifts the skip once the date has passed
// (spec.md §6 "skip").
func isSkipped(s spec.TestSpec, now time.Time) (bool, string) {
	if s.Skip == nil || !s.Skip.Skipped {
		return false, ""
	}
	if s.Skip.Until != "" {
		until, err := time.Parse(skipUntilLayout, s.Skip.Until)
		if err == nil && !now.Before(until) {
			return false, ""
		}
	}
	reason := s.Skip.Reason
	if reason == "" {
		reason = "skipped"
	}
	return true, reason
}
