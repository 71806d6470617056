// Package aggregator accumulates per-spec TestResults in arrival order and
// derives the grouped summaries and final suite status the Run Controller
// reports (spec.md §4.9).
package aggregator

import (
	"sort"
	"sync"
	"time"

	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/spec"
)

// Entry pairs a TestResult with the spec it belongs to, in the order it
// arrived at the Aggregator.
type Entry struct {
	Spec   spec.TestSpec
	Result model.TestResult
}

// ValidatorSummary groups outcomes by validator kind across the whole
// suite (spec.md §4.9 "per-validator grouping").
type ValidatorSummary struct {
	Kind         string
	Runs         int
	Passed       int
	Failed       int
	ErrorCount   int
	WarningCount int
	Specs        map[string]bool
}

// SpecSummary groups outcomes by spec name (spec.md §4.9 "per-spec
// grouping").
type SpecSummary struct {
	Name     string
	Attempts int
	Status   model.Status
	Duration time.Duration
}

// TimelineEntry is one chronologically-ordered point in the suite's
// timeline (spec.md §4.9 "chronological timeline"; spec.md §5 "sorted by
// timestamp, not arrival").
type TimelineEntry struct {
	SpecName string
	Status   model.Status
	At       time.Time
}

// Totals is the suite-wide status tally (spec.md §4.9 "totals by status").
type Totals struct {
	Passed  int
	Failed  int
	Skipped int
	Errored int
}

// SuiteStatus is the final rollup of a completed suite (spec.md §4.9
// "Final suite status").
type SuiteStatus string

const (
	SuiteError     SuiteStatus = "error"
	SuiteFailed    SuiteStatus = "failed"
	SuitePassed    SuiteStatus = "passed"
	SuiteCompleted SuiteStatus = "completed"
)

// Aggregator accumulates results as they arrive from the Orchestrator's
// worker pool; every exported method is safe for concurrent use (spec.md
// §5 "implementations serialize via a mutex around the aggregator's result
// list").
type Aggregator struct {
	mu      sync.Mutex
	entries []Entry

	totalErrors   int
	totalWarnings int
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Record appends one spec's terminal result in arrival order. Satisfies
// orchestrator.ResultSink.
func (a *Aggregator) Record(s spec.TestSpec, result model.TestResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, Entry{Spec: s, Result: result})
	for _, o := range result.ValidatorOutcomes {
		a.totalErrors += len(o.Errors)
		a.totalWarnings += len(o.Warnings)
	}
}

// Entries returns a copy of every recorded entry, in arrival order.
func (a *Aggregator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Totals computes the status tally across every recorded result.
func (a *Aggregator) Totals() Totals {
	a.mu.Lock()
	defer a.mu.Unlock()

	var t Totals
	for _, e := range a.entries {
		switch e.Result.Status {
		case model.StatusPassed:
			t.Passed++
		case model.StatusFailed:
			t.Failed++
		case model.StatusSkipped:
			t.Skipped++
		case model.StatusError:
			t.Errored++
		}
	}
	return t
}

// ErrorWarningCounts returns the total validator error and warning counts
// observed across every recorded result.
func (a *Aggregator) ErrorWarningCounts() (errors, warnings int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalErrors, a.totalWarnings
}

// ByValidator groups outcomes by validator kind, sorted by kind name.
func (a *Aggregator) ByValidator() []ValidatorSummary {
	a.mu.Lock()
	entries := append([]Entry(nil), a.entries...)
	a.mu.Unlock()

	byKind := make(map[string]*ValidatorSummary)
	var order []string
	for _, e := range entries {
		for _, o := range e.Result.ValidatorOutcomes {
			s, ok := byKind[o.ValidatorKind]
			if !ok {
				s = &ValidatorSummary{Kind: o.ValidatorKind, Specs: make(map[string]bool)}
				byKind[o.ValidatorKind] = s
				order = append(order, o.ValidatorKind)
			}
			s.Runs++
			if o.Success {
				s.Passed++
			} else {
				s.Failed++
			}
			s.ErrorCount += len(o.Errors)
			s.WarningCount += len(o.Warnings)
			s.Specs[e.Spec.Name] = true
		}
	}

	sort.Strings(order)
	summaries := make([]ValidatorSummary, 0, len(order))
	for _, kind := range order {
		summaries = append(summaries, *byKind[kind])
	}
	return summaries
}

// BySpec groups outcomes by spec name, sorted by name. Attempts counts the
// results recorded for that spec name; Status and Duration come from the
// latest one.
func (a *Aggregator) BySpec() []SpecSummary {
	a.mu.Lock()
	entries := append([]Entry(nil), a.entries...)
	a.mu.Unlock()

	byName := make(map[string]*SpecSummary)
	var order []string
	for _, e := range entries {
		s, ok := byName[e.Spec.Name]
		if !ok {
			s = &SpecSummary{Name: e.Spec.Name}
			byName[e.Spec.Name] = s
			order = append(order, e.Spec.Name)
		}
		s.Attempts++
		s.Status = e.Result.Status
		s.Duration = e.Result.Duration()
	}

	sort.Strings(order)
	summaries := make([]SpecSummary, 0, len(order))
	for _, name := range order {
		summaries = append(summaries, *byName[name])
	}
	return summaries
}

// Timeline returns every result's (spec, status, timestamp) sorted by
// timestamp to tolerate out-of-order delivery from concurrent workers
// (spec.md §5 "sorted by timestamp, not arrival").
func (a *Aggregator) Timeline() []TimelineEntry {
	a.mu.Lock()
	entries := append([]Entry(nil), a.entries...)
	a.mu.Unlock()

	timeline := make([]TimelineEntry, 0, len(entries))
	for _, e := range entries {
		at := e.Result.End
		if at.IsZero() {
			at = e.Result.Start
		}
		timeline = append(timeline, TimelineEntry{SpecName: e.Spec.Name, Status: e.Result.Status, At: at})
	}

	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].At.Before(timeline[j].At) })
	return timeline
}

// FinalStatus computes the suite's terminal status: error if any spec
// errored, else failed if any failed, else passed if every spec passed or
// was skipped, else completed (spec.md §4.9 "Final suite status").
func (a *Aggregator) FinalStatus() SuiteStatus {
	totals := a.Totals()
	a.mu.Lock()
	recorded := len(a.entries)
	a.mu.Unlock()

	switch {
	case totals.Errored > 0:
		return SuiteError
	case totals.Failed > 0:
		return SuiteFailed
	case recorded > 0 && totals.Passed+totals.Skipped == recorded:
		return SuitePassed
	default:
		return SuiteCompleted
	}
}
