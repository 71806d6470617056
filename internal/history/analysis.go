package history

import (
	"sort"
	"time"
)

// Comparison is the result of comparing two runs (spec.md §4.4
// "Comparison").
type Comparison struct {
	DurationDelta        time.Duration
	DurationDeltaPercent float64
	StatusTransitions    map[string]StatusTransition
	NewFailures          []string
	Fixed                []string
	DurationRegressions  []string // duration changed by more than 20%, in either direction
	Flaky                []string // status changed (any transition) across the two runs' shared tests
}

// StatusTransition records one test's status change between two runs.
type StatusTransition struct {
	From string
	To   string
}

// Compare computes the delta between an older and a newer run over their
// shared tests (spec.md §4.4).
func Compare(older, newer RunRecord) Comparison {
	c := Comparison{
		DurationDelta:     newer.Summary.Duration - older.Summary.Duration,
		StatusTransitions: make(map[string]StatusTransition),
	}
	if older.Summary.Duration > 0 {
		c.DurationDeltaPercent = float64(c.DurationDelta) / float64(older.Summary.Duration) * 100
	}

	olderByName := testsByName(older.Tests)
	newerByName := testsByName(newer.Tests)

	for name, prev := range olderByName {
		next, ok := newerByName[name]
		if !ok {
			continue
		}
		if prev.Status != next.Status {
			c.StatusTransitions[name] = StatusTransition{From: prev.Status, To: next.Status}
			if prev.Status == "passed" && next.Status != "passed" {
				c.NewFailures = append(c.NewFailures, name)
			}
			if prev.Status != "passed" && next.Status == "passed" {
				c.Fixed = append(c.Fixed, name)
			}
			c.Flaky = append(c.Flaky, name)
		}

		if prev.Duration > 0 {
			change := float64(next.Duration-prev.Duration) / float64(prev.Duration)
			if change > 0.2 || change < -0.2 {
				c.DurationRegressions = append(c.DurationRegressions, name)
			}
		}
	}

	sort.Strings(c.NewFailures)
	sort.Strings(c.Fixed)
	sort.Strings(c.DurationRegressions)
	sort.Strings(c.Flaky)
	return c
}

func testsByName(tests []TestEntry) map[string]TestEntry {
	m := make(map[string]TestEntry, len(tests))
	for _, t := range tests {
		m[t.SpecName] = t
	}
	return m
}

// TrendReport summarizes a window of runs (spec.md §4.4 "Trends").
type TrendReport struct {
	SuccessRateSeries     []float64
	DurationSeries        []time.Duration
	FlakyTests            []string
	ConsistentFailures    []string
	PerformanceRegressions []string
}

// Trend computes success-rate/duration series and flakiness/regression
// classifications over runs within window of now, oldest first.
func Trend(runs []RunRecord, now time.Time, window time.Duration) TrendReport {
	cutoff := now.Add(-window)
	var inWindow []RunRecord
	for _, r := range runs {
		if !r.Start.Before(cutoff) {
			inWindow = append(inWindow, r)
		}
	}
	sort.Slice(inWindow, func(i, j int) bool { return inWindow[i].Start.Before(inWindow[j].Start) })

	report := TrendReport{}
	statusesByTest := make(map[string][]string)

	for _, run := range inWindow {
		if run.Summary.Total > 0 {
			report.SuccessRateSeries = append(report.SuccessRateSeries, float64(run.Summary.Passed)/float64(run.Summary.Total))
		} else {
			report.SuccessRateSeries = append(report.SuccessRateSeries, 0)
		}
		report.DurationSeries = append(report.DurationSeries, run.Summary.Duration)

		for _, t := range run.Tests {
			statusesByTest[t.SpecName] = append(statusesByTest[t.SpecName], t.Status)
		}
	}

	for name, statuses := range statusesByTest {
		if isFlaky(statuses) {
			report.FlakyTests = append(report.FlakyTests, name)
		} else if allFail(statuses) {
			report.ConsistentFailures = append(report.ConsistentFailures, name)
		}
	}

	report.PerformanceRegressions = detectRegressions(inWindow)

	sort.Strings(report.FlakyTests)
	sort.Strings(report.ConsistentFailures)
	sort.Strings(report.PerformanceRegressions)
	return report
}

func isFlaky(statuses []string) bool {
	sawPass, sawFail := false, false
	for _, s := range statuses {
		if s == "passed" {
			sawPass = true
		} else {
			sawFail = true
		}
	}
	return sawPass && sawFail
}

func allFail(statuses []string) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, s := range statuses {
		if s == "passed" {
			return false
		}
	}
	return true
}

// detectRegressions flags tests whose average duration over the most
// recent 3 runs is at least 1.5x their average over the 3 runs before that
// (spec.md §4.4).
func detectRegressions(runs []RunRecord) []string {
	if len(runs) < 6 {
		return nil
	}
	recent := runs[len(runs)-3:]
	older := runs[len(runs)-6 : len(runs)-3]

	recentAvg := averageDurationByTest(recent)
	olderAvg := averageDurationByTest(older)

	var regressions []string
	for name, oldAvg := range olderAvg {
		newAvg, ok := recentAvg[name]
		if !ok || oldAvg <= 0 {
			continue
		}
		if float64(newAvg) >= float64(oldAvg)*1.5 {
			regressions = append(regressions, name)
		}
	}
	return regressions
}

func averageDurationByTest(runs []RunRecord) map[string]time.Duration {
	totals := make(map[string]time.Duration)
	counts := make(map[string]int)
	for _, run := range runs {
		for _, t := range run.Tests {
			totals[t.SpecName] += t.Duration
			counts[t.SpecName]++
		}
	}
	avg := make(map[string]time.Duration, len(totals))
	for name, total := range totals {
		avg[name] = total / time.Duration(counts[name])
	}
	return avg
}

// StabilityBand classifies a test's pass rate over a window (spec.md §4.4
// "Stability score").
type StabilityBand string

const (
	StabilityStable       StabilityBand = "stable"
	StabilityMostlyStable StabilityBand = "mostly_stable"
	StabilityFlaky        StabilityBand = "flaky"
	StabilityUnstable     StabilityBand = "unstable"
)

// Stability is one test's stability score over a window of runs.
type Stability struct {
	PassCount int
	RunCount  int
	Score     float64
	Band      StabilityBand
}

// StabilityScore computes testName's pass-count/run-count ratio over runs
// and classifies it into a band.
func StabilityScore(runs []RunRecord, testName string) Stability {
	var passCount, runCount int
	for _, run := range runs {
		for _, t := range run.Tests {
			if t.SpecName != testName {
				continue
			}
			runCount++
			if t.Status == "passed" {
				passCount++
			}
		}
	}

	var score float64
	if runCount > 0 {
		score = float64(passCount) / float64(runCount) * 100
	}

	return Stability{
		PassCount: passCount,
		RunCount:  runCount,
		Score:     score,
		Band:      classifyStability(score),
	}
}

func classifyStability(score float64) StabilityBand {
	switch {
	case score >= 95:
		return StabilityStable
	case score >= 80:
		return StabilityMostlyStable
	case score >= 50:
		return StabilityFlaky
	default:
		return StabilityUnstable
	}
}
