package runcontroller

import (
	"time"

	"github.com/nullbridge/testforge/internal/aggregator"
	"github.com/nullbridge/testforge/internal/history"
)

// recordHistory mirrors every recorded result onto the in-progress history
// run (spec.md §4.4 "record"). Only the most recent attempt per spec name
// is preserved in the Tests list, matching aggregator.BySpec's "latest
// status" semantics.
func recordHistory(run *history.Run, agg *aggregator.Aggregator) {
	seen := make(map[string]bool)
	entries := agg.Entries()

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if seen[e.Spec.Name] {
			continue
		}
		seen[e.Spec.Name] = true

		var validators []history.ValidatorSummary
		for _, o := range e.Result.ValidatorOutcomes {
			validators = append(validators, history.ValidatorSummary{
				Kind:     o.ValidatorKind,
				Success:  o.Success,
				Duration: o.Duration,
			})
		}

		run.Record(history.TestEntry{
			SpecName:           e.Spec.Name,
			Status:             string(e.Result.Status),
			Duration:           e.Result.Duration(),
			ValidatorSummaries: validators,
		})
	}
}

// summaryFor computes the RunSummary the history run is finished with from
// the aggregator's final tallies.
func summaryFor(agg *aggregator.Aggregator) history.RunSummary {
	totals := agg.Totals()

	var total time.Duration
	for _, e := range agg.Entries() {
		total += e.Result.Duration()
	}

	return history.RunSummary{
		Total:    totals.Passed + totals.Failed + totals.Skipped + totals.Errored,
		Passed:   totals.Passed,
		Failed:   totals.Failed,
		Skipped:  totals.Skipped,
		Errored:  totals.Errored,
		Duration: total,
	}
}
