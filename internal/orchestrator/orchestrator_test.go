package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nullbridge/testforge/internal/model"
	"github.com/nullbridge/testforge/internal/planner"
	"github.com/nullbridge/testforge/internal/spec"
)

type fakeRunner struct {
	mu      sync.Mutex
	started []string
	status  map[string]model.Status
	err     map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{status: map[string]model.Status{}, err: map[string]error{}}
}

func (f *fakeRunner) Run(ctx context.Context, s spec.TestSpec) (model.TestResult, error) {
	f.mu.Lock()
	f.started = append(f.started, s.Name)
	f.mu.Unlock()

	if err := f.err[s.Name]; err != nil {
		return model.TestResult{}, err
	}
	status := f.status[s.Name]
	if status == "" {
		status = model.StatusPassed
	}
	return model.TestResult{SpecName: s.Name, Status: status}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	results map[string]model.TestResult
}

func newRecordingSink() *recordingSink {
	return &recordingSink{results: map[string]model.TestResult{}}
}

func (s *recordingSink) Record(spec spec.TestSpec, result model.TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[spec.Name] = result
}

type recordingReporter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingReporter) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingReporter) StartSuite(specs []spec.TestSpec)  { r.add("start_suite") }
func (r *recordingReporter) FinishSuite(specs []spec.TestSpec) { r.add("finish_suite") }
func (r *recordingReporter) StartTest(s spec.TestSpec)         { r.add("start:" + s.Name) }
func (r *recordingReporter) FinishTest(s spec.TestSpec)        { r.add("finish:" + s.Name) }
func (r *recordingReporter) TestPassed(s spec.TestSpec, outcomes []model.ValidatorOutcome) {
	r.add("passed:" + s.Name)
}
func (r *recordingReporter) TestFailed(s spec.TestSpec, outcomes []model.ValidatorOutcome) {
	r.add("failed:" + s.Name)
}
func (r *recordingReporter) TestSkipped(s spec.TestSpec, reason string) {
	r.add("skipped:" + s.Name)
}

func specs(names ...string) []spec.TestSpec {
	out := make([]spec.TestSpec, 0, len(names))
	for _, n := range names {
		out = append(out, spec.TestSpec{Name: n})
	}
	return out
}

func TestOrchestrator_RunsGroupsInOrderAndRecordsResults(t *testing.T) {
	all := specs("a", "b", "c")
	plan := &planner.ExecutionPlan{
		Order:  []string{"a", "b", "c"},
		Groups: [][]string{{"a"}, {"b", "c"}},
	}

	runner := newFakeRunner()
	sink := newRecordingSink()
	reporter := &recordingReporter{}
	o := New(Options{Runner: runner, Sink: sink, Reporter: reporter, ParallelWorkers: 4})

	require.NoError(t, o.Run(context.Background(), plan, all))

	require.Len(t, sink.results, 3)
	require.Equal(t, model.StatusPassed, sink.results["a"].Status)
	require.Equal(t, model.StatusPassed, sink.results["b"].Status)
	require.Equal(t, model.StatusPassed, sink.results["c"].Status)

	require.Equal(t, "start_suite", reporter.events[0])
	require.Equal(t, "finish_suite", reporter.events[len(reporter.events)-1])
}

func TestOrchestrator_UncaughtWorkerFailureBecomesErrorWithoutAbortingGroup(t *testing.T) {
	all := specs("a", "b")
	plan := &planner.ExecutionPlan{Order: []string{"a", "b"}, Groups: [][]string{{"a", "b"}}}

	runner := newFakeRunner()
	runner.err["a"] = assertErr{}
	sink := newRecordingSink()
	o := New(Options{Runner: runner, Sink: sink, ParallelWorkers: 4})

	require.NoError(t, o.Run(context.Background(), plan, all))

	require.Equal(t, model.StatusError, sink.results["a"].Status)
	require.Equal(t, model.StatusPassed, sink.results["b"].Status)
}

func TestOrchestrator_SingleMemberGroupRunsSequentially(t *testing.T) {
	all := specs("solo")
	plan := &planner.ExecutionPlan{Order: []string{"solo"}, Groups: [][]string{{"solo"}}}

	runner := newFakeRunner()
	sink := newRecordingSink()
	o := New(Options{Runner: runner, Sink: sink, ParallelWorkers: 8})

	require.NoError(t, o.Run(context.Background(), plan, all))
	require.Equal(t, []string{"solo"}, runner.started)
}

func TestOrchestrator_WorkerBudgetOfOneRunsSequentially(t *testing.T) {
	all := specs("a", "b", "c")
	plan := &planner.ExecutionPlan{Order: []string{"a", "b", "c"}, Groups: [][]string{{"a", "b", "c"}}}

	runner := newFakeRunner()
	sink := newRecordingSink()
	o := New(Options{Runner: runner, Sink: sink, ParallelWorkers: 1})

	require.NoError(t, o.Run(context.Background(), plan, all))
	require.ElementsMatch(t, []string{"a", "b", "c"}, runner.started)
}

func TestNew_DefaultsWorkerBudgetWhenUnset(t *testing.T) {
	o := New(Options{Runner: newFakeRunner(), Sink: newRecordingSink()})
	require.GreaterOrEqual(t, o.workers, 1)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
