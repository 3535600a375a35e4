package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/judgehost/pkg/archive"
	"github.com/cuemby/judgehost/pkg/events"
	"github.com/cuemby/judgehost/pkg/fetcher"
	"github.com/cuemby/judgehost/pkg/imagecache"
	"github.com/cuemby/judgehost/pkg/registry"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/storage"
	"github.com/cuemby/judgehost/pkg/types"
)

// testHarness wires a Registry backed by a real BoltStore in a temp dir
// against a runtime.Fake, the same double §9 calls for in the Orchestrator's
// own tests.
type testHarness struct {
	registry *registry.Registry
	runtime  *runtime.Fake
	store    storage.Store
	dataDir  string
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	dataDir := t.TempDir()
	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rt := runtime.NewFake()
	reg := registry.New(store, fetcher.New(5*time.Second), imagecache.New(), rt, dataDir)
	return &testHarness{registry: reg, runtime: rt, store: store, dataDir: dataDir}
}

// registerSingleContainerProblem builds a minimal one-container problem
// package on disk, archives it, and ingests it through the real Registry
// (exercising §4.1 end to end) so the Orchestrator tests run against a
// genuinely registered ProblemRecord rather than a hand-built stand-in.
func (h *testHarness) registerSingleContainerProblem(t *testing.T, problemID string, cfg types.ProblemConfig) *types.ProblemRecord {
	t.Helper()
	cfg.ProblemID = problemID

	src := t.TempDir()
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "config.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "Dockerfile"), []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := archive.CreateTarGz(&buf, src); err != nil {
		t.Fatalf("CreateTarGz: %v", err)
	}

	record, err := h.registry.Ingest(context.Background(), registry.IngestRequest{
		ProblemID:   problemID,
		ArchiveData: buf.Bytes(),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return record
}

func testJob(problemID, submissionID string, source types.SubmissionRequest) *types.Job {
	source.ProblemID = problemID
	source.SubmissionID = submissionID
	return &types.Job{
		JobID:        "job-" + submissionID,
		SubmissionID: submissionID,
		ProblemID:    problemID,
		Submission:   &source,
	}
}

type recordingReporter struct {
	reported []*types.Evaluation
}

func (r *recordingReporter) Report(ctx context.Context, eval *types.Evaluation) error {
	r.reported = append(r.reported, eval)
	return nil
}

func newTestOrchestrator(t *testing.T, h *testHarness, reporter Reporter) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SubmissionsDir = t.TempDir()
	cfg.ResultsDir = t.TempDir()
	cfg.ServiceWarmup = time.Millisecond
	cfg.HookStabilize = time.Millisecond
	cfg.DependencyInterval = time.Millisecond
	cfg.DefaultTimeout = 5 * time.Second
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	return New(cfg, h.registry, h.runtime, fetcher.New(time.Second), broker, reporter)
}

func TestRunSingleContainerSuccess(t *testing.T) {
	h := newTestHarness(t)
	record := h.registerSingleContainerProblem(t, "echo-grader", types.ProblemConfig{
		Containers: []*types.ContainerSpec{
			{ContainerID: "grader", EvalStage: true, AcceptsSubmission: true},
		},
		Rubrics: []*types.RubricSpec{
			{RubricID: "tests", ContainerID: "grader", MaxScore: 100},
		},
	})

	rep := &recordingReporter{}
	o := newTestOrchestrator(t, h, rep)

	job := testJob(record.ProblemID, "sub-1", types.SubmissionRequest{
		Source:      types.SourceData,
		ArchiveData: submissionArchive(t),
	})

	// Nothing writes a rubric file for the grader here, so rubric
	// collection finds no output; the evaluation still has to complete.
	eval, err := o.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if eval.Status != types.EvalCompleted {
		t.Fatalf("expected completed status, got %v (%s)", eval.Status, eval.ErrorMessage)
	}
	if len(eval.Containers) != 1 {
		t.Fatalf("expected 1 container, got %d", len(eval.Containers))
	}
	gc := eval.Containers["grader"]
	if gc.Status != types.ContainerStateRunning {
		t.Fatalf("expected grader container running, got %v", gc.Status)
	}
	// No rubric file was produced, so the single rubric is not_found/0 but
	// still a completed evaluation (missing output is a scoring outcome,
	// not a pipeline failure).
	rr := eval.Rubrics["tests"]
	if rr == nil || rr.Status != types.RubricNotFound {
		t.Fatalf("expected not_found rubric, got %+v", rr)
	}
	if len(rep.reported) != 1 {
		t.Fatalf("expected the reporter to be invoked once, got %d", len(rep.reported))
	}

	resultPath := filepath.Join(o.cfg.ResultsDir, "sub-1", "artifacts", eval.EvaluationID, "result.json")
	if _, err := os.Stat(resultPath); err != nil {
		t.Fatalf("expected result.json to be persisted: %v", err)
	}
}

func TestRunMultiContainerCreatesNetworkAndRespectsDependencyOrder(t *testing.T) {
	h := newTestHarness(t)
	record := h.registerSingleContainerProblem(t, "web-and-db", types.ProblemConfig{
		Containers: []*types.ContainerSpec{
			{ContainerID: "db", EvalStage: true},
			{ContainerID: "web", EvalStage: true, AcceptsSubmission: true,
				DependsOn: []*types.DependsOn{{ContainerID: "db", Condition: types.WaitStarted}}},
		},
	})

	o := newTestOrchestrator(t, h, nil)
	job := testJob(record.ProblemID, "sub-2", types.SubmissionRequest{
		Source:      types.SourceData,
		ArchiveData: submissionArchive(t),
	})

	eval, err := o.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if eval.Status != types.EvalCompleted {
		t.Fatalf("expected completed status, got %v (%s)", eval.Status, eval.ErrorMessage)
	}
	if len(eval.Containers) != 2 {
		t.Fatalf("expected 2 containers, got %d", len(eval.Containers))
	}
	nets, _ := h.runtime.ListNetworks(context.Background(), nil)
	// cleanup removes the network once the evaluation finishes, so by the
	// time Run returns none should remain.
	if len(nets) != 0 {
		t.Fatalf("expected the evaluation network to be cleaned up, got %v", nets)
	}
}

func TestRunFailsWhenProblemNotRegistered(t *testing.T) {
	h := newTestHarness(t)
	o := newTestOrchestrator(t, h, nil)

	job := testJob("does-not-exist", "sub-3", types.SubmissionRequest{
		Source:      types.SourceData,
		ArchiveData: submissionArchive(t),
	})

	eval, err := o.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run should only error before Evaluation construction, got %v", err)
	}
	if eval.Status != types.EvalFailed {
		t.Fatalf("expected failed status, got %v", eval.Status)
	}
	if eval.ErrorMessage == "" {
		t.Fatal("expected an error message describing the missing problem")
	}
}

func TestRunFailsWhenSubmissionMissing(t *testing.T) {
	h := newTestHarness(t)
	o := newTestOrchestrator(t, h, nil)

	job := &types.Job{JobID: "job-no-submission", SubmissionID: "sub-4", ProblemID: "whatever"}
	_, err := o.Run(context.Background(), job)
	if err == nil {
		t.Fatal("expected an error for a job with no attached submission")
	}
}

func TestRunTimesOutAndKillsPrimaryContainers(t *testing.T) {
	h := newTestHarness(t)
	record := h.registerSingleContainerProblem(t, "slow-grader", types.ProblemConfig{
		Containers: []*types.ContainerSpec{
			{ContainerID: "service", EvalStage: true},
		},
	})

	o := newTestOrchestrator(t, h, nil)
	o.cfg.DefaultTimeout = 10 * time.Millisecond
	o.cfg.ServiceWarmup = time.Second // long enough to blow past DefaultTimeout; no container accepts a submission here so no warmup is skipped

	job := testJob(record.ProblemID, "sub-5", types.SubmissionRequest{
		Source:      types.SourceData,
		ArchiveData: submissionArchive(t),
	})

	eval, err := o.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !eval.TimedOut {
		t.Fatalf("expected TimedOut=true, got status=%v", eval.Status)
	}
	if eval.Status != types.EvalFailed {
		t.Fatalf("expected failed status on timeout, got %v", eval.Status)
	}
}

// submissionArchive returns a minimal tar.gz submission payload.
func submissionArchive(t *testing.T) []byte {
	t.Helper()
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := archive.CreateTarGz(&buf, src); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
