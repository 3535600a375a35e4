package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/judgehost/pkg/types"
)

func writeRubricFile(t *testing.T, dir, name string, out rubricOutput) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestRun(t *testing.T) *run {
	t.Helper()
	evalDir := t.TempDir()
	return &run{
		evalDir: evalDir,
		record: &types.ProblemRecord{
			Config: &types.ProblemConfig{},
		},
		eval: &types.Evaluation{
			Containers: make(map[string]*types.EvalContainer),
			Rubrics:    make(map[string]*types.RubricResult),
		},
	}
}

func TestCollectRubricsFoundInArtifacts(t *testing.T) {
	o := &Orchestrator{}
	r := newTestRun(t)
	spec := &types.RubricSpec{RubricID: "tests", ContainerID: "grader", MaxScore: 100}
	r.record.Config.Rubrics = []*types.RubricSpec{spec}

	writeRubricFile(t, filepath.Join(r.evalDir, "artifacts"), spec.DefaultOutputFile(), rubricOutput{Score: 80})

	o.collectRubrics(r)

	got := r.eval.Rubrics["tests"]
	if got == nil {
		t.Fatal("expected a rubric result")
	}
	if got.Score != 80 {
		t.Fatalf("expected score 80, got %v", got.Score)
	}
	if got.Status != types.RubricPartial {
		t.Fatalf("expected partial status, got %v", got.Status)
	}
}

func TestCollectRubricsFoundUnderContainerOut(t *testing.T) {
	o := &Orchestrator{}
	r := newTestRun(t)
	spec := &types.RubricSpec{RubricID: "perf", ContainerID: "bench", MaxScore: 50, OutputFile: "result.json"}
	r.record.Config.Rubrics = []*types.RubricSpec{spec}

	writeRubricFile(t, filepath.Join(r.evalDir, "containers", "bench", "out"), "result.json", rubricOutput{Score: 50, Status: "passed"})

	o.collectRubrics(r)

	got := r.eval.Rubrics["perf"]
	if got.Status != types.RubricPassed {
		t.Fatalf("expected passed status, got %v", got.Status)
	}
}

func TestCollectRubricsMissingFile(t *testing.T) {
	o := &Orchestrator{}
	r := newTestRun(t)
	spec := &types.RubricSpec{RubricID: "missing", ContainerID: "grader", MaxScore: 10}
	r.record.Config.Rubrics = []*types.RubricSpec{spec}

	o.collectRubrics(r)

	got := r.eval.Rubrics["missing"]
	if got.Status != types.RubricNotFound {
		t.Fatalf("expected not_found status, got %v", got.Status)
	}
	if got.Score != 0 {
		t.Fatalf("expected score 0, got %v", got.Score)
	}
}

func TestCollectRubricsMalformedJSON(t *testing.T) {
	o := &Orchestrator{}
	r := newTestRun(t)
	spec := &types.RubricSpec{RubricID: "broken", ContainerID: "grader", MaxScore: 10}
	r.record.Config.Rubrics = []*types.RubricSpec{spec}

	dir := filepath.Join(r.evalDir, "artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, spec.DefaultOutputFile()), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	o.collectRubrics(r)

	got := r.eval.Rubrics["broken"]
	if got.Status != types.RubricError {
		t.Fatalf("expected error status, got %v", got.Status)
	}
}

func TestCollectRubricsClampsScore(t *testing.T) {
	o := &Orchestrator{}
	r := newTestRun(t)
	spec := &types.RubricSpec{RubricID: "over", ContainerID: "grader", MaxScore: 10}
	r.record.Config.Rubrics = []*types.RubricSpec{spec}

	writeRubricFile(t, filepath.Join(r.evalDir, "artifacts"), spec.DefaultOutputFile(), rubricOutput{Score: 999})

	o.collectRubrics(r)

	got := r.eval.Rubrics["over"]
	if got.Score != 10 {
		t.Fatalf("expected score clamped to 10, got %v", got.Score)
	}
	if got.Status != types.RubricPassed {
		t.Fatalf("expected passed status at max score, got %v", got.Status)
	}
}

func TestNormalizeRubricStatusDerivesFromScore(t *testing.T) {
	cases := []struct {
		score, max float64
		want       types.RubricStatus
	}{
		{0, 10, types.RubricFailed},
		{5, 10, types.RubricPartial},
		{10, 10, types.RubricPassed},
		{0, 0, types.RubricFailed},
	}
	for _, c := range cases {
		got := normalizeRubricStatus("", c.score, c.max)
		if got != c.want {
			t.Errorf("normalizeRubricStatus(%v,%v) = %v, want %v", c.score, c.max, got, c.want)
		}
	}
}

func TestNormalizeRubricStatusPassesThroughReported(t *testing.T) {
	got := normalizeRubricStatus("failed", 10, 10)
	if got != types.RubricFailed {
		t.Fatalf("expected reported status to win, got %v", got)
	}
}

func TestAggregate(t *testing.T) {
	o := &Orchestrator{}
	r := newTestRun(t)
	r.eval.Rubrics["a"] = &types.RubricResult{Score: 40, MaxScore: 50}
	r.eval.Rubrics["b"] = &types.RubricResult{Score: 30, MaxScore: 50}

	o.aggregate(r)

	if r.eval.TotalScore != 70 {
		t.Fatalf("expected total 70, got %v", r.eval.TotalScore)
	}
	if r.eval.MaxScore != 100 {
		t.Fatalf("expected max 100, got %v", r.eval.MaxScore)
	}
	if r.eval.Percentage != 70 {
		t.Fatalf("expected 70%%, got %v", r.eval.Percentage)
	}
}

func TestAggregateZeroMaxScore(t *testing.T) {
	o := &Orchestrator{}
	r := newTestRun(t)
	o.aggregate(r)
	if r.eval.Percentage != 0 {
		t.Fatalf("expected 0%% with no rubrics, got %v", r.eval.Percentage)
	}
}

func TestGradeThresholds(t *testing.T) {
	cases := map[float64]string{
		100: "A+", 95: "A", 91: "A-", 88: "B+", 85: "B", 81: "B-",
		78: "C+", 75: "C", 71: "C-", 68: "D+", 65: "D", 40: "F",
	}
	for pct, want := range cases {
		if got := Grade(pct); got != want {
			t.Errorf("Grade(%v) = %q, want %q", pct, got, want)
		}
	}
}

func TestVerdictThresholds(t *testing.T) {
	cases := map[float64]string{
		95: "Excellent", 80: "Good", 65: "Satisfactory", 20: "Unsatisfactory",
	}
	for pct, want := range cases {
		if got := Verdict(pct); got != want {
			t.Errorf("Verdict(%v) = %q, want %q", pct, got, want)
		}
	}
}
