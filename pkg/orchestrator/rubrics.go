package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cuemby/judgehost/pkg/metrics"
	"github.com/cuemby/judgehost/pkg/types"
)

// rubricOutput is the shape a container's rubric file is expected to
// contain; any other fields in the file are ignored.
type rubricOutput struct {
	Score   float64 `json:"score"`
	Status  string  `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
}

// collectRubrics implements §4.4 step 10: locate, parse, and normalize
// every rubric's output file. Missing files yield not_found/0; parse
// errors yield error/0; everything else is validated against [0,max_score]
// and its status/percentage normalized.
func (o *Orchestrator) collectRubrics(r *run) {
	for _, spec := range r.record.Config.Rubrics {
		result := &types.RubricResult{RubricID: spec.RubricID, MaxScore: spec.MaxScore}

		path := o.locateRubricFile(r, spec)
		if path == "" {
			result.Status = types.RubricNotFound
			result.Message = "rubric output file not found"
			r.eval.Rubrics[spec.RubricID] = result
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			result.Status = types.RubricError
			result.Message = "reading rubric file: " + err.Error()
			r.eval.Rubrics[spec.RubricID] = result
			continue
		}

		var out rubricOutput
		if err := json.Unmarshal(raw, &out); err != nil {
			result.Status = types.RubricError
			result.Message = "parsing rubric file: " + err.Error()
			r.eval.Rubrics[spec.RubricID] = result
			continue
		}

		score := out.Score
		if score < 0 {
			score = 0
		}
		if score > spec.MaxScore {
			score = spec.MaxScore
		}
		result.Score = score
		result.Status = normalizeRubricStatus(out.Status, score, spec.MaxScore)
		result.Message = out.Message

		metrics.RubricScores.WithLabelValues(spec.RubricID).Observe(score)
		r.eval.Rubrics[spec.RubricID] = result
	}
}

// locateRubricFile searches the evaluation artifacts root first, then the
// rubric's container's /out mount (the only container-writable directory
// the Mount Layout Contract establishes; §4.4 step 10's "containers/*/rubrics/"
// location is interpreted as a rubrics/ subdirectory beneath that mount).
func (o *Orchestrator) locateRubricFile(r *run, spec *types.RubricSpec) string {
	filename := spec.DefaultOutputFile()

	candidates := []string{
		filepath.Join(r.evalDir, "artifacts", filename),
		filepath.Join(r.evalDir, "containers", spec.ContainerID, "out", filename),
		filepath.Join(r.evalDir, "containers", spec.ContainerID, "out", "rubrics", filename),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

func normalizeRubricStatus(reported string, score, max float64) types.RubricStatus {
	switch reported {
	case string(types.RubricPassed), string(types.RubricPartial), string(types.RubricFailed):
		return types.RubricStatus(reported)
	}
	switch {
	case max == 0:
		return types.RubricFailed
	case score >= max:
		return types.RubricPassed
	case score > 0:
		return types.RubricPartial
	default:
		return types.RubricFailed
	}
}

// aggregate implements §4.4 step 11: sum scores/max_scores across rubrics
// and compute the overall percentage. Grade/verdict derivation lives on
// the persisted result via Grade()/Verdict() so callers (the Reporter, the
// CLI) can recompute them without re-running the pipeline.
func (o *Orchestrator) aggregate(r *run) {
	var total, max float64
	for _, res := range r.eval.Rubrics {
		total += res.Score
		max += res.MaxScore
	}
	r.eval.TotalScore = total
	r.eval.MaxScore = max
	if max > 0 {
		r.eval.Percentage = 100 * total / max
	}
}

// Grade derives a letter grade from an Evaluation's percentage using
// standard thresholds (A+ at 97, down to F below 60).
func Grade(percentage float64) string {
	switch {
	case percentage >= 97:
		return "A+"
	case percentage >= 93:
		return "A"
	case percentage >= 90:
		return "A-"
	case percentage >= 87:
		return "B+"
	case percentage >= 83:
		return "B"
	case percentage >= 80:
		return "B-"
	case percentage >= 77:
		return "C+"
	case percentage >= 73:
		return "C"
	case percentage >= 70:
		return "C-"
	case percentage >= 67:
		return "D+"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

// Verdict derives a qualitative verdict from an Evaluation's percentage.
func Verdict(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Excellent"
	case percentage >= 75:
		return "Good"
	case percentage >= 60:
		return "Satisfactory"
	default:
		return "Unsatisfactory"
	}
}
