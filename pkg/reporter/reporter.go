// Package reporter implements the Result Reporter (§4.6): a best-effort,
// at-most-once POST of each terminal Evaluation to a configured scoreboard
// endpoint. It never fails the job that produced the result it is reporting.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/metrics"
	"github.com/cuemby/judgehost/pkg/retry"
	"github.com/cuemby/judgehost/pkg/types"
)

// Config configures the Reporter.
type Config struct {
	BaseURL string // e.g. https://domserver.example.com
	Host    string // this judgehost's identifier, used in the POST path
	Timeout time.Duration

	RetryEnabled bool
	Retry        retry.Config
}

// DefaultConfig returns §4.6's defaults: no retry, a 10s per-POST timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		RetryEnabled: false,
		Retry:        retry.DefaultConfig(),
	}
}

// Reporter posts each Evaluation at most once per submission_id for the
// lifetime of the process (§4.4 step 14, §4.6).
type Reporter struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger

	mu                sync.Mutex
	postedSubmissions map[string]struct{}
}

// New constructs a Reporter.
func New(cfg Config) *Reporter {
	return &Reporter{
		cfg:               cfg,
		client:            &http.Client{Timeout: cfg.Timeout},
		logger:            log.WithComponent("reporter"),
		postedSubmissions: make(map[string]struct{}),
	}
}

// resultPayload is the Result payload shape from §6.
type resultPayload struct {
	SubmissionID    string                 `json:"submission_id"`
	ProblemID       string                 `json:"problem_id"`
	Status          string                 `json:"status"`
	EvaluatedAt     string                 `json:"evaluated_at"`
	ExecutionStatus string                 `json:"execution_status"`
	TimedOut        bool                   `json:"timed_out"`
	TotalScore      float64                `json:"total_score"`
	MaxScore        float64                `json:"max_score"`
	Percentage      float64                `json:"percentage"`
	Rubrics         []rubricPayload        `json:"rubrics"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Artifacts       []artifactPayload      `json:"artifacts"`
}

type rubricPayload struct {
	RubricID string  `json:"rubric_id"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Details  any     `json:"details,omitempty"`
}

type artifactPayload struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	URL      string `json:"url,omitempty"`
}

// Report posts eval to the scoreboard endpoint, skipping submission_ids
// already posted this process lifetime. A reporting failure is returned to
// the caller to log, but §4.4 step 14 never lets it fail the underlying job.
func (r *Reporter) Report(ctx context.Context, eval *types.Evaluation) error {
	r.mu.Lock()
	if _, already := r.postedSubmissions[eval.SubmissionID]; already {
		r.mu.Unlock()
		r.logger.Debug().Str("submission_id", eval.SubmissionID).Msg("result already reported, skipping")
		return nil
	}
	r.mu.Unlock()

	if r.cfg.BaseURL == "" {
		return jherrors.Internal("reporter has no base_url configured", nil)
	}

	payload := buildPayload(eval)
	body, err := json.Marshal(payload)
	if err != nil {
		return jherrors.Internal("marshaling result payload", err)
	}

	url := fmt.Sprintf("%s/judgehosts/add-judging-run/%s/%s", r.cfg.BaseURL, r.cfg.Host, eval.SubmissionID)

	timer := metrics.NewTimer()
	post := func() error { return r.postOnce(ctx, url, body) }

	if r.cfg.RetryEnabled {
		retryCfg := r.cfg.Retry
		retryCfg.Retryable = func(err error) bool { return jherrors.Is(err, jherrors.CodeTransientNetwork) }
		err = retry.Do(ctx, retryCfg, post)
	} else {
		err = post()
	}
	timer.ObserveDuration(metrics.ReportDuration)

	if err != nil {
		metrics.ReportsPostedTotal.WithLabelValues("failed").Inc()
		return err
	}

	r.mu.Lock()
	r.postedSubmissions[eval.SubmissionID] = struct{}{}
	r.mu.Unlock()
	metrics.ReportsPostedTotal.WithLabelValues("posted").Inc()
	return nil
}

func (r *Reporter) postOnce(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return jherrors.Internal("building result POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return jherrors.TransientNetworkError("POST "+url, err)
	}
	defer resp.Body.Close()

	if isRetryableStatus(resp.StatusCode) {
		return jherrors.TransientNetworkError("POST "+url, statusError(resp.StatusCode))
	}
	if resp.StatusCode >= 300 {
		return jherrors.RuntimeError("POST "+url, statusError(resp.StatusCode))
	}
	return nil
}

// isRetryableStatus matches the status codes enumerated in §4.6.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type statusError int

func (e statusError) Error() string {
	return fmt.Sprintf("%d %s", int(e), http.StatusText(int(e)))
}

func buildPayload(eval *types.Evaluation) resultPayload {
	rubrics := make([]rubricPayload, 0, len(eval.Rubrics))
	for _, res := range eval.Rubrics {
		rubrics = append(rubrics, rubricPayload{
			RubricID: res.RubricID,
			Score:    res.Score,
			MaxScore: res.MaxScore,
			Details:  res.Details,
		})
	}

	return resultPayload{
		SubmissionID:    eval.SubmissionID,
		ProblemID:       eval.ProblemID,
		Status:          string(eval.Status),
		EvaluatedAt:     eval.CompletedAt.UTC().Format(time.RFC3339),
		ExecutionStatus: executionStatus(eval),
		TimedOut:        eval.TimedOut,
		TotalScore:      eval.TotalScore,
		MaxScore:        eval.MaxScore,
		Percentage:      eval.Percentage,
		Rubrics:         rubrics,
		Metadata:        map[string]interface{}{"evaluation_id": eval.EvaluationID},
		Artifacts:       []artifactPayload{},
	}
}

// executionStatus maps an Evaluation onto §6's execution_status enum
// (success|error|failed): "error" covers infrastructure failures the
// Orchestrator itself hit (timeouts, runtime/hook errors — everything that
// set ErrorMessage/TimedOut); "failed" is reserved for a completed
// evaluation whose rubrics simply scored badly, which this system never
// distinguishes at the status level, so it reduces to the same two cases
// the Orchestrator actually produces.
func executionStatus(eval *types.Evaluation) string {
	if eval.Status == types.EvalCompleted {
		return "success"
	}
	return "error"
}
