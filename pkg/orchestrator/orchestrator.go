// Package orchestrator implements the Evaluation Orchestrator (§4.4): it
// drives a single Job from a raw submission through workspace preparation,
// image readiness, dependency-ordered container creation and startup, hook
// execution, rubric collection, and result persistence/reporting.
//
// Its container lifecycle (pull/mount → create → start → monitor → stop →
// remove) is the judge-domain generalization of the teacher's per-task
// executeContainer/stopContainer state machine, extended from one task to a
// dependency-ordered group of containers sharing one evaluation network.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/judgehost/pkg/events"
	"github.com/cuemby/judgehost/pkg/fetcher"
	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/metrics"
	"github.com/cuemby/judgehost/pkg/mounts"
	"github.com/cuemby/judgehost/pkg/registry"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/types"
)

// Reporter hands a terminal Evaluation off to the Result Reporter (§4.6).
// Reporting failures never fail the Job (§4.4 step 14).
type Reporter interface {
	Report(ctx context.Context, eval *types.Evaluation) error
}

// Config configures evaluation execution. DefaultConfig returns the §4.4/§5
// defaults; New uses the Config as given and does not replace zero durations.
type Config struct {
	SubmissionsDir string
	ResultsDir     string

	DefaultTimeout time.Duration // overall evaluation deadline

	DependencyTimeout  time.Duration
	DependencyRetries  int
	DependencyInterval time.Duration

	ServiceWarmup      time.Duration
	HookStabilize      time.Duration
	DefaultHookTimeout time.Duration
	StopGrace          time.Duration

	// MaxMemoryMB and MaxCPUCores cap every container's resource request,
	// regardless of what the problem package asks for (§5). Zero means
	// unlimited (no host-wide cap is imposed).
	MaxMemoryMB int
	MaxCPUCores float64
}

// DefaultConfig returns the §4.4/§5 defaults.
func DefaultConfig() Config {
	return Config{
		SubmissionsDir:     "submissions",
		ResultsDir:         "results",
		DefaultTimeout:     10 * time.Minute,
		DependencyTimeout:  30 * time.Second,
		DependencyRetries:  3,
		DependencyInterval: 2 * time.Second,
		ServiceWarmup:      5 * time.Second,
		HookStabilize:      1 * time.Second,
		DefaultHookTimeout: 30 * time.Second,
		StopGrace:          10 * time.Second,
	}
}

// Orchestrator executes Jobs to completion against a Registry (for problem
// packages and images) and a Runtime (for container operations).
type Orchestrator struct {
	cfg      Config
	registry *registry.Registry
	rt       runtime.Runtime
	fetcher  *fetcher.Fetcher
	broker   *events.Broker
	reporter Reporter
	logger   zerolog.Logger
}

// New constructs an Orchestrator. reporter may be nil (results are then
// persisted but never posted — useful for tests).
func New(cfg Config, reg *registry.Registry, rt runtime.Runtime, f *fetcher.Fetcher, broker *events.Broker, reporter Reporter) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		rt:       rt,
		fetcher:  f,
		broker:   broker,
		reporter: reporter,
		logger:   log.WithComponent("orchestrator"),
	}
}

// run carries the per-evaluation state threaded through the pipeline steps.
type run struct {
	evaluationID  string
	job           *types.Job
	record        *types.ProblemRecord
	submissionDir string
	archiveMeta   archiveMetadata
	evalDir       string
	networkName   string
	multiContainer bool
	order         []*types.ContainerSpec
	runtimeIDs    map[string]string // container_id -> runtime-assigned id
	hooksDirs     map[string]string // container_id -> host hooks directory
	eval          *types.Evaluation
	logger        zerolog.Logger
}

type archiveMetadata struct {
	Source      types.PackageSource `json:"archive_source"`
	SizeBytes   int                 `json:"archive_size_bytes"`
	SHA256      string              `json:"sha256,omitempty"`
	SubmittedAt time.Time           `json:"received_at"`
}

// Run executes job end to end and returns the terminal Evaluation. The
// returned error is non-nil only for failures that precede Evaluation
// construction (e.g. job.Submission is nil); once an Evaluation exists its
// Status/ErrorMessage/TimedOut fields carry the outcome instead, matching
// §4.4's "do not fail the job if reporting fails" contract.
func (o *Orchestrator) Run(ctx context.Context, job *types.Job) (*types.Evaluation, error) {
	if job.Submission == nil {
		return nil, jherrors.InvalidInput("submission", "job has no attached submission request")
	}

	timeout := o.cfg.DefaultTimeout
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	evaluationID := uuid.New().String()
	r := &run{
		evaluationID: evaluationID,
		job:          job,
		runtimeIDs:   make(map[string]string),
		hooksDirs:    make(map[string]string),
		logger:       log.WithEvaluationID(evaluationID),
	}
	r.eval = &types.Evaluation{
		EvaluationID: r.evaluationID,
		SubmissionID: job.SubmissionID,
		ProblemID:    job.ProblemID,
		Containers:   make(map[string]*types.EvalContainer),
		Rubrics:      make(map[string]*types.RubricResult),
		StartedAt:    time.Now(),
	}

	timer := metrics.NewTimer()
	o.publish(events.EventEvaluationStarted, r, "evaluation started")

	err := o.runPipeline(evalCtx, r)
	r.eval.CompletedAt = time.Now()
	timer.ObserveDuration(metrics.EvaluationDuration)

	switch {
	case err != nil && evalCtx.Err() == context.DeadlineExceeded:
		r.eval.TimedOut = true
		r.eval.Status = types.EvalFailed
		r.eval.ErrorMessage = jherrors.EvaluationTimeout().Error()
		metrics.EvaluationsTotal.WithLabelValues("timed_out").Inc()
		o.killPrimaryContainers(context.Background(), r)
	case err != nil:
		r.eval.Status = types.EvalFailed
		r.eval.ErrorMessage = err.Error()
		metrics.EvaluationsTotal.WithLabelValues("failed").Inc()
	default:
		r.eval.Status = types.EvalCompleted
		metrics.EvaluationsTotal.WithLabelValues("completed").Inc()
	}

	// Step 12: persist, regardless of outcome.
	if perr := o.persistResult(r); perr != nil {
		o.logger.Error().Err(perr).Str("evaluation_id", r.evaluationID).Msg("failed to persist result")
	}

	// Step 13: cleanup, best-effort.
	o.cleanup(context.Background(), r)

	if r.eval.Status == types.EvalCompleted {
		o.publish(events.EventResultEvaluationCompleted, r, "evaluation completed")
	} else {
		o.publish(events.EventResultEvaluationFailed, r, "evaluation failed: "+r.eval.ErrorMessage)
	}

	// Step 14: report, best-effort — never fails the job.
	if o.reporter != nil {
		if rerr := o.reporter.Report(context.Background(), r.eval); rerr != nil {
			o.logger.Warn().Err(rerr).Str("submission_id", job.SubmissionID).Msg("result reporting failed")
		}
	}

	return r.eval, nil
}

// runPipeline executes steps 1-11: everything that can fail the evaluation.
func (o *Orchestrator) runPipeline(ctx context.Context, r *run) error {
	record, err := o.registry.Get(r.job.ProblemID)
	if err != nil {
		return err
	}
	r.record = record

	if err := o.prepareSubmission(ctx, r); err != nil {
		return err
	}
	if err := o.createWorkspace(r); err != nil {
		return err
	}
	if err := o.ensureImages(ctx, r); err != nil {
		return err
	}

	r.multiContainer = len(record.Config.Containers) > 1
	if r.multiContainer {
		r.networkName = "judge-eval-" + r.evaluationID
		if _, err := o.rt.CreateNetwork(ctx, r.networkName, runtime.NetworkOptions{}); err != nil {
			return jherrors.RuntimeError("create network "+r.networkName, err)
		}
	}

	order, err := topoSort(record.Config.Containers)
	if err != nil {
		return err
	}
	r.order = order

	if err := o.createContainers(ctx, r); err != nil {
		return err
	}
	if err := o.startContainers(ctx, r); err != nil {
		return err
	}

	termDone := o.watchTerminations(ctx, r)
	hookErr := o.executeHooks(ctx, r)
	<-termDone

	if hookErr != nil {
		return hookErr
	}

	o.collectRubrics(r)
	o.aggregate(r)
	return nil
}

// prepareSubmission implements §4.4 step 1.
func (o *Orchestrator) prepareSubmission(ctx context.Context, r *run) error {
	req := r.job.Submission
	destDir := filepath.Join(o.cfg.SubmissionsDir, req.ProblemID, req.SubmissionID)

	switch req.Source {
	case types.SourceFile:
		r.submissionDir = req.PackagePath
		r.archiveMeta = archiveMetadata{Source: types.SourceFile, SubmittedAt: time.Now()}

	case types.SourceURL:
		data, err := o.fetcher.Fetch(ctx, req.ArchiveURL, req.Checksum)
		if err != nil {
			return err
		}
		if err := extractSubmission(data, destDir); err != nil {
			return err
		}
		r.submissionDir = destDir
		r.archiveMeta = archiveMetadata{Source: types.SourceURL, SizeBytes: len(data), SHA256: req.Checksum, SubmittedAt: time.Now()}

	case types.SourceGit:
		if err := cloneGit(ctx, req.GitURL, req.GitBranch, req.GitCommit, destDir); err != nil {
			return err
		}
		r.submissionDir = destDir
		r.archiveMeta = archiveMetadata{Source: types.SourceGit, SubmittedAt: time.Now()}

	default: // types.SourceData
		if err := extractSubmission(req.ArchiveData, destDir); err != nil {
			return err
		}
		r.submissionDir = destDir
		r.archiveMeta = archiveMetadata{Source: types.SourceData, SizeBytes: len(req.ArchiveData), SubmittedAt: time.Now()}
	}

	meta := map[string]any{
		"submission_id":       req.SubmissionID,
		"problem_id":          req.ProblemID,
		"team_id":             req.TeamID,
		"received_at":         r.archiveMeta.SubmittedAt,
		"archive_source":      r.archiveMeta.Source,
		"archive_size_bytes":  r.archiveMeta.SizeBytes,
		"sha256":              r.archiveMeta.SHA256,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return jherrors.Internal("marshaling submission metadata", err)
	}
	if err := os.MkdirAll(r.submissionDir, 0o755); err != nil {
		return jherrors.Internal("creating submission directory", err)
	}
	if err := os.WriteFile(filepath.Join(r.submissionDir, "metadata.json"), raw, 0o644); err != nil {
		return jherrors.Internal("writing submission metadata.json", err)
	}
	return nil
}

// createWorkspace implements §4.4 step 2.
func (o *Orchestrator) createWorkspace(r *run) error {
	r.evalDir = filepath.Join(o.cfg.ResultsDir, r.job.SubmissionID)
	dirs := []string{"output", "shared", "logs", "artifacts"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(r.evalDir, d), 0o755); err != nil {
			return jherrors.Internal("creating evaluation workspace directory "+d, err)
		}
	}
	for _, cs := range r.record.Config.Containers {
		for _, sub := range []string{"out", "logs"} {
			dir := filepath.Join(r.evalDir, "containers", cs.ContainerID, sub)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return jherrors.Internal("creating container workspace directory "+dir, err)
			}
		}
	}
	return nil
}

// ensureImages implements §4.4 step 3: verify every required tag still
// exists in the runtime, rebuilding through the Registry when it doesn't
// (an image tag may have been pruned from the container daemon between
// registration and evaluation).
func (o *Orchestrator) ensureImages(ctx context.Context, r *run) error {
	tags, err := o.registry.EnsureImages(ctx, r.record.ProblemID)
	if err != nil {
		return err
	}
	r.record.ImageTags = tags
	return nil
}

func (o *Orchestrator) publish(t events.EventType, r *run, message string) {
	if o.broker == nil {
		return
	}
	o.broker.Publish(&events.Event{
		Type:    t,
		Message: message,
		Metadata: map[string]string{
			"evaluation_id": r.evaluationID,
			"submission_id": r.job.SubmissionID,
			"problem_id":    r.job.ProblemID,
		},
	})
}

func (o *Orchestrator) persistResult(r *run) error {
	dir := filepath.Join(r.evalDir, "artifacts", r.evaluationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jherrors.Internal("creating artifacts directory", err)
	}
	raw, err := json.MarshalIndent(r.eval, "", "  ")
	if err != nil {
		return jherrors.Internal("marshaling result.json", err)
	}
	return os.WriteFile(filepath.Join(dir, "result.json"), raw, 0o644)
}

// resolveMounts wraps pkg/mounts.Resolve, recording each container's hooks
// directory (when one was found) so executeHooks can list hook scripts
// from the host side.
func (o *Orchestrator) resolveMounts(r *run, cs *types.ContainerSpec) ([]types.Mount, error) {
	submissionDir := ""
	if cs.AcceptsSubmission {
		submissionDir = r.submissionDir
	}
	ms, err := mounts.Resolve(r.evalDir, r.record.PackageDir, submissionDir, cs, r.multiContainer)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		if m.Target == "/hooks" {
			r.hooksDirs[cs.ContainerID] = m.Source
		}
	}
	return ms, nil
}

func fmtHookLogName(stage, name string) string {
	return fmt.Sprintf("hook_%s_%s.json", stage, name)
}
