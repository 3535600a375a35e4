// Package queue implements the Job Queue (§4.3): a bounded, priority
// ordered queue of evaluation jobs with a worker-count gate and a per-team
// sliding-window rate limit.
package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/judgehost/pkg/events"
	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/metrics"
	"github.com/cuemby/judgehost/pkg/types"
)

const (
	minPriority = 1
	maxPriority = 10

	// avgJobSeconds is the fixed estimate used by EstimateWait until a
	// moving average replaces it (§4.3).
	avgJobSeconds = 300.0

	rateLimitWindow = 60 * time.Second
)

// Config configures a Queue.
type Config struct {
	MaxSize          int
	MaxWorkers       int
	RateLimitEnabled bool
	RateLimitPerTeam int
	AutoProcess      bool // disable for deterministic tests
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:          1000,
		MaxWorkers:       4,
		RateLimitEnabled: true,
		RateLimitPerTeam: 10,
		AutoProcess:      true,
	}
}

// Queue is a bounded, priority-ordered, rate-limited job queue.
type Queue struct {
	mu sync.Mutex

	cfg    Config
	broker *events.Broker
	logger zerolog.Logger

	pending     jobHeap
	running     map[string]*types.Job
	all         map[string]*types.Job
	seq         int64
	teamWindows map[string][]time.Time
}

// New constructs a Queue. broker may be nil, in which case no events are
// published (useful for unit tests that only assert state transitions).
func New(cfg Config, broker *events.Broker) *Queue {
	return &Queue{
		cfg:         cfg,
		broker:      broker,
		logger:      log.WithComponent("queue"),
		running:     make(map[string]*types.Job),
		all:         make(map[string]*types.Job),
		teamWindows: make(map[string][]time.Time),
	}
}

// Enqueue validates, rate-limits, and admits a submission into the queue,
// then attempts to schedule (§4.3).
func (q *Queue) Enqueue(req types.SubmissionRequest, priority int) (*types.Job, error) {
	if req.SubmissionID == "" || req.ProblemID == "" {
		metrics.JobsRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, jherrors.InvalidInput("submission_id|problem_id", "both are required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cfg.RateLimitEnabled && q.cfg.RateLimitPerTeam > 0 && req.TeamID != "" {
		if q.isRateLimitedLocked(req.TeamID) {
			metrics.JobsRejectedTotal.WithLabelValues("rate_limited").Inc()
			return nil, jherrors.RateLimited(req.TeamID, q.cfg.RateLimitPerTeam)
		}
	}

	if q.cfg.MaxSize > 0 && len(q.pending)+len(q.running) >= q.cfg.MaxSize {
		metrics.JobsRejectedTotal.WithLabelValues("full").Inc()
		return nil, jherrors.QueueFull(q.cfg.MaxSize)
	}

	job := &types.Job{
		JobID:        uuid.New().String(),
		SubmissionID: req.SubmissionID,
		ProblemID:    req.ProblemID,
		TeamID:       req.TeamID,
		Priority:     clampPriority(priority),
		State:        types.JobQueued,
		Submission:   &req,
		EnqueuedAt:   time.Now(),
	}
	job.SetSeq(q.nextSeq())

	heap.Push(&q.pending, job)
	q.all[job.JobID] = job

	if q.cfg.RateLimitEnabled && req.TeamID != "" {
		q.teamWindows[req.TeamID] = append(q.teamWindows[req.TeamID], job.EnqueuedAt)
	}

	metrics.JobsEnqueuedTotal.Inc()
	metrics.QueueDepth.Set(float64(len(q.pending)))
	q.publish(events.EventJobQueued, job, "job queued")

	if q.cfg.AutoProcess {
		q.scheduleLocked()
	}

	return job, nil
}

// Complete marks a running job completed and frees its worker slot.
func (q *Queue) Complete(jobID string, result *types.Evaluation) error {
	return q.finish(jobID, types.JobCompleted, result, "")
}

// Fail marks a running job failed and frees its worker slot.
func (q *Queue) Fail(jobID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return q.finish(jobID, types.JobFailed, nil, msg)
}

func (q *Queue) finish(jobID string, state types.JobState, result *types.Evaluation, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.running[jobID]
	if !ok {
		return jherrors.NotFound("job", jobID)
	}

	delete(q.running, jobID)
	now := time.Now()
	job.State = state
	job.CompletedAt = &now
	job.Result = result
	job.Error = errMsg

	switch state {
	case types.JobCompleted:
		metrics.JobsCompletedTotal.Inc()
		q.publish(events.EventJobCompleted, job, "job completed")
	case types.JobFailed:
		metrics.JobsFailedTotal.Inc()
		q.publish(events.EventJobFailed, job, "job failed: "+errMsg)
	}

	metrics.JobsRunning.Set(float64(len(q.running)))

	if q.cfg.AutoProcess {
		q.scheduleLocked()
	}
	return nil
}

// Cancel removes a queued job from the order, or frees a running job's
// worker slot. Cancelling a terminal job fails.
func (q *Queue) Cancel(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.all[jobID]
	if !ok {
		return jherrors.NotFound("job", jobID)
	}

	switch job.State {
	case types.JobQueued:
		if idx := q.pending.indexOf(jobID); idx >= 0 {
			heap.Remove(&q.pending, idx)
		}
	case types.JobRunning:
		delete(q.running, jobID)
	default:
		return jherrors.InvalidInput("job_id", "job is already in a terminal state")
	}

	now := time.Now()
	job.State = types.JobCancelled
	job.CompletedAt = &now

	metrics.JobsCancelledTotal.Inc()
	metrics.QueueDepth.Set(float64(len(q.pending)))
	metrics.JobsRunning.Set(float64(len(q.running)))
	q.publish(events.EventJobCancelled, job, "job cancelled")

	if q.cfg.AutoProcess {
		q.scheduleLocked()
	}
	return nil
}

// Get returns the current state of one job.
func (q *Queue) Get(jobID string) (*types.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.all[jobID]
	if !ok {
		return nil, jherrors.NotFound("job", jobID)
	}
	return job, nil
}

// List returns all known jobs, optionally filtered to one state.
func (q *Queue) List(state *types.JobState) []*types.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]*types.Job, 0, len(q.all))
	for _, job := range q.all {
		if state == nil || job.State == *state {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Position returns the 1-based position of a queued job in scheduling
// order (0 for jobs not currently queued).
func (q *Queue) Position(jobID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.all[jobID]
	if !ok {
		return 0, jherrors.NotFound("job", jobID)
	}
	if job.State != types.JobQueued {
		return 0, nil
	}

	ordered := sortedCopy(append(jobHeap(nil), q.pending...))
	for i, j := range ordered {
		if j.JobID == jobID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// EstimateWait estimates time until a queued job starts: position *
// avg_job_seconds / maxWorkers (§4.3).
func (q *Queue) EstimateWait(jobID string) (time.Duration, error) {
	pos, err := q.Position(jobID)
	if err != nil {
		return 0, err
	}
	if pos == 0 {
		return 0, nil
	}
	workers := q.cfg.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	seconds := float64(pos) * avgJobSeconds / float64(workers)
	return time.Duration(seconds * float64(time.Second)), nil
}

// Depth returns the number of queued (not running) jobs.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// RunningCount returns the number of currently running jobs.
func (q *Queue) RunningCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running)
}

// Process triggers one scheduling attempt. Only needed when AutoProcess is
// disabled (tests, or a host-level ticker driving scheduling explicitly).
func (q *Queue) Process() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduleLocked()
}

// scheduleLocked starts as many queued jobs as capacity allows, in
// priority/FIFO order. Caller must hold q.mu.
func (q *Queue) scheduleLocked() {
	timer := metrics.NewTimer()
	for len(q.pending) > 0 && len(q.running) < q.cfg.MaxWorkers {
		job := heap.Pop(&q.pending).(*types.Job)
		now := time.Now()
		job.State = types.JobRunning
		job.StartedAt = &now
		q.running[job.JobID] = job

		timer.ObserveDuration(metrics.SchedulingLatency)
		q.publish(events.EventJobStarted, job, "job started")
	}
	metrics.QueueDepth.Set(float64(len(q.pending)))
	metrics.JobsRunning.Set(float64(len(q.running)))
}

func (q *Queue) isRateLimitedLocked(teamID string) bool {
	cutoff := time.Now().Add(-rateLimitWindow)
	window := q.teamWindows[teamID]

	pruned := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	q.teamWindows[teamID] = pruned

	return len(pruned) >= q.cfg.RateLimitPerTeam
}

func (q *Queue) nextSeq() int64 {
	q.seq++
	return q.seq
}

func (q *Queue) publish(t events.EventType, job *types.Job, message string) {
	if q.broker == nil {
		return
	}
	q.broker.Publish(&events.Event{
		Type:    t,
		Message: message,
		Metadata: map[string]string{
			"job_id":        job.JobID,
			"submission_id": job.SubmissionID,
			"problem_id":    job.ProblemID,
			"team_id":       job.TeamID,
		},
	})
}

func clampPriority(p int) int {
	if p < minPriority {
		return minPriority
	}
	if p > maxPriority {
		return maxPriority
	}
	return p
}
