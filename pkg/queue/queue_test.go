package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/types"
)

func testConfig() Config {
	return Config{
		MaxSize:          10,
		MaxWorkers:       2,
		RateLimitEnabled: false,
		AutoProcess:      true,
	}
}

func submission(id, problem, team string) types.SubmissionRequest {
	return types.SubmissionRequest{SubmissionID: id, ProblemID: problem, TeamID: team}
}

func TestEnqueue_StartsJobsUpToMaxWorkers(t *testing.T) {
	q := New(testConfig(), nil)

	j1, err := q.Enqueue(submission("s1", "p1", "t1"), 5)
	require.NoError(t, err)
	j2, err := q.Enqueue(submission("s2", "p1", "t1"), 5)
	require.NoError(t, err)
	j3, err := q.Enqueue(submission("s3", "p1", "t1"), 5)
	require.NoError(t, err)

	assert.Equal(t, types.JobRunning, mustGet(t, q, j1.JobID).State)
	assert.Equal(t, types.JobRunning, mustGet(t, q, j2.JobID).State)
	assert.Equal(t, types.JobQueued, mustGet(t, q, j3.JobID).State)
}

func TestEnqueue_HigherPriorityRunsFirst(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWorkers = 1
	q := New(cfg, nil)

	low, err := q.Enqueue(submission("low", "p1", "t1"), 1)
	require.NoError(t, err)
	high, err := q.Enqueue(submission("high", "p1", "t1"), 9)
	require.NoError(t, err)

	assert.Equal(t, types.JobRunning, mustGet(t, q, low.JobID).State, "first enqueue grabs the only worker slot")
	assert.Equal(t, types.JobQueued, mustGet(t, q, high.JobID).State)

	require.NoError(t, q.Complete(low.JobID, nil))
	assert.Equal(t, types.JobRunning, mustGet(t, q, high.JobID).State, "higher priority job should start next")
}

func TestEnqueue_PriorityClamped(t *testing.T) {
	q := New(testConfig(), nil)

	j, err := q.Enqueue(submission("s1", "p1", "t1"), 99)
	require.NoError(t, err)
	assert.Equal(t, maxPriority, j.Priority)

	j2, err := q.Enqueue(submission("s2", "p1", "t1"), -5)
	require.NoError(t, err)
	assert.Equal(t, minPriority, j2.Priority)
}

func TestEnqueue_FullQueueFails(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSize = 1
	cfg.MaxWorkers = 1
	q := New(cfg, nil)

	_, err := q.Enqueue(submission("s1", "p1", "t1"), 5)
	require.NoError(t, err)

	_, err = q.Enqueue(submission("s2", "p1", "t1"), 5)
	require.Error(t, err)
	assert.True(t, jherrors.Is(err, jherrors.CodeQueueFull))
}

func TestEnqueue_RateLimitPerTeam(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSize = 100
	cfg.MaxWorkers = 100
	cfg.RateLimitEnabled = true
	cfg.RateLimitPerTeam = 2
	q := New(cfg, nil)

	_, err := q.Enqueue(submission("s1", "p1", "team-a"), 5)
	require.NoError(t, err)
	_, err = q.Enqueue(submission("s2", "p1", "team-a"), 5)
	require.NoError(t, err)

	_, err = q.Enqueue(submission("s3", "p1", "team-a"), 5)
	require.Error(t, err)
	assert.True(t, jherrors.Is(err, jherrors.CodeRateLimited))

	// Different team is unaffected.
	_, err = q.Enqueue(submission("s4", "p1", "team-b"), 5)
	require.NoError(t, err)
}

func TestCancel_QueuedJobRemovesFromOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWorkers = 1
	q := New(cfg, nil)

	running, err := q.Enqueue(submission("r1", "p1", "t1"), 5)
	require.NoError(t, err)
	queued, err := q.Enqueue(submission("q1", "p1", "t1"), 5)
	require.NoError(t, err)

	assert.Equal(t, types.JobRunning, mustGet(t, q, running.JobID).State)
	require.NoError(t, q.Cancel(queued.JobID))
	assert.Equal(t, types.JobCancelled, mustGet(t, q, queued.JobID).State)
	assert.Equal(t, 0, q.Depth())
}

func TestCancel_RunningJobFreesWorker(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWorkers = 1
	q := New(cfg, nil)

	running, err := q.Enqueue(submission("r1", "p1", "t1"), 5)
	require.NoError(t, err)
	queued, err := q.Enqueue(submission("q1", "p1", "t1"), 5)
	require.NoError(t, err)

	require.NoError(t, q.Cancel(running.JobID))
	assert.Equal(t, types.JobRunning, mustGet(t, q, queued.JobID).State, "cancelling a running job should free a slot")
}

func TestCancel_TerminalJobFails(t *testing.T) {
	q := New(testConfig(), nil)

	job, err := q.Enqueue(submission("s1", "p1", "t1"), 5)
	require.NoError(t, err)
	require.NoError(t, q.Complete(job.JobID, nil))

	err = q.Cancel(job.JobID)
	require.Error(t, err)
	assert.True(t, jherrors.Is(err, jherrors.CodeInvalidInput))
}

func TestPosition_ReflectsPriorityOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWorkers = 0 // nobody runs, everyone stays queued
	q := New(cfg, nil)

	a, err := q.Enqueue(submission("a", "p1", "t1"), 5)
	require.NoError(t, err)
	b, err := q.Enqueue(submission("b", "p1", "t1"), 9)
	require.NoError(t, err)
	c, err := q.Enqueue(submission("c", "p1", "t1"), 5)
	require.NoError(t, err)

	posB, err := q.Position(b.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, posB, "higher priority job should be first")

	posA, err := q.Position(a.JobID)
	require.NoError(t, err)
	posC, err := q.Position(c.JobID)
	require.NoError(t, err)
	assert.Less(t, posA, posC, "equal priority jobs keep FIFO order")
}

func TestEstimateWait_ScalesWithWorkersAndPosition(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWorkers = 0
	q := New(cfg, nil)

	job, err := q.Enqueue(submission("a", "p1", "t1"), 5)
	require.NoError(t, err)

	wait, err := q.EstimateWait(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(avgJobSeconds*float64(time.Second)), wait, "position 1 with an effective single worker should estimate one avg job duration")
}

func TestFinish_UnknownJobFails(t *testing.T) {
	q := New(testConfig(), nil)
	err := q.Complete("does-not-exist", nil)
	assert.True(t, jherrors.Is(err, jherrors.CodeNotFound))
}

func TestList_FiltersByState(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWorkers = 1
	q := New(cfg, nil)

	running, err := q.Enqueue(submission("r1", "p1", "t1"), 5)
	require.NoError(t, err)
	_, err = q.Enqueue(submission("q1", "p1", "t1"), 5)
	require.NoError(t, err)

	runningState := types.JobRunning
	running2 := q.List(&runningState)
	require.Len(t, running2, 1)
	assert.Equal(t, running.JobID, running2[0].JobID)

	assert.Len(t, q.List(nil), 2)
}

func mustGet(t *testing.T, q *Queue, jobID string) *types.Job {
	t.Helper()
	job, err := q.Get(jobID)
	require.NoError(t, err)
	return job
}
