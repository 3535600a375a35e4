/*
Package queue implements the Job Queue (§4.3): a bounded, priority-ordered
queue of evaluation jobs with a worker-count gate and a per-team sliding
60-second-window rate limit.

# Architecture

	┌──────────────────── JOB QUEUE ────────────────────────────┐
	│                                                             │
	│  Enqueue(submission, priority)                              │
	│       │                                                    │
	│       ▼                                                    │
	│  Rate limit check (per team_id, 60s sliding window)        │
	│       │ limited → RateLimited error                        │
	│       ▼                                                    │
	│  Capacity check (len(pending)+len(running) < maxSize)      │
	│       │ full → QueueFull error                              │
	│       ▼                                                    │
	│  Priority heap push (priority desc, seq asc — FIFO ties)   │
	│       │                                                    │
	│       ▼                                                    │
	│  scheduleLocked(): while running < maxWorkers, pop+start    │
	│       │                                                    │
	│       ▼                                                    │
	│  events.Broker: queued / started / completed / failed /    │
	│                 cancelled                                  │
	└─────────────────────────────────────────────────────────┘

# Concurrency Model

All queue operations — enqueue, complete, fail, cancel, and the scheduling
attempt that follows each of them — run under a single mutex, matching the
teacher's scheduler's single critical-section idiom. Worker bodies (the
Orchestrator, run by the caller) execute concurrently outside the lock;
their only interaction with the queue is a single Complete/Fail call at the
end of a run.

# Priority Ordering

A job's priority is clamped to [1,10] before ordering (10 = most urgent).
Within equal priority, jobs run in enqueue order via a monotonic sequence
number (types.Job.Seq), assigned once at Enqueue and never reused.

# Rate Limiting

Per-team sliding window: on each enqueue attempt, timestamps older than 60s
are pruned from that team's window, then the remaining count is compared
against RateLimitPerTeam. Disabled entirely when RateLimitEnabled is false
or a submission carries no team_id.

# Wait-Time Estimation

EstimateWait returns position * avg_job_seconds / maxWorkers, where
avg_job_seconds is a fixed constant (300s) pending a moving-average
replacement (§4.3 Open Question, resolved in SPEC_FULL.md as "keep fixed
until real throughput data justifies a window").

# Usage

	q := queue.New(queue.DefaultConfig(), broker)

	job, err := q.Enqueue(types.SubmissionRequest{
		SubmissionID: "sub-1", ProblemID: "bst", TeamID: "team-a",
	}, 5)

	// ... Orchestrator runs job.JobID, then reports back ...
	q.Complete(job.JobID, evaluation)

# Integration Points

  - pkg/router: SubmissionHandler dispatches resolved submission events here
  - pkg/host: runs the Orchestrator for each started job, then calls Complete/Fail
  - pkg/events: queued/started/completed/failed/cancelled event production
  - pkg/metrics: queue depth, running count, scheduling latency, rejection reasons
*/
package queue
