/*
Package types defines the core data structures shared across the judge
host: problem configuration, queued jobs, running evaluations, and
collected rubric results.

# Architecture

The types package is the foundation of the judge host's data model. It
defines:

  - Problem configuration (containers, dependencies, rubrics)
  - Job lifecycle state (queued, running, completed, failed, cancelled)
  - Evaluation state (per-container status, collected rubric results)
  - Health check configuration used by dependency waits
  - Mount and image-cache primitives used by the orchestrator

All types are designed to be:
  - Serializable (JSON, and YAML for on-disk problem configs)
  - Self-documenting (clear field names and comments)
  - Validated by pkg/schema before being trusted by any other package

# Core Types

Problem Definition:
  - ProblemConfig: the parsed config.json for a problem package
  - ContainerSpec: one container definition, with DependsOn edges
  - RubricSpec: one scoring dimension and its max score
  - ProblemRecord: the Registry's durable entry for a registered problem

Job Queue:
  - Job: one queued unit of evaluation work
  - JobState: queued, running, completed, failed, cancelled
  - SubmissionRequest: the validated inbound submission payload

Evaluation:
  - Evaluation: the in-progress, then terminal, run of one Job
  - EvalContainer: per-container lifecycle state within an Evaluation
  - RubricResult: the collected, normalized outcome of one RubricSpec

# Usage

Defining a problem's containers:

	cfg := &types.ProblemConfig{
		ProblemID: "binary-search-tree",
		Version:   "1",
		Containers: []*types.ContainerSpec{
			{
				ContainerID: "db",
				BuildStage:  false,
				EvalStage:   true,
				HealthCheck: &types.HealthCheck{
					Type:     types.HealthCheckTCP,
					Endpoint: ":5432",
					Interval: 2 * time.Second,
					Retries:  10,
				},
			},
			{
				ContainerID:       "app",
				EvalStage:         true,
				AcceptsSubmission: true,
				DependsOn: []*types.DependsOn{
					{ContainerID: "db", Condition: types.WaitHealthy, Timeout: 30},
				},
			},
		},
		Rubrics: []*types.RubricSpec{
			{RubricID: "unit-tests", ContainerID: "app", RubricType: types.RubricTestCases, MaxScore: 100},
		},
	}

Enqueuing a submission as a Job:

	job := &types.Job{
		JobID:        uuid.New().String(),
		SubmissionID: req.SubmissionID,
		ProblemID:    req.ProblemID,
		TeamID:       req.TeamID,
		Priority:     5,
		State:        types.JobQueued,
		Submission:   req,
		EnqueuedAt:   time.Now(),
	}

# Job State Machine

Jobs follow a single forward progression, with failure and cancellation
reachable from every in-flight state:

	Queued → Running → Completed
	   ↓        ↓
	Cancelled Failed

Valid state transitions:
  - Queued → Running (worker pool dispatches the job)
  - Running → Completed (orchestrator finished and reported a result)
  - Running → Failed (an unrecoverable error occurred mid-evaluation)
  - Queued → Cancelled (caller cancelled before dispatch)
  - Running → Cancelled (caller cancelled mid-evaluation)

There is no retry transition: a failed or cancelled Job is terminal and
must be resubmitted as a new Job by its caller.

# Design Patterns

Enumeration Pattern:

	All enums use typed string constants:
	  type JobState string
	  const (
	      JobQueued  JobState = "queued"
	      JobRunning JobState = "running"
	  )

Optional Fields:

	Optional configuration uses pointers:
	  - *HealthCheck: nil = no health probe, dependents wait on "started" only
	  - *HooksConfig: nil = use package defaults
	  - *ResourceLimits: nil = only the host-wide caps apply (none if unset)

# Integration Points

This package is imported by every other package:

  - pkg/registry: persists ProblemConfig/ProblemRecord via pkg/storage
  - pkg/queue: orders and dispatches Job values
  - pkg/orchestrator: drives ContainerSpec through the runtime, produces Evaluation
  - pkg/health: performs checks per HealthCheck
  - pkg/mounts: resolves Mount values from ContainerSpec
  - pkg/reporter: posts Evaluation results to the configured scoreboard endpoint
  - pkg/imagecache: keys ImageCacheEntry by (ProblemID, ContainerID, Stage)

# Thread Safety

All types in this package are plain data: read-safe for concurrent
readers, but mutations must be synchronized by callers. pkg/queue and
pkg/orchestrator hold their own locks around the Job and Evaluation
values they own.
*/
package types
