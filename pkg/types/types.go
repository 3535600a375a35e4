package types

import "time"

// ProblemConfig is the parsed, validated config.json at the root of a
// problem package.
type ProblemConfig struct {
	ProblemID   string           `json:"problem_id" yaml:"problem_id"`
	Version     string           `json:"version" yaml:"version"`
	Containers  []*ContainerSpec `json:"containers" yaml:"containers"`
	Rubrics     []*RubricSpec    `json:"rubrics" yaml:"rubrics"`
	HooksConfig *HooksConfig     `json:"hooks_config,omitempty" yaml:"hooks_config,omitempty"`
	Resources   *ResourceLimits  `json:"resource_limits,omitempty" yaml:"resource_limits,omitempty"`
}

// HooksConfig controls default hook execution behavior for a problem.
type HooksConfig struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// WaitCondition is the condition a dependency must satisfy before a
// dependent container is allowed to start.
type WaitCondition string

const (
	WaitStarted   WaitCondition = "started"
	WaitHealthy   WaitCondition = "healthy"
	WaitCompleted WaitCondition = "completed"
)

// DependsOn declares a dependency edge from one container onto another
// container in the same ProblemConfig.
type DependsOn struct {
	ContainerID string        `json:"container_id" yaml:"container_id"`
	Condition   WaitCondition `json:"condition" yaml:"condition"`
	Timeout     int           `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds
}

// ContainerSpec is one container definition inside a ProblemConfig.
type ContainerSpec struct {
	ContainerID       string          `json:"container_id" yaml:"container_id"`
	BuildStage        bool            `json:"build_stage,omitempty" yaml:"build_stage,omitempty"`
	EvalStage         bool            `json:"eval_stage" yaml:"eval_stage"`
	AcceptsSubmission bool            `json:"accepts_submission,omitempty" yaml:"accepts_submission,omitempty"`
	DependsOn         []*DependsOn    `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	HealthCheck       *HealthCheck    `json:"health_check,omitempty" yaml:"health_check,omitempty"`
	Port              int             `json:"port,omitempty" yaml:"port,omitempty"`
	MountSubmissionAt string          `json:"mount_submission_at,omitempty" yaml:"mount_submission_at,omitempty"`
	DockerfilePath    string          `json:"dockerfile_path,omitempty" yaml:"dockerfile_path,omitempty"`
	TerminateOnFinish []string        `json:"terminate_on_finish,omitempty" yaml:"terminate_on_finish,omitempty"`
	Resources         *ResourceLimits `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// ResourceLimits are per-container resource caps (§6 of the config schema).
type ResourceLimits struct {
	Memory string  `json:"memory,omitempty" yaml:"memory,omitempty"` // e.g. "512m"
	CPUs   float64 `json:"cpus,omitempty" yaml:"cpus,omitempty"`     // cores
}

// RubricType enumerates the kind of scoring dimension a rubric measures.
type RubricType string

const (
	RubricTestCases            RubricType = "test_cases"
	RubricPerformanceBenchmark RubricType = "performance_benchmark"
	RubricCodeQuality          RubricType = "code_quality"
	RubricSecurityScan         RubricType = "security_scan"
	RubricAPIEndpoints         RubricType = "api_endpoints"
	RubricDatabaseIntegrity    RubricType = "database_integrity"
	RubricUITests              RubricType = "ui_tests"
	RubricCustom               RubricType = "custom"
)

// RubricSpec declares one scoring dimension for a problem.
type RubricSpec struct {
	RubricID    string     `json:"rubric_id" yaml:"rubric_id"`
	ContainerID string     `json:"container_id" yaml:"container_id"`
	RubricType  RubricType `json:"rubric_type" yaml:"rubric_type"`
	MaxScore    float64    `json:"max_score" yaml:"max_score"`
	OutputFile  string     `json:"output_file,omitempty" yaml:"output_file,omitempty"`
}

// DefaultOutputFile returns the conventional rubric output filename when
// OutputFile was left unset in the config.
func (r *RubricSpec) DefaultOutputFile() string {
	if r.OutputFile != "" {
		return r.OutputFile
	}
	return "rubric_" + r.RubricID + ".json"
}

// HealthCheckType is the kind of health probe attached to a container.
type HealthCheckType string

const (
	HealthCheckHTTP HealthCheckType = "http"
	HealthCheckTCP  HealthCheckType = "tcp"
	HealthCheckExec HealthCheckType = "exec"
)

// HealthCheck defines a container health probe.
type HealthCheck struct {
	Type     HealthCheckType `json:"type" yaml:"type"`
	Endpoint string          `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Command  []string        `json:"command,omitempty" yaml:"command,omitempty"`
	Interval time.Duration   `json:"interval,omitempty" yaml:"interval,omitempty"`
	Timeout  time.Duration   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries  int             `json:"retries,omitempty" yaml:"retries,omitempty"`
}

// ProblemRecord is the Registry's durable entry for one registered problem.
type ProblemRecord struct {
	ProblemID    string            `json:"problem_id"`
	Config       *ProblemConfig    `json:"config"`
	PackageDir   string            `json:"package_dir"`
	ImageTags    map[string]string `json:"image_tags"` // "<container_id>:<stage>" -> image tag
	RegisteredAt time.Time         `json:"registered_at"`
}

// JobState is the lifecycle state of a queued submission.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// PackageSource enumerates how a submission's code was delivered.
type PackageSource string

const (
	SourceData PackageSource = "data"
	SourceURL  PackageSource = "url"
	SourceGit  PackageSource = "git"
	SourceFile PackageSource = "file"
)

// SubmissionRequest is the validated inbound submission payload carried by
// a Job from the Event Router to the Orchestrator.
type SubmissionRequest struct {
	SubmissionID string
	ProblemID    string
	TeamID       string
	UserID       string
	Source       PackageSource
	ArchiveURL   string
	ArchiveData  []byte
	Checksum     string
	PackagePath  string
	GitURL       string
	GitBranch    string
	GitCommit    string
	RunOptions   map[string]any
}

// Job is one queued unit of evaluation work.
type Job struct {
	JobID        string             `json:"job_id"`
	SubmissionID string             `json:"submission_id"`
	ProblemID    string             `json:"problem_id"`
	TeamID       string             `json:"team_id"`
	Priority     int                `json:"priority"`
	State        JobState           `json:"state"`
	Submission   *SubmissionRequest `json:"submission,omitempty"`
	EnqueuedAt   time.Time          `json:"enqueued_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	Result       *Evaluation        `json:"result,omitempty"`
	Error        string             `json:"error,omitempty"`

	seq int64 // monotonic enqueue sequence; breaks priority ties FIFO
}

// Seq returns the monotonic enqueue sequence number assigned by the queue.
func (j *Job) Seq() int64 { return j.seq }

// SetSeq assigns the monotonic enqueue sequence number. Called exactly once,
// by the queue, at enqueue time.
func (j *Job) SetSeq(seq int64) { j.seq = seq }

// EvaluationStatus is the overall terminal outcome of one evaluation.
type EvaluationStatus string

const (
	EvalCompleted EvaluationStatus = "completed"
	EvalFailed    EvaluationStatus = "failed"
	EvalCancelled EvaluationStatus = "cancelled"
)

// ContainerState is the lifecycle state of one evaluation container.
type ContainerState string

const (
	ContainerStatePending  ContainerState = "pending"
	ContainerStateRunning  ContainerState = "running"
	ContainerStateComplete ContainerState = "complete"
	ContainerStateFailed   ContainerState = "failed"
	ContainerStateShutdown ContainerState = "shutdown"
)

// EvalContainer tracks one container within a running Evaluation.
type EvalContainer struct {
	ContainerID  string         `json:"container_id"` // container_id from the ProblemConfig
	RuntimeID    string         `json:"runtime_id"`    // container ID assigned by the runtime
	Status       ContainerState `json:"status"`
	ArtifactsDir string         `json:"artifacts_dir"`
	ExitCode     int            `json:"exit_code"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at,omitempty"`
	FinishedAt   time.Time      `json:"finished_at,omitempty"`
}

// RubricStatus is the normalized outcome of collecting one rubric result.
type RubricStatus string

const (
	RubricPassed   RubricStatus = "passed"
	RubricPartial  RubricStatus = "partial"
	RubricFailed   RubricStatus = "failed"
	RubricError    RubricStatus = "error"
	RubricNotFound RubricStatus = "not_found"
)

// RubricResult is the collected, normalized outcome of one RubricSpec.
type RubricResult struct {
	RubricID string       `json:"rubric_id"`
	Score    float64      `json:"score"`
	MaxScore float64      `json:"max_score"`
	Status   RubricStatus `json:"status"`
	Details  any          `json:"details,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// Percentage returns 100*score/max_score, or 0 when max_score is 0.
func (r *RubricResult) Percentage() float64 {
	if r.MaxScore == 0 {
		return 0
	}
	return 100 * r.Score / r.MaxScore
}

// Evaluation is the in-progress, then terminal, run of one Job.
type Evaluation struct {
	EvaluationID string                    `json:"evaluation_id"`
	SubmissionID string                    `json:"submission_id"`
	ProblemID    string                    `json:"problem_id"`
	Containers   map[string]*EvalContainer `json:"containers"`
	Rubrics      map[string]*RubricResult  `json:"rubrics"`
	TotalScore   float64                   `json:"total_score"`
	MaxScore     float64                   `json:"max_score"`
	Percentage   float64                   `json:"percentage"`
	Status       EvaluationStatus          `json:"status"`
	TimedOut     bool                      `json:"timed_out"`
	ErrorMessage string                    `json:"error_message,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	CompletedAt  time.Time                 `json:"completed_at,omitempty"`
}

// Mount describes one bind mount applied to an evaluation container, as
// resolved by the Mount Layout Contract.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ImageCacheEntry tracks one built image, keyed by (problem_id, container_id,
// stage), so repeated evaluations of the same problem reuse the image.
type ImageCacheEntry struct {
	ProblemID   string    `json:"problem_id"`
	ContainerID string    `json:"container_id"`
	Stage       string    `json:"stage"` // "build" or "eval"
	ImageTag    string    `json:"image_tag"`
	BuiltAt     time.Time `json:"built_at"`
}
