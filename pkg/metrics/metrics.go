package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job Queue metrics (§4.3)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "judgehost_queue_depth",
			Help: "Current number of queued (not yet running) jobs",
		},
	)

	JobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "judgehost_jobs_running",
			Help: "Current number of running jobs",
		},
	)

	JobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "judgehost_jobs_enqueued_total",
			Help: "Total number of jobs accepted into the queue",
		},
	)

	JobsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "judgehost_jobs_completed_total",
			Help: "Total number of jobs that completed successfully",
		},
	)

	JobsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "judgehost_jobs_failed_total",
			Help: "Total number of jobs that failed",
		},
	)

	JobsCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "judgehost_jobs_cancelled_total",
			Help: "Total number of jobs cancelled",
		},
	)

	JobsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judgehost_jobs_rejected_total",
			Help: "Total number of enqueue attempts rejected, by reason",
		},
		[]string{"reason"},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judgehost_scheduling_latency_seconds",
			Help:    "Time a job spent queued before it started running",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Evaluation Orchestrator metrics (§4.4)
	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judgehost_evaluation_duration_seconds",
			Help:    "Time taken to run one evaluation end to end",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	BuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judgehost_image_build_duration_seconds",
			Help:    "Time taken to build one container image",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	ContainerCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judgehost_container_create_duration_seconds",
			Help:    "Time taken to create a container in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainerStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judgehost_container_start_duration_seconds",
			Help:    "Time taken to start a container in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "judgehost_containers_failed_total",
			Help: "Total number of containers that failed to create or start",
		},
	)

	// ReconciliationDuration/ReconciliationCyclesTotal are registered for the
	// termination monitor (§4.4 step 9), but nothing observes them: the
	// monitor blocks on WaitContainer and has no polling cycle.
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judgehost_termination_watch_cycle_duration_seconds",
			Help:    "Time taken for one termination-monitor polling cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "judgehost_termination_watch_cycles_total",
			Help: "Total number of termination-monitor polling cycles completed",
		},
	)

	HookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judgehost_hook_duration_seconds",
			Help:    "Time taken to exec one lifecycle hook",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	RubricScores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judgehost_rubric_score_percentage",
			Help:    "Percentage score distribution across collected rubrics",
			Buckets: []float64{0, 10, 25, 50, 75, 90, 100},
		},
		[]string{"rubric_id"},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judgehost_evaluations_total",
			Help: "Total number of evaluations by terminal status",
		},
		[]string{"status"},
	)

	// Problem Registry metrics (§4.1)
	ProblemsRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "judgehost_problems_registered_total",
			Help: "Total number of problem packages successfully ingested",
		},
	)

	ProblemIngestFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "judgehost_problem_ingest_failed_total",
			Help: "Total number of problem package ingest failures",
		},
	)

	// Result Reporter metrics (§4.6)
	ReportsPostedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judgehost_reports_posted_total",
			Help: "Total number of result reports posted to DOMserver, by outcome",
		},
		[]string{"outcome"},
	)

	ReportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judgehost_report_duration_seconds",
			Help:    "Time taken to POST one result report",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(JobsRunning)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobsCancelledTotal)
	prometheus.MustRegister(JobsRejectedTotal)
	prometheus.MustRegister(SchedulingLatency)

	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(BuildDuration)
	prometheus.MustRegister(ContainerCreateDuration)
	prometheus.MustRegister(ContainerStartDuration)
	prometheus.MustRegister(ContainersFailed)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(HookDuration)
	prometheus.MustRegister(RubricScores)
	prometheus.MustRegister(EvaluationsTotal)

	prometheus.MustRegister(ProblemsRegisteredTotal)
	prometheus.MustRegister(ProblemIngestFailedTotal)

	prometheus.MustRegister(ReportsPostedTotal)
	prometheus.MustRegister(ReportDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
