/*
Package metrics provides Prometheus metrics collection and exposition for
the judge host.

It defines and registers every judge host metric using the Prometheus
client library, giving observability into queue depth, scheduling latency,
evaluation throughput, rubric score distribution, image build time, and
result reporting outcomes. Metrics are exposed via an HTTP endpoint for
scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Job Queue: depth, enqueued/completed/failed│          │
	│  │  Orchestrator: build/start/hook duration,   │          │
	│  │    rubric scores, evaluation outcomes        │          │
	│  │  Registry: problems registered/failed        │          │
	│  │  Reporter: reports posted/outcome            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Job Queue (§4.3):

judgehost_queue_depth: Gauge. Current number of queued (not running) jobs.
judgehost_jobs_running: Gauge. Current number of running jobs.
judgehost_jobs_enqueued_total: Counter. Jobs accepted into the queue.
judgehost_jobs_completed_total / _failed_total / _cancelled_total: Counter.
judgehost_jobs_rejected_total{reason}: Counter. Enqueue rejections by reason
  (full, rate_limited, invalid).
judgehost_scheduling_latency_seconds: Histogram. Time queued before running.

Evaluation Orchestrator (§4.4):

judgehost_evaluation_duration_seconds: Histogram. End-to-end evaluation time.
judgehost_image_build_duration_seconds: Histogram. Per-image build time.
judgehost_container_create_duration_seconds / _start_duration_seconds: Histogram.
judgehost_containers_failed_total: Counter.
judgehost_hook_duration_seconds{stage}: Histogram, stage=pre|post.
judgehost_rubric_score_percentage{rubric_id}: Histogram of collected scores.
judgehost_evaluations_total{status}: Counter, status=completed|failed|timed_out.
judgehost_termination_watch_cycle_duration_seconds /
  _cycles_total: registered but never observed; the termination monitor
  (step 9) blocks on WaitContainer instead of polling.

Problem Registry (§4.1):

judgehost_problems_registered_total / judgehost_problem_ingest_failed_total: Counter.

Result Reporter (§4.6):

judgehost_reports_posted_total{outcome}: Counter, outcome=success|failure.
judgehost_report_duration_seconds: Histogram.

# Usage

	import "github.com/cuemby/judgehost/pkg/metrics"

	metrics.QueueDepth.Set(float64(q.Depth()))
	metrics.JobsEnqueuedTotal.Inc()

	timer := metrics.NewTimer()
	// ... build image ...
	timer.ObserveDuration(metrics.BuildDuration)

	metrics.RubricScores.WithLabelValues(rubricID).Observe(percentage)

	http.Handle("/metrics", metrics.Handler())

# Integration Points

This package integrates with:

  - pkg/queue: queue depth, enqueue/terminal-state counters, scheduling latency
  - pkg/orchestrator: build/create/start/hook durations, rubric scores, evaluation outcomes
  - pkg/registry: problem registration counters
  - pkg/reporter: report POST outcome counters and duration
  - cmd/judgehost: wires metrics.Handler() onto the serve command's HTTP mux

# Design Patterns

Package Init Registration: every metric is registered in init(); MustRegister
panics on duplicate registration, so metrics are available before main().

Label Discipline: labels are bounded (reason, stage, outcome, rubric_id from
a fixed problem's rubric set) — never submission or job IDs.

Timer Pattern: NewTimer() at operation start, ObserveDuration/ObserveDurationVec
at completion.

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
