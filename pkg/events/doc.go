/*
Package events provides an in-memory event broker for the judge host's
internal pub/sub messaging.

The events package implements a lightweight event bus for broadcasting job,
evaluation, and problem-registration events to interested subscribers. It
supports non-blocking, fan-out delivery, enabling loose coupling between the
Job Queue, the Orchestrator and pkg/host.

# Architecture

The event system provides non-blocking pub/sub messaging with buffered
channels:

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Topic-agnostic (all events broadcast)    │          │
	│  │  - Non-blocking publish                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  Job lifecycle (pkg/queue):                 │          │
	│  │    - queued, started, completed,            │          │
	│  │      failed, cancelled                      │          │
	│  │                                              │          │
	│  │  Evaluation outcome (pkg/orchestrator):      │          │
	│  │    - evaluation.started                     │          │
	│  │    - result.evaluation.completed            │          │
	│  │    - result.evaluation.failed               │          │
	│  │                                              │          │
	│  │  Problem registration (not published):      │          │
	│  │    - problem_package.processed              │          │
	│  │    - problem_package.failed                 │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  pkg/host: runs the Orchestrator for each   │          │
	│  │  EventJobStarted event                      │          │
	│  │  (no other subscribers in this module)      │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Type: Event type (queued, result.evaluation.completed, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context (job_id, submission_id, problem_id, ...)

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. Event added to main event channel (non-blocking)
 3. Broadcast loop receives event
 4. Event sent to all subscriber channels
 5. Subscribers receive event asynchronously
 6. Full subscriber buffers skip (no blocking)

Subscribe Flow:
 1. Subscriber calls broker.Subscribe()
 2. New buffered channel created
 3. Channel registered in subscriber map
 4. Subscriber channel returned
 5. Subscriber receives events via channel
 6. Subscriber processes events in own goroutine

Unsubscribe Flow:
 1. Subscriber calls broker.Unsubscribe(channel)
 2. Channel removed from subscriber map
 3. Channel closed
 4. Subscriber stops receiving events

# Usage

Creating and Starting Broker:

	import "github.com/cuemby/judgehost/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to Events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
		}
	}()

Publishing Events:

	event := &events.Event{
		Type:    events.EventResultEvaluationCompleted,
		Message: "evaluation eval-123 completed: 85/100",
		Metadata: map[string]string{
			"submission_id": "sub-456",
			"problem_id":    "binary-search-tree",
			"evaluation_id": "eval-123",
		},
	}
	broker.Publish(event)

Filtering Events by Type:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			switch event.Type {
			case events.EventResultEvaluationCompleted:
				log.Printf("evaluation %s completed", event.Metadata["evaluation_id"])
			case events.EventJobFailed:
				metrics.JobsFailedTotal.Inc()
			default:
				// Ignore other events
			}
		}
	}()

# Integration Points

This package integrates with:

  - pkg/queue: publishes queued/started/completed/failed/cancelled
  - pkg/orchestrator: publishes evaluation.started and the result.* events
  - pkg/host: subscribes, and runs the Orchestrator for each EventJobStarted

The problem_package.* types are defined here, but no package in this module
publishes them.

# Event Types Catalog

Job lifecycle (published by pkg/queue, §4.3):

EventJobQueued:
  - Published when: a submission is accepted and enqueued
  - Metadata: job_id, submission_id, problem_id, team_id
  - Subscribers: none

EventJobStarted:
  - Published when: a worker dequeues the job and begins the evaluation
  - Metadata: job_id, submission_id
  - Subscribers: pkg/host (runs the job's evaluation)

EventJobCompleted / EventJobFailed / EventJobCancelled:
  - Published when: the evaluation reaches a terminal state
  - Metadata: job_id, submission_id, problem_id, team_id (a failure's error
    is in Message)
  - Subscribers: none

Evaluation outcome (published by pkg/orchestrator, §4.4):

EventEvaluationStarted:
  - Published when: container creation begins for one submission
  - Metadata: evaluation_id, submission_id, problem_id

EventResultEvaluationCompleted / EventResultEvaluationFailed:
  - Published when: rubric collection and scoring finish (or the pipeline
    fails before reaching it)
  - Metadata: evaluation_id, submission_id, problem_id
  - Subscribers: none; the Orchestrator hands the Evaluation to the Reporter
    directly

Problem registration (§4.1; defined, but no package in this module
publishes them):

EventProblemPackageProcessed:
  - Meaning: a problem package is validated, built, and registered
  - Metadata: problem_id, container_count

EventProblemPackageFailed:
  - Meaning: ingest fails at any stage (fetch, validate, build)
  - Metadata: problem_id, error

# Design Patterns

Non-Blocking Publish:
  - Publish sends to buffered channel
  - Returns immediately (no waiting)
  - Events may be dropped if buffer full
  - Trade-off: Throughput over guaranteed delivery

Fan-Out Pattern:
  - Single event broadcast to all subscribers
  - Each subscriber gets own channel
  - Independent processing rates
  - Full buffers skip to prevent blocking

Fire-and-Forget:
  - No acknowledgment from subscribers
  - No retry on delivery failure
  - Result delivery does not go through the broker: the Orchestrator calls
    the Reporter directly, and the Reporter keeps its own at-most-once guard

Graceful Shutdown:
  - broker.Stop() signals broadcast loop
  - Events still buffered in the broker are dropped, not delivered
  - Subscriber channels remain open
  - Explicit Unsubscribe to close channels

# Limitations

  - In-memory only (no persistence, no replay)
  - No guaranteed delivery (best effort, buffer-drop under load)
  - No topic-based filtering (all events broadcast; filter client-side)

# See Also

  - pkg/queue for job lifecycle event production
  - pkg/orchestrator for evaluation event production
  - pkg/host for the consumer of job started events
*/
package events
