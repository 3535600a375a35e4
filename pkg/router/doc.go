/*
Package router implements the Event Router (§4.2): the judge host's single
inbound entry point for submission-created and problem-package events
arriving off the message bus.

# Architecture

	┌──────────────────── EVENT ROUTER ─────────────────────────┐
	│                                                             │
	│  Inbound message                                           │
	│       │                                                    │
	│       ▼                                                    │
	│  Own-origin check (x-origin header vs InstanceID)          │
	│       │ duplicate → Requeue                                │
	│       ▼                                                    │
	│  Event-type resolution:                                    │
	│    1. routing key                                          │
	│    2. x-event-type header                                  │
	│    3. payload.channel                                      │
	│    4. payload.type                                         │
	│       │ (each checked against the alias table)             │
	│       ▼                                                    │
	│  Envelope unwrap (payload/data/message, one level)         │
	│       │                                                    │
	│       ▼                                                    │
	│  ┌─────────────────┐       ┌──────────────────────┐       │
	│  │ submission.*     │       │ problem.*             │       │
	│  │ → SubmissionHandler      │ → retry.Do(ProblemHandler) │ │
	│  │   (pkg/queue)    │       │   (pkg/registry)      │       │
	│  └─────────────────┘       └──────────────────────┘       │
	└─────────────────────────────────────────────────────────┘

# Alias Resolution

Canonical submission type: judge.submission.created
  Aliases: submission

Canonical problem type: judge.problem.created
  Aliases: judge.problem, judge.package, judge.package.created

Any other token at any precedence position fails resolution with
InvalidInput — the router does not guess.

# Fetch URL Construction

Events sometimes carry only a package_path rather than a resolvable
archive_url. When that happens, the router joins the configured
PackageBaseURL with /submission/{submission_id}/package or
/problem/{problem_id}/package. Events with neither an explicit URL nor a
package_path (and no PackageBaseURL configured) fail resolution.

# Retry Policy

Problem-package ingest (dispatch to the Registry) runs through
retry.Do using the §4.2 default: 1s initial delay, 30s cap, multiplier
2, 5 attempts, restricted to network-like failures (the underlying
error's Code is CodeTransientNetwork or otherwise Code.Retryable(), or
its message names a connection-refused / no-such-host / timeout / 404
condition). Submission dispatch (to the Job Queue) is not retried here —
queue-full and rate-limit outcomes are the Job Queue's own concern, not
a transport failure.

# Own-Origin Deduplication

Some buses echo a publisher's own messages back to it (e.g. a fanout
exchange the judge host both publishes and consumes on). When an
inbound event's x-origin header equals this router's configured
InstanceID, Route returns the sentinel Requeue instead of processing or
erroring, signalling the caller to release the message back to the bus
for another consumer.

# Integration Points

  - pkg/registry: ProblemHandler is normally registry.Registry.Ingest
  - pkg/queue: SubmissionHandler is normally the queue's Enqueue operation
  - pkg/retry: backs the problem-package retry policy
  - pkg/jherrors: classifies errors for the Retryable predicate
*/
package router
