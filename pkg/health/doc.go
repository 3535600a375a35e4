/*
Package health provides health check mechanisms for gating dependent
container startup during a judge host evaluation.

This package implements three types of health checks: HTTP, TCP, and Exec.
The Orchestrator uses them for the `healthy` dependency-wait condition
(§4.4), before starting a container whose depends_on entries name it;
`started` and `completed` are checked against container state and do not
go through this package.

# Architecture

The health check system follows a modular checker design:

	┌─────────────────────────────────────────────────────────────┐
	│                   Health Check System                       │
	└─────┬──────────────────────────────────────────────────────┘
	      │
	      ▼
	┌──────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬──────────┐
	    ▼           ▼          ▼
	┌────────┐  ┌──────┐  ┌────────┐
	│  HTTP  │  │ TCP  │  │  Exec  │
	│Checker │  │Checker│ │Checker │
	└────────┘  └──────┘  └────────┘
	     │          │          │
	     ▼          ▼          ▼
	  GET /    Connect     Exec in
	  /health    :port      container

## Health Check Flow

 1. A container's depends_on entry waits on a dependency being "healthy"
 2. Orchestrator creates the checker named by the dependency's ContainerSpec.HealthCheck
    (with none declared, the wait falls back to a running-state check)
 3. Run the check; a healthy result satisfies the condition
 4. Otherwise wait DependencyInterval and check again, up to DependencyRetries more times
 5. Running out of retries, or past the dependency wait timeout, returns
    DependencyTimeout and fails the evaluation

This wait does not use Config.StartPeriod or Status's consecutive-failure
counting.

# Health Check Types

## HTTP Health Checks

	Check Type: HTTP
	Configuration:
	├── URL: http://<container_id>:<port>/<endpoint>
	├── Method: GET, POST, HEAD
	├── Expected Status: 200-399 (configurable)
	└── Timeout: 10 seconds

## TCP Health Checks

	Check Type: TCP
	Configuration:
	├── Address: <container_id>:<port>
	├── Timeout: 5 seconds
	└── Connection test only (no data sent)

## Exec Health Checks

Exec checks run a command inside the container via the Container Runtime
Facade's ExecContainer and check the exit code:

	Check Type: Exec
	Configuration:
	├── Command: ["curl", "-f", "http://localhost:8080/health"]
	├── Timeout: 10 seconds
	├── Exit code 0 → Healthy
	└── Exit code != 0 → Unhealthy

# Core Components

## Checker Interface

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

## Result Structure

	type Result struct {
		Healthy   bool
		Message   string
		CheckedAt time.Time
		Duration  time.Duration
	}

## Status Tracking

	type Status struct {
		ConsecutiveFailures  int
		ConsecutiveSuccesses int
		LastCheck            time.Time
		LastResult           Result
		Healthy              bool
		StartedAt            time.Time
	}

Status implements hysteresis — multiple failures required before flipping
unhealthy, preventing flapping from a transient failed probe during
container startup.

## Configuration

	type Config struct {
		Interval    time.Duration
		Timeout     time.Duration
		Retries     int
		StartPeriod time.Duration
	}

# Usage

	checker := health.NewHTTPChecker(fmt.Sprintf("http://%s:%d%s", containerID, hc.Port, hc.Endpoint))
	status := health.NewStatus()
	cfg := health.Config{Interval: 2 * time.Second, Timeout: 5 * time.Second, Retries: 3}

	for {
		select {
		case <-ctx.Done():
			return jherrors.DependencyTimeout(containerID)
		case <-time.After(cfg.Interval):
		}
		result := checker.Check(ctx)
		status.Update(result, cfg)
		if result.Healthy {
			break
		}
	}

Exec checks additionally need the Container Runtime Facade:

	checker := health.NewExecChecker(hc.Command).
		WithContainer(runtimeID).
		WithRuntime(rt)

# Design Patterns

## Strategy Pattern

	Checker (interface)
	├── HTTPChecker
	├── TCPChecker
	└── ExecChecker

## Builder Pattern

	checker := NewHTTPChecker(url).
		WithMethod("GET").
		WithStatusRange(200, 299).
		WithTimeout(5 * time.Second)

## Hysteresis Pattern

	Healthy → 1 failure → still healthy
	Healthy → 3 failures → unhealthy (Retries=3)
	Unhealthy → 1 success → healthy

## Context-Based Cancellation

All checks respect context deadlines, so a dependency wait can be bounded
by the DependsOn.Timeout from the ProblemConfig.

# Integration Points

This package integrates with:

  - pkg/orchestrator: creates checkers from ContainerSpec.HealthCheck and
    drives the wait loop for "healthy" dependency conditions (§4.4 step 7)
  - pkg/runtime: ExecChecker execs through Runtime.ExecContainer
  - pkg/types: HealthCheck, HealthCheckType, DependsOn
*/
package health
