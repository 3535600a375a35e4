package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/types"
)

// newDepTestRun builds a minimal run with a single dependency container
// already started (ContainerStateRunning) under the fake runtime.
func newDepTestRun(t *testing.T, rt *runtime.Fake, depSpec *types.ContainerSpec) *run {
	t.Helper()
	id, err := rt.CreateContainer(context.Background(), runtime.ContainerCreateSpec{ID: depSpec.ContainerID})
	if err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	if err := rt.StartContainer(context.Background(), id); err != nil {
		t.Fatalf("StartContainer: %v", err)
	}
	return &run{
		order:      []*types.ContainerSpec{depSpec},
		runtimeIDs: map[string]string{depSpec.ContainerID: id},
		logger:     log.WithComponent("test"),
	}
}

// TestWaitForConditionHealthyTimesOutWhenProbeNeverSucceeds mirrors §8
// scenario 4: a dependency that is running but never reports healthy must
// exhaust its retry budget and fail with DependencyTimeout, not pass the
// gate just because the container is running.
func TestWaitForConditionHealthyTimesOutWhenProbeNeverSucceeds(t *testing.T) {
	rt := runtime.NewFake()
	rt.ExecFunc = func(id string, cmd []string) (runtime.ExecResult, error) {
		return runtime.ExecResult{ExitCode: 1}, nil
	}

	depSpec := &types.ContainerSpec{
		ContainerID: "db",
		HealthCheck: &types.HealthCheck{Type: types.HealthCheckExec, Command: []string{"pg_isready"}},
	}
	r := newDepTestRun(t, rt, depSpec)

	o := &Orchestrator{
		cfg: Config{
			DependencyTimeout:  time.Second,
			DependencyRetries:  2,
			DependencyInterval: time.Millisecond,
		},
		rt:     rt,
		logger: log.WithComponent("test"),
	}

	err := o.waitForCondition(context.Background(), r, &types.DependsOn{ContainerID: "db", Condition: types.WaitHealthy})
	if err == nil {
		t.Fatal("expected DependencyTimeout, got nil")
	}
	if !jherrors.Is(err, jherrors.CodeDependencyTimeout) {
		t.Fatalf("expected CodeDependencyTimeout, got %v", err)
	}
}

// TestWaitForConditionHealthySucceedsOnPassingProbe confirms the same
// wiring passes once the probe genuinely reports healthy.
func TestWaitForConditionHealthySucceedsOnPassingProbe(t *testing.T) {
	rt := runtime.NewFake()
	rt.ExecFunc = func(id string, cmd []string) (runtime.ExecResult, error) {
		return runtime.ExecResult{ExitCode: 0}, nil
	}

	depSpec := &types.ContainerSpec{
		ContainerID: "db",
		HealthCheck: &types.HealthCheck{Type: types.HealthCheckExec, Command: []string{"pg_isready"}},
	}
	r := newDepTestRun(t, rt, depSpec)

	o := &Orchestrator{
		cfg: Config{
			DependencyTimeout:  time.Second,
			DependencyRetries:  2,
			DependencyInterval: time.Millisecond,
		},
		rt:     rt,
		logger: log.WithComponent("test"),
	}

	err := o.waitForCondition(context.Background(), r, &types.DependsOn{ContainerID: "db", Condition: types.WaitHealthy})
	if err != nil {
		t.Fatalf("expected a passing health probe to satisfy the dependency, got %v", err)
	}
}

// TestWaitForConditionHealthyDegradesWithoutHealthCheck confirms a
// "healthy" condition on a container declaring no health_check degrades to
// a plain running-state check instead of blocking forever.
func TestWaitForConditionHealthyDegradesWithoutHealthCheck(t *testing.T) {
	rt := runtime.NewFake()
	depSpec := &types.ContainerSpec{ContainerID: "db"}
	r := newDepTestRun(t, rt, depSpec)

	o := &Orchestrator{
		cfg: Config{
			DependencyTimeout:  time.Second,
			DependencyRetries:  2,
			DependencyInterval: time.Millisecond,
		},
		rt:     rt,
		logger: log.WithComponent("test"),
	}

	err := o.waitForCondition(context.Background(), r, &types.DependsOn{ContainerID: "db", Condition: types.WaitHealthy})
	if err != nil {
		t.Fatalf("expected degrade-to-started to pass against a running container, got %v", err)
	}
}
