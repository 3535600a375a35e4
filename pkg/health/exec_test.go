package health

import (
	"context"
	"testing"

	"github.com/cuemby/judgehost/pkg/runtime"
)

func TestExecChecker_HostCommandSuccess(t *testing.T) {
	checker := NewExecChecker([]string{"true"})
	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy, got: %s", result.Message)
	}
}

func TestExecChecker_HostCommandFailure(t *testing.T) {
	checker := NewExecChecker([]string{"false"})
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy for a failing command")
	}
}

func TestExecChecker_ContainerExecUsesRuntime(t *testing.T) {
	rt := runtime.NewFake()
	rt.SeedImage("app:latest")
	if _, err := rt.CreateContainer(context.Background(), runtime.ContainerCreateSpec{ID: "c1", Image: "app:latest"}); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}

	checker := NewExecChecker([]string{"curl", "-f", "http://localhost:8080/health"}).
		WithContainer("c1").
		WithRuntime(rt)

	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy default exec result, got: %s", result.Message)
	}
}

func TestExecChecker_ContainerExecWithoutRuntimeIsUnhealthy(t *testing.T) {
	checker := NewExecChecker([]string{"true"}).WithContainer("c1")
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy when ContainerID is set but Runtime is nil")
	}
}

func TestExecChecker_ContainerExecReflectsNonZeroExit(t *testing.T) {
	rt := runtime.NewFake()
	rt.SeedImage("app:latest")
	if _, err := rt.CreateContainer(context.Background(), runtime.ContainerCreateSpec{ID: "c1", Image: "app:latest"}); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	rt.ExecFunc = func(id string, cmd []string) (runtime.ExecResult, error) {
		return runtime.ExecResult{ExitCode: 1, Stderr: "not ready"}, nil
	}

	checker := NewExecChecker([]string{"pg_isready"}).WithContainer("c1").WithRuntime(rt)
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy for non-zero exit code")
	}
}
