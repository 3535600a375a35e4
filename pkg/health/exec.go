package health

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/cuemby/judgehost/pkg/runtime"
)

// ExecChecker performs exec-based health checks by running a command
type ExecChecker struct {
	// Command is the command to execute (e.g., ["pg_isready", "-U", "postgres"])
	Command []string

	// Timeout is the command execution timeout (default: 10 seconds)
	Timeout time.Duration

	// ContainerID is the runtime-assigned ID of the container to exec into.
	// If empty, runs on host (useful for testing).
	ContainerID string

	// Runtime performs the exec when ContainerID is set. Required in that
	// case; NewExecChecker leaves it nil and WithRuntime sets it.
	Runtime runtime.Runtime
}

// NewExecChecker creates a new exec health checker
func NewExecChecker(command []string) *ExecChecker {
	return &ExecChecker{
		Command: command,
		Timeout: 10 * time.Second,
	}
}

// Check performs the exec health check
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if len(e.Command) == 0 {
		return Result{
			Healthy:   false,
			Message:   "no command specified",
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	if e.ContainerID != "" {
		return e.checkInContainer(execCtx, start)
	}
	return e.checkOnHost(execCtx, start)
}

// checkInContainer execs the command inside the container via the
// Container Runtime Facade.
func (e *ExecChecker) checkInContainer(ctx context.Context, start time.Time) Result {
	if e.Runtime == nil {
		return Result{
			Healthy:   false,
			Message:   "exec checker has a container_id but no Runtime configured",
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	result, err := e.Runtime.ExecContainer(ctx, e.ContainerID, e.Command, runtime.ExecOptions{Timeout: e.Timeout})
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("Command: %v, Error: %v", e.Command, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	message := fmt.Sprintf("Command: %v, ExitCode: %d", e.Command, result.ExitCode)
	if result.Stdout != "" {
		message = fmt.Sprintf("%s, Output: %s", message, truncate(result.Stdout, 100))
	}

	return Result{
		Healthy:   result.ExitCode == 0,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// checkOnHost executes the command on the host process, used for testing
// checkers without a live container runtime.
func (e *ExecChecker) checkOnHost(ctx context.Context, start time.Time) Result {
	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("Command: %v, Error: %v", e.Command, err)
		if stderr.Len() > 0 {
			message = fmt.Sprintf("%s, Stderr: %s", message, stderr.String())
		}
		return Result{
			Healthy:   false,
			Message:   message,
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	message := fmt.Sprintf("Command: %v", e.Command)
	if stdout.Len() > 0 {
		message = fmt.Sprintf("%s, Output: %s", message, truncate(stdout.String(), 100))
	}

	return Result{
		Healthy:   true,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

// WithTimeout sets the execution timeout
func (e *ExecChecker) WithTimeout(timeout time.Duration) *ExecChecker {
	e.Timeout = timeout
	return e
}

// WithContainer sets the container ID for exec
func (e *ExecChecker) WithContainer(containerID string) *ExecChecker {
	e.ContainerID = containerID
	return e
}

// WithRuntime sets the Container Runtime Facade used to exec into
// ContainerID.
func (e *ExecChecker) WithRuntime(rt runtime.Runtime) *ExecChecker {
	e.Runtime = rt
	return e
}
