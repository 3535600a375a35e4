package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/types"
)

func init() {
	log.Init(log.Config{Level: "error"})
}

func TestListHooksOrdersByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pre_20_b.sh", "pre_10_a.sh", "post_10_z.sh", "other.sh"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	pre, post, err := listHooks(dir)
	if err != nil {
		t.Fatalf("listHooks: %v", err)
	}
	if len(pre) != 2 || pre[0] != "pre_10_a.sh" || pre[1] != "pre_20_b.sh" {
		t.Fatalf("unexpected pre hooks: %v", pre)
	}
	if len(post) != 1 || post[0] != "post_10_z.sh" {
		t.Fatalf("unexpected post hooks: %v", post)
	}
}

func TestListHooksMissingDirectory(t *testing.T) {
	pre, post, err := listHooks(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("expected no error for a missing hooks directory, got %v", err)
	}
	if pre != nil || post != nil {
		t.Fatalf("expected no hooks, got pre=%v post=%v", pre, post)
	}
}

func newHookOrchestrator(rt runtime.Runtime) *Orchestrator {
	cfg := DefaultConfig()
	cfg.HookStabilize = time.Millisecond
	cfg.DefaultHookTimeout = time.Second
	return &Orchestrator{cfg: cfg, rt: rt, logger: log.WithComponent("orchestrator-test")}
}

func TestRunHookStageAbortsOnFailureWhenNotContinuing(t *testing.T) {
	fake := runtime.NewFake()
	fake.ExecFunc = func(id string, cmd []string) (runtime.ExecResult, error) {
		return runtime.ExecResult{ExitCode: 1, Stderr: "boom"}, nil
	}
	o := newHookOrchestrator(fake)
	r := newTestRun(t)

	err := o.runHookStage(context.Background(), r, "grader", "runtime-id", "pre", []string{"pre_01_check.sh"}, time.Second, false)
	if err == nil {
		t.Fatal("expected a hook failure error")
	}
	if !jherrors.Is(err, jherrors.CodeHookFailed) {
		t.Fatalf("expected CodeHookFailed, got %v", err)
	}
}

func TestRunHookStageContinuesOnErrorWhenConfigured(t *testing.T) {
	fake := runtime.NewFake()
	calls := 0
	fake.ExecFunc = func(id string, cmd []string) (runtime.ExecResult, error) {
		calls++
		return runtime.ExecResult{ExitCode: 1}, nil
	}
	o := newHookOrchestrator(fake)
	r := newTestRun(t)

	err := o.runHookStage(context.Background(), r, "grader", "runtime-id", "post", []string{"post_01.sh", "post_02.sh"}, time.Second, true)
	if err != nil {
		t.Fatalf("expected no error with continue_on_error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both post hooks to run, got %d calls", calls)
	}
}

func TestRunHookStageWritesLog(t *testing.T) {
	fake := runtime.NewFake()
	fake.ExecFunc = func(id string, cmd []string) (runtime.ExecResult, error) {
		return runtime.ExecResult{ExitCode: 0, Stdout: "ok"}, nil
	}
	o := newHookOrchestrator(fake)
	r := newTestRun(t)
	if err := os.MkdirAll(filepath.Join(r.evalDir, "logs"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := o.runHookStage(context.Background(), r, "grader", "runtime-id", "pre", []string{"pre_01_check.sh"}, time.Second, false); err != nil {
		t.Fatalf("runHookStage: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(r.evalDir, "logs", "hook_pre_pre_01_check.json"))
	if err != nil {
		t.Fatalf("expected a hook log file: %v", err)
	}
	var rec hookRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("unmarshaling hook log: %v", err)
	}
	if rec.ExitCode != 0 || rec.Stdout != "ok" {
		t.Fatalf("unexpected hook record: %+v", rec)
	}
}

func TestExecuteHooksSkipsContainersWithoutHooksDir(t *testing.T) {
	fake := runtime.NewFake()
	o := newHookOrchestrator(fake)
	r := newTestRun(t)
	r.order = []*types.ContainerSpec{{ContainerID: "solo"}}
	r.runtimeIDs = map[string]string{"solo": "runtime-solo"}
	r.hooksDirs = map[string]string{}

	if err := o.executeHooks(context.Background(), r); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
