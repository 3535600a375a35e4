package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/metrics"
	"github.com/cuemby/judgehost/pkg/runtime"
)

type hookRecord struct {
	Name     string    `json:"name"`
	Stage    string    `json:"stage"`
	ExitCode int       `json:"exit_code"`
	Stdout   string    `json:"stdout"`
	Stderr   string    `json:"stderr"`
	Error    string    `json:"error,omitempty"`
	RanAt    time.Time `json:"ran_at"`
}

// executeHooks implements §4.4 step 8: for every container with a hooks
// directory, run pre_* hooks in filename order, stabilize, then run post_*
// hooks in filename order. A pre-hook that fails to exec or exits non-zero
// fails the evaluation; post-hooks always run to completion so every one is
// collected for scoring. No continue_on_error setting is read from the
// problem config: this pre/post behaviour is fixed.
func (o *Orchestrator) executeHooks(ctx context.Context, r *run) error {
	for _, cs := range r.order {
		hooksDir, ok := r.hooksDirs[cs.ContainerID]
		if !ok {
			continue
		}
		runtimeID, ok := r.runtimeIDs[cs.ContainerID]
		if !ok {
			continue
		}

		pre, post, err := listHooks(hooksDir)
		if err != nil {
			return err
		}

		timeout := o.cfg.DefaultHookTimeout
		if r.record.Config.HooksConfig != nil && r.record.Config.HooksConfig.TimeoutSeconds > 0 {
			timeout = time.Duration(r.record.Config.HooksConfig.TimeoutSeconds) * time.Second
		}

		if err := o.runHookStage(ctx, r, cs.ContainerID, runtimeID, "pre", pre, timeout, false); err != nil {
			return err
		}

		select {
		case <-time.After(o.cfg.HookStabilize):
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := o.runHookStage(ctx, r, cs.ContainerID, runtimeID, "post", post, timeout, true); err != nil {
			return err
		}
	}
	return nil
}

// listHooks globs hooksDir for pre_NN_*.sh and post_NN_*.sh scripts,
// returning each group sorted by filename (the declared execution order).
func listHooks(hooksDir string) (pre, post []string, err error) {
	entries, readErr := os.ReadDir(hooksDir)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return nil, nil, nil
		}
		return nil, nil, jherrors.Internal("reading hooks directory "+hooksDir, readErr)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasPrefix(name, "pre_"):
			pre = append(pre, name)
		case strings.HasPrefix(name, "post_"):
			post = append(post, name)
		}
	}
	sort.Strings(pre)
	sort.Strings(post)
	return pre, post, nil
}

// runHookStage execs every hook in order, persists its logs/hook_<stage>_<name>.json
// record, and (when continueOnError is false) aborts the stage on the first
// non-zero exit.
func (o *Orchestrator) runHookStage(ctx context.Context, r *run, containerID, runtimeID, stage string, hooks []string, timeout time.Duration, continueOnError bool) error {
	for _, name := range hooks {
		timer := metrics.NewTimer()
		execCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := o.rt.ExecContainer(execCtx, runtimeID, []string{"/hooks/" + name}, runtime.ExecOptions{Timeout: timeout})
		cancel()
		timer.ObserveDurationVec(metrics.HookDuration, stage)

		rec := hookRecord{Name: name, Stage: stage, RanAt: time.Now()}
		if err != nil {
			rec.Error = err.Error()
			if writeErr := o.writeHookLog(r, containerID, stage, name, rec); writeErr != nil {
				o.logger.Error().Err(writeErr).Msg("failed to write hook log")
			}
			if !continueOnError {
				return jherrors.HookFailed(name, -1, err)
			}
			continue
		}

		rec.ExitCode = result.ExitCode
		rec.Stdout = result.Stdout
		rec.Stderr = result.Stderr
		if writeErr := o.writeHookLog(r, containerID, stage, name, rec); writeErr != nil {
			o.logger.Error().Err(writeErr).Msg("failed to write hook log")
		}

		if result.ExitCode != 0 && !continueOnError {
			return jherrors.HookFailed(name, result.ExitCode, nil)
		}
	}
	return nil
}

func (o *Orchestrator) writeHookLog(r *run, containerID, stage, name string, rec hookRecord) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return jherrors.Internal("marshaling hook log", err)
	}
	path := filepath.Join(r.evalDir, "logs", fmtHookLogName(stage, strings.TrimSuffix(name, filepath.Ext(name))))
	return os.WriteFile(path, raw, 0o644)
}
