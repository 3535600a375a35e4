package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/judgehost/pkg/health"
	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/metrics"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/types"
)

// idleCommand keeps a submission container alive so later hook execs can
// run inside it, since the submission's own entrypoint is never invoked
// directly (§4.4 step 6).
var idleCommand = []string{"sh", "-c", "tail -f /dev/null"}

// createContainers implements §4.4 step 6: create every container, in
// dependency order, with its resolved mount set and resource limits. A
// declared health_check is not part of the create spec; it is probed only
// during dependency waits. On any failure, containers already created are
// torn down before returning.
func (o *Orchestrator) createContainers(ctx context.Context, r *run) error {
	for _, cs := range r.order {
		ms, err := o.resolveMounts(r, cs)
		if err != nil {
			o.teardownCreated(context.Background(), r)
			return err
		}

		tag := r.record.ImageTags[cs.ContainerID+":eval"]
		if tag == "" {
			o.teardownCreated(context.Background(), r)
			return jherrors.InvalidPackage("no eval image tag recorded for container " + cs.ContainerID)
		}

		spec := runtime.ContainerCreateSpec{
			ID:           cs.ContainerID,
			Image:        tag,
			Mounts:       ms,
			NetworkName:  r.networkName,
			NetworkAlias: cs.ContainerID,
			Resources:    o.resourcesFor(cs),
		}
		if cs.AcceptsSubmission {
			spec.Command = idleCommand
		}

		timer := metrics.NewTimer()
		id, err := o.rt.CreateContainer(ctx, spec)
		timer.ObserveDuration(metrics.ContainerCreateDuration)
		if err != nil {
			metrics.ContainersFailed.Inc()
			o.teardownCreated(context.Background(), r)
			return jherrors.RuntimeError("create container "+cs.ContainerID, err)
		}

		r.runtimeIDs[cs.ContainerID] = id
		r.eval.Containers[cs.ContainerID] = &types.EvalContainer{
			ContainerID:  cs.ContainerID,
			RuntimeID:    id,
			Status:       types.ContainerStatePending,
			ArtifactsDir: cs.ContainerID,
		}
	}
	return nil
}

// resourcesFor returns cs.Resources clamped against the host's configured
// caps (§5 JUDGEHOST_CONTAINER_MAX_MEMORY_MB/MAX_CPU_CORES): a problem may
// ask for less than the cap, never more. Caps of zero mean unlimited.
func (o *Orchestrator) resourcesFor(cs *types.ContainerSpec) *types.ResourceLimits {
	limits := cs.Resources
	if o.cfg.MaxCPUCores == 0 && o.cfg.MaxMemoryMB == 0 {
		return limits
	}

	clamped := types.ResourceLimits{}
	if limits != nil {
		clamped = *limits
	}
	if o.cfg.MaxCPUCores > 0 && (clamped.CPUs == 0 || clamped.CPUs > o.cfg.MaxCPUCores) {
		clamped.CPUs = o.cfg.MaxCPUCores
	}
	if o.cfg.MaxMemoryMB > 0 && (clamped.Memory == "" || memoryExceedsMB(clamped.Memory, o.cfg.MaxMemoryMB)) {
		clamped.Memory = fmt.Sprintf("%dm", o.cfg.MaxMemoryMB)
	}
	return &clamped
}

// memoryExceedsMB reports whether a "<n><unit>" memory string (k/m/g,
// case-insensitive) exceeds capMB megabytes. An unparseable value is
// treated as exceeding the cap, so it gets clamped down rather than
// silently passed through.
func memoryExceedsMB(spec string, capMB int) bool {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if spec == "" {
		return false
	}
	unit := spec[len(spec)-1]
	numPart := spec
	var multiplier float64 = 1
	switch unit {
	case 'k':
		multiplier = 1.0 / 1024
		numPart = spec[:len(spec)-1]
	case 'm':
		multiplier = 1
		numPart = spec[:len(spec)-1]
	case 'g':
		multiplier = 1024
		numPart = spec[:len(spec)-1]
	}
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return true
	}
	return n*multiplier > float64(capMB)
}

// startContainers implements §4.4 step 7: start each container in
// dependency order, waiting for its declared dependencies' conditions
// first. Service containers get a warm-up pause before anything depends
// on them.
func (o *Orchestrator) startContainers(ctx context.Context, r *run) error {
	for _, cs := range r.order {
		for _, dep := range cs.DependsOn {
			if err := o.waitForCondition(ctx, r, dep); err != nil {
				o.teardownCreated(context.Background(), r)
				return err
			}
		}

		id := r.runtimeIDs[cs.ContainerID]
		timer := metrics.NewTimer()
		err := o.rt.StartContainer(ctx, id)
		timer.ObserveDuration(metrics.ContainerStartDuration)
		if err != nil {
			metrics.ContainersFailed.Inc()
			o.teardownCreated(context.Background(), r)
			return jherrors.RuntimeError("start container "+cs.ContainerID, err)
		}

		ec := r.eval.Containers[cs.ContainerID]
		ec.Status = types.ContainerStateRunning
		ec.StartedAt = time.Now()

		if !cs.AcceptsSubmission {
			select {
			case <-time.After(o.cfg.ServiceWarmup):
			case <-ctx.Done():
				o.teardownCreated(context.Background(), r)
				return ctx.Err()
			}
		}
	}
	return nil
}

// waitForCondition polls until dep's condition is satisfied or its
// timeout/retry budget is exhausted (§4.4 step 7). Conditions the
// Orchestrator doesn't recognise degrade to "started", with a warning; so
// does "healthy" when the dependency's own container declares no
// health_check to probe.
func (o *Orchestrator) waitForCondition(ctx context.Context, r *run, dep *types.DependsOn) error {
	id, ok := r.runtimeIDs[dep.ContainerID]
	if !ok {
		return jherrors.DependencyTimeout(dep.ContainerID)
	}

	timeout := o.cfg.DependencyTimeout
	if dep.Timeout > 0 {
		timeout = time.Duration(dep.Timeout) * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	condition := dep.Condition
	switch condition {
	case types.WaitStarted, types.WaitHealthy, types.WaitCompleted:
		// recognised
	default:
		o.logger.Warn().Str("container_id", dep.ContainerID).Str("condition", string(condition)).
			Msg("unknown dependency condition, degrading to started")
		condition = types.WaitStarted
	}

	var checker health.Checker
	if condition == types.WaitHealthy {
		if cs := findContainerSpec(r, dep.ContainerID); cs != nil && cs.HealthCheck != nil {
			checker = o.healthChecker(cs.HealthCheck, id)
		} else {
			o.logger.Warn().Str("container_id", dep.ContainerID).
				Msg("healthy dependency condition but target declares no health_check, degrading to started")
			condition = types.WaitStarted
		}
	}

	retries := o.cfg.DependencyRetries
	interval := o.cfg.DependencyInterval

	for attempt := 0; ; attempt++ {
		satisfied, err := o.checkConditionOrHealth(waitCtx, id, condition, checker)
		if err == nil && satisfied {
			return nil
		}
		if attempt >= retries {
			return jherrors.DependencyTimeout(dep.ContainerID)
		}
		select {
		case <-time.After(interval):
		case <-waitCtx.Done():
			return jherrors.DependencyTimeout(dep.ContainerID)
		}
	}
}

// findContainerSpec returns the ContainerSpec declaring containerID within
// the evaluation's dependency order, or nil if it isn't one of them.
func findContainerSpec(r *run, containerID string) *types.ContainerSpec {
	for _, cs := range r.order {
		if cs.ContainerID == containerID {
			return cs
		}
	}
	return nil
}

// healthChecker builds the pkg/health.Checker matching a container's
// declared health_check. Exec probes run through the Container Runtime
// Facade (the only path that reaches the container's network namespace
// without a published port); HTTP/TCP probes dial the declared endpoint
// directly, as the problem package configures it.
func (o *Orchestrator) healthChecker(hc *types.HealthCheck, runtimeID string) health.Checker {
	timeout := hc.Timeout
	if timeout <= 0 {
		timeout = o.cfg.DependencyInterval
	}
	switch hc.Type {
	case types.HealthCheckHTTP:
		return health.NewHTTPChecker(hc.Endpoint).WithTimeout(timeout)
	case types.HealthCheckTCP:
		return health.NewTCPChecker(hc.Endpoint).WithTimeout(timeout)
	default: // HealthCheckExec
		return health.NewExecChecker(hc.Command).WithContainer(runtimeID).WithRuntime(o.rt).WithTimeout(timeout)
	}
}

// checkConditionOrHealth evaluates one poll attempt: a real probe via
// checker for the "healthy" condition (§4.4 step 7), runtime state
// inspection for everything else.
func (o *Orchestrator) checkConditionOrHealth(ctx context.Context, runtimeID string, condition types.WaitCondition, checker health.Checker) (bool, error) {
	if condition == types.WaitHealthy && checker != nil {
		return checker.Check(ctx).Healthy, nil
	}
	return o.checkCondition(ctx, runtimeID, condition)
}

func (o *Orchestrator) checkCondition(ctx context.Context, runtimeID string, condition types.WaitCondition) (bool, error) {
	switch condition {
	case types.WaitCompleted:
		state, err := o.rt.InspectContainer(ctx, runtimeID)
		if err != nil {
			return false, err
		}
		return state == types.ContainerStateComplete || state == types.ContainerStateFailed, nil
	default: // WaitStarted (and WaitHealthy with no health_check configured, degraded above)
		state, err := o.rt.InspectContainer(ctx, runtimeID)
		if err != nil {
			return false, err
		}
		return state == types.ContainerStateRunning, nil
	}
}

// watchTerminations implements §4.4 step 9: concurrently with hook
// execution, wait for any container declaring terminate_on_finish to
// exit, then stop the containers it names (graceful, then kill). The
// returned channel closes once every watched container has been handled
// (or there was nothing to watch).
func (o *Orchestrator) watchTerminations(ctx context.Context, r *run) <-chan struct{} {
	done := make(chan struct{})

	var watchers []*types.ContainerSpec
	for _, cs := range r.order {
		if len(cs.TerminateOnFinish) > 0 {
			watchers = append(watchers, cs)
		}
	}
	if len(watchers) == 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		for _, cs := range watchers {
			id, ok := r.runtimeIDs[cs.ContainerID]
			if !ok {
				continue
			}
			if _, err := o.rt.WaitContainer(ctx, id); err != nil {
				o.logger.Debug().Err(err).Str("container_id", cs.ContainerID).Msg("wait for termination watcher failed")
				continue
			}
			for _, targetID := range cs.TerminateOnFinish {
				runtimeID, ok := r.runtimeIDs[targetID]
				if !ok {
					continue
				}
				if err := o.rt.StopContainer(ctx, runtimeID, o.cfg.StopGrace); err != nil {
					o.logger.Warn().Err(err).Str("container_id", targetID).Msg("graceful stop failed, killing")
					_ = o.rt.KillContainer(ctx, runtimeID)
				}
			}
		}
	}()
	return done
}

// killPrimaryContainers is invoked on overall-evaluation timeout: it kills
// every submission-accepting container (the "primary execution
// containers" of §5's timeout clause) without waiting for graceful stop.
func (o *Orchestrator) killPrimaryContainers(ctx context.Context, r *run) {
	for _, cs := range r.order {
		if !cs.AcceptsSubmission {
			continue
		}
		if id, ok := r.runtimeIDs[cs.ContainerID]; ok {
			_ = o.rt.KillContainer(ctx, id)
		}
	}
}

// teardownCreated stops and removes every container created so far, used
// when create/start fails partway through the dependency order (§4.4
// "Failure semantics").
func (o *Orchestrator) teardownCreated(ctx context.Context, r *run) {
	for cid, id := range r.runtimeIDs {
		_ = o.rt.StopContainer(ctx, id, o.cfg.StopGrace)
		_ = o.rt.RemoveContainer(ctx, id, runtime.RemoveOptions{Force: true, Volumes: true})
		delete(r.runtimeIDs, cid)
	}
}

// cleanup implements §4.4 step 13: stop, then remove, every container, then
// remove the evaluation network if one was created. Failures are logged,
// never fatal.
func (o *Orchestrator) cleanup(ctx context.Context, r *run) {
	for cid, id := range r.runtimeIDs {
		if err := o.rt.StopContainer(ctx, id, o.cfg.StopGrace); err != nil {
			o.logger.Debug().Err(err).Str("container_id", cid).Msg("cleanup: stop failed")
		}
		if err := o.rt.RemoveContainer(ctx, id, runtime.RemoveOptions{Force: true, Volumes: true}); err != nil {
			o.logger.Warn().Err(err).Str("container_id", cid).Msg("cleanup: remove failed")
		}
	}
	if r.networkName != "" {
		if err := o.rt.RemoveNetwork(ctx, r.networkName); err != nil {
			o.logger.Warn().Err(err).Str("network", r.networkName).Msg("cleanup: remove network failed")
		}
	}
}
