/*
Package runtime defines the Container Runtime Facade judgehost uses to
create, start, stop, and inspect evaluation containers, and provides a
containerd-backed implementation of it.

The facade exists so the orchestrator never talks to containerd (or any
other container daemon) directly: it depends on the Runtime interface,
and tests substitute an in-memory fake instead of requiring a live
containerd socket.

# Architecture

	┌─────────────────── CONTAINERD RUNTIME ────────────────────┐
	│                                                             │
	│  ┌──────────────────────────────────────────────┐         │
	│  │        ContainerdRuntime Client               │         │
	│  │  - Socket: /run/containerd/containerd.sock   │         │
	│  │  - Namespace: judgehost                       │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │           Image Operations                    │         │
	│  │  - BuildImage via buildctl (problem image)    │         │
	│  │  - ImageExists for the image cache             │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │        Container Lifecycle                    │         │
	│  │  - Create: Generate OCI spec, bind mounts     │         │
	│  │  - Start: Launch container process            │         │
	│  │  - Stop: Graceful shutdown (SIGTERM→SIGKILL) │         │
	│  │  - Remove: Cleanup container and snapshot     │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │         Resource Management                   │         │
	│  │  - CPU: Shares (1024 = 1 core) + CFS quota   │         │
	│  │  - Memory: Hard limits parsed from "512m" etc │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │           Network & Exec                      │         │
	│  │  - CreateNetwork: per-evaluation Linux bridge │         │
	│  │  - ExecContainer: hooks and rubric collectors │         │
	│  │  - WaitContainer: container-group termination │         │
	│  └────────────────────────────────────────────────┘        │
	│                                                             │
	│  ┌──────────────────────────────────────────────┐         │
	│  │             Containerd Daemon                 │         │
	│  │  - Namespace: judgehost                       │         │
	│  │  - Snapshotter: overlayfs for layers          │         │
	│  │  - Runtime: runc (io.containerd.runc.v2)      │         │
	│  └────────────────────────────────────────────────┘        │
	└─────────────────────────────────────────────────────────┘

# Core Components

Runtime:
  - The facade interface every caller (registry, orchestrator) depends on
  - Implemented by ContainerdRuntime for production and Fake (fake.go) for tests

ContainerdRuntime:
  - Wraps a *containerd.Client plus a fixed namespace
  - Thread-safe for concurrent operations; each method wraps its own namespaced context

# Container Lifecycle

Create Container:
  1. Resolve image from the local content store (ImageExists / image cache)
  2. Generate OCI runtime spec: env, command override, resource limits, mounts
  3. Create container with a fresh snapshot
  4. Verify the evaluation network exists, if one was requested
  5. Return the runtime container ID

Start Container:
  1. Load container by ID
  2. Create a containerd task (cio.NullIO — no persisted log stream)
  3. Start the task
  4. Return immediately; callers use health checks or WaitContainer to observe readiness

Stop Container:
  1. Load container and its task
  2. SIGTERM, then wait up to the given grace period
  3. SIGKILL on timeout
  4. Delete the task to free resources

# Usage

	rt, err := runtime.NewContainerdRuntime("")
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	id, err := rt.CreateContainer(ctx, runtime.ContainerCreateSpec{
		ID:    "db",
		Image: "postgres:16",
		Resources: &types.ResourceLimits{Memory: "512m", CPUs: 0.5},
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := rt.StartContainer(ctx, id); err != nil {
		log.Fatal(err)
	}

	result, err := rt.ExecContainer(ctx, id, []string{"/hooks/pre.sh"}, runtime.ExecOptions{
		Timeout: 30 * time.Second,
	})

# Resource Limits

CPU Limits:
  - CPUs=1.0 → 1024 CPU shares (relative weight) + CFS quota=100000µs/100000µs period
  - CPUs=0.5 → 512 shares + 50000µs quota

Memory Limits:
  - Memory string ("512m", "2g") parsed with binary multipliers, mapped onto
    cgroup memory.limit_in_bytes

# Design Patterns

Namespace Isolation:
  - All judgehost containers run in the "judgehost" containerd namespace
  - Context automatically wrapped via namespaces.WithNamespace

Networking:
  - containerd's client has no network object; judgehost manages per-evaluation
    Linux bridges directly with the `ip` command, the same exec-based approach
    the runtime uses for anything outside containerd's own API surface

Unimplemented Operations:
  - GetContainerLogs and CopyFromContainer return errors; rubric and artifact
    collection go through ExecContainer output and bind-mounted /out
    directories instead, which this model needs regardless of log streaming

# Integration Points

This package integrates with:

  - pkg/types: ContainerSpec, ResourceLimits, ContainerState
  - pkg/orchestrator: container-group lifecycle driver
  - pkg/imagecache: build-once image reuse across submissions
  - pkg/runtime/fake.go: in-memory test double satisfying the same interface

# See Also

  - pkg/orchestrator for evaluation scheduling
  - pkg/imagecache for image build caching
  - containerd documentation: https://containerd.io/
  - OCI runtime spec: https://github.com/opencontainers/runtime-spec
*/
package runtime
