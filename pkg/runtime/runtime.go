// Package runtime defines the Container Runtime Facade: the abstract
// boundary between the judge host and the container daemon actually
// executing submissions (§6). ContainerdRuntime is the production
// implementation; fake.go supplies an in-memory double for tests,
// replacing the teacher's monkey-patched test seams with interface
// injection (§9).
package runtime

import (
	"context"
	"io"
	"time"

	"github.com/cuemby/judgehost/pkg/types"
)

// Runtime is the Container Runtime Facade (§6).
type Runtime interface {
	BuildImage(ctx context.Context, contextPath, tag string, opts BuildOptions) error
	ImageExists(ctx context.Context, tag string) (bool, error)

	CreateNetwork(ctx context.Context, name string, opts NetworkOptions) (string, error)
	RemoveNetwork(ctx context.Context, nameOrID string) error
	ListNetworks(ctx context.Context, filters map[string]string) ([]NetworkInfo, error)

	CreateContainer(ctx context.Context, spec ContainerCreateSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, grace time.Duration) error
	KillContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string, opts RemoveOptions) error
	InspectContainer(ctx context.Context, id string) (types.ContainerState, error)
	ExecContainer(ctx context.Context, id string, cmd []string, opts ExecOptions) (ExecResult, error)
	WaitContainer(ctx context.Context, id string) (int, error)
	GetContainerLogs(ctx context.Context, id string, opts LogOptions) (io.ReadCloser, error)
	CopyFromContainer(ctx context.Context, id, path string) (io.ReadCloser, error)
}

// BuildOptions configures an image build.
type BuildOptions struct {
	Dockerfile string // path relative to contextPath, default "Dockerfile"
	BuildArgs  map[string]string
	Timeout    time.Duration
}

// NetworkOptions configures network creation.
type NetworkOptions struct {
	Subnet string // CIDR assigned to the bridge; no address is assigned if empty
}

// NetworkInfo describes an existing network.
type NetworkInfo struct {
	ID   string
	Name string
}

// ContainerCreateSpec is everything needed to create one evaluation
// container (§4.4 step 6). Health checks aren't part of it: containerd has
// no native HEALTHCHECK concept, so a dependency's "healthy" condition is
// probed from the Orchestrator side (pkg/health), against the running
// container, rather than configured into the runtime at create time.
type ContainerCreateSpec struct {
	ID           string // desired container_id (unique within the evaluation)
	Image        string
	Env          []string
	Command      []string // overrides the image entrypoint when non-empty
	Mounts       []types.Mount
	NetworkName  string
	NetworkAlias string
	Resources    *types.ResourceLimits
}

// RemoveOptions configures container removal.
type RemoveOptions struct {
	Force   bool
	Volumes bool
}

// ExecOptions configures a one-shot exec inside a running container.
type ExecOptions struct {
	Timeout time.Duration
	Env     []string
}

// ExecResult is the outcome of ExecContainer.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// LogOptions configures GetContainerLogs.
type LogOptions struct {
	Stdout     bool
	Stderr     bool
	Timestamps bool
}
