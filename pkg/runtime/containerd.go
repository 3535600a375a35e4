package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/types"
)

const (
	// DefaultNamespace is the containerd namespace judgehost operates in.
	DefaultNamespace = "judgehost"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdRuntime implements Runtime against a local containerd daemon.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
}

// NewContainerdRuntime connects to containerd at socketPath (DefaultSocketPath
// when empty).
func NewContainerdRuntime(socketPath string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, jherrors.RuntimeError("connect to containerd", err)
	}

	return &ContainerdRuntime{client: client, namespace: DefaultNamespace}, nil
}

// Close closes the containerd client connection.
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *ContainerdRuntime) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, r.namespace)
}

// BuildImage builds contextPath into tag. containerd has no built-in image
// builder, so judgehost shells out to a local buildkit-compatible
// frontend, the same exec-based approach CreateNetwork uses for operations
// containerd's client API doesn't cover natively.
func (r *ContainerdRuntime) BuildImage(ctx context.Context, contextPath, tag string, opts BuildOptions) error {
	dockerfile := opts.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	args := []string{
		"build",
		"--frontend=dockerfile.v0",
		"--local", "context=" + contextPath,
		"--local", "dockerfile=" + contextPath,
		"--opt", "filename=" + dockerfile,
		"--output", "type=image,name=" + tag,
	}
	for k, v := range opts.BuildArgs {
		args = append(args, "--opt", fmt.Sprintf("build-arg:%s=%s", k, v))
	}

	buildCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(buildCtx, "buildctl", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return jherrors.BuildFailed(tag, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

// ImageExists reports whether tag is already present in the content store.
func (r *ContainerdRuntime) ImageExists(ctx context.Context, tag string) (bool, error) {
	ctx = r.ctx(ctx)
	_, err := r.client.GetImage(ctx, tag)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// CreateNetwork creates a Linux bridge for a multi-container evaluation.
// containerd's client has no first-class network object (that's CNI's
// job); judgehost manages the bridge directly with `ip`, the same
// exec-based approach the teacher uses for container IP inspection.
func (r *ContainerdRuntime) CreateNetwork(ctx context.Context, name string, opts NetworkOptions) (string, error) {
	if err := runIP(ctx, "link", "add", name, "type", "bridge"); err != nil {
		return "", jherrors.RuntimeError("create bridge "+name, err)
	}
	if err := runIP(ctx, "link", "set", name, "up"); err != nil {
		return "", jherrors.RuntimeError("bring up bridge "+name, err)
	}
	if opts.Subnet != "" {
		if err := runIP(ctx, "addr", "add", opts.Subnet, "dev", name); err != nil {
			return "", jherrors.RuntimeError("assign subnet to "+name, err)
		}
	}
	return name, nil
}

// RemoveNetwork deletes a bridge created by CreateNetwork.
func (r *ContainerdRuntime) RemoveNetwork(ctx context.Context, nameOrID string) error {
	if err := runIP(ctx, "link", "delete", nameOrID, "type", "bridge"); err != nil {
		return jherrors.RuntimeError("remove bridge "+nameOrID, err)
	}
	return nil
}

// ListNetworks lists the bridges judgehost has created.
func (r *ContainerdRuntime) ListNetworks(ctx context.Context, filters map[string]string) ([]NetworkInfo, error) {
	out, err := exec.CommandContext(ctx, "ip", "-o", "link", "show", "type", "bridge").CombinedOutput()
	if err != nil {
		return nil, jherrors.RuntimeError("list bridges", fmt.Errorf("%w: %s", err, out))
	}

	var nets []NetworkInfo
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSuffix(fields[1], ":")
		if prefix, ok := filters["name_prefix"]; ok && !strings.HasPrefix(name, prefix) {
			continue
		}
		nets = append(nets, NetworkInfo{ID: name, Name: name})
	}
	return nets, nil
}

func runIP(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "ip", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}

// CreateContainer creates (but does not start) one evaluation container.
func (r *ContainerdRuntime) CreateContainer(ctx context.Context, spec ContainerCreateSpec) (string, error) {
	ctx = r.ctx(ctx)

	image, err := r.client.GetImage(ctx, spec.Image)
	if err != nil {
		return "", jherrors.RuntimeError("get image "+spec.Image, err)
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(spec.Env),
		oci.WithHostname(spec.ID),
	}
	if len(spec.Command) > 0 {
		opts = append(opts, oci.WithProcessArgs(spec.Command...))
	}

	if spec.Resources != nil {
		if spec.Resources.CPUs > 0 {
			shares := uint64(spec.Resources.CPUs * 1024)
			quota := int64(spec.Resources.CPUs * 100000)
			opts = append(opts, oci.WithCPUShares(shares), oci.WithCPUCFS(quota, 100000))
		}
		if mem := parseMemoryBytes(spec.Resources.Memory); mem > 0 {
			opts = append(opts, oci.WithMemoryLimit(uint64(mem)))
		}
	}

	var mounts []specs.Mount
	for _, m := range spec.Mounts {
		mountOpts := []string{"rbind"}
		if m.ReadOnly {
			mountOpts = append(mountOpts, "ro")
		} else {
			mountOpts = append(mountOpts, "rw")
		}
		mounts = append(mounts, specs.Mount{
			Source:      m.Source,
			Destination: m.Target,
			Type:        "bind",
			Options:     mountOpts,
		})
	}
	if len(mounts) > 0 {
		opts = append(opts, oci.WithMounts(mounts))
	}

	ctrdContainer, err := r.client.NewContainer(
		ctx,
		spec.ID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.ID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return "", jherrors.RuntimeError("create container "+spec.ID, err)
	}

	if spec.NetworkName != "" {
		if err := runIP(ctx, "link", "show", spec.NetworkName); err != nil {
			return "", jherrors.RuntimeError("verify network "+spec.NetworkName, err)
		}
	}

	return ctrdContainer.ID(), nil
}

// StartContainer starts a container's task.
func (r *ContainerdRuntime) StartContainer(ctx context.Context, id string) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return jherrors.RuntimeError("load container "+id, err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return jherrors.RuntimeError("create task for "+id, err)
	}

	if err := task.Start(ctx); err != nil {
		return jherrors.RuntimeError("start task for "+id, err)
	}

	return nil
}

// StopContainer sends SIGTERM, waits up to grace, then force-kills.
func (r *ContainerdRuntime) StopContainer(ctx context.Context, id string, grace time.Duration) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return jherrors.RuntimeError("load container "+id, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil // no task: nothing running to stop
	}

	stopCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return jherrors.RuntimeError("SIGTERM "+id, err)
	}

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return jherrors.RuntimeError("wait for "+id, err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return jherrors.RuntimeError("SIGKILL "+id, err)
		}
	}

	if _, err := task.Delete(ctx); err != nil {
		return jherrors.RuntimeError("delete task for "+id, err)
	}
	return nil
}

// KillContainer sends SIGKILL immediately.
func (r *ContainerdRuntime) KillContainer(ctx context.Context, id string) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return jherrors.RuntimeError("load container "+id, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil
	}
	if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
		return jherrors.RuntimeError("SIGKILL "+id, err)
	}
	return nil
}

// RemoveContainer deletes a container and its snapshot.
func (r *ContainerdRuntime) RemoveContainer(ctx context.Context, id string, opts RemoveOptions) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return nil // already gone
	}

	if opts.Force {
		_ = r.StopContainer(ctx, id, 10*time.Second)
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return jherrors.RuntimeError("delete container "+id, err)
	}
	return nil
}

// InspectContainer maps containerd task status onto types.ContainerState.
func (r *ContainerdRuntime) InspectContainer(ctx context.Context, id string) (types.ContainerState, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return types.ContainerStateFailed, jherrors.RuntimeError("load container "+id, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return types.ContainerStatePending, nil
	}

	status, err := task.Status(ctx)
	if err != nil {
		return types.ContainerStateFailed, jherrors.RuntimeError("task status "+id, err)
	}

	switch status.Status {
	case containerd.Running, containerd.Paused:
		return types.ContainerStateRunning, nil
	case containerd.Stopped:
		if status.ExitStatus == 0 {
			return types.ContainerStateComplete, nil
		}
		return types.ContainerStateFailed, nil
	default:
		return types.ContainerStatePending, nil
	}
}

// ExecContainer runs cmd inside a running container's namespace and
// collects its output.
func (r *ContainerdRuntime) ExecContainer(ctx context.Context, id string, cmd []string, opts ExecOptions) (ExecResult, error) {
	ctx = r.ctx(ctx)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return ExecResult{}, jherrors.RuntimeError("load container "+id, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return ExecResult{}, jherrors.RuntimeError("get task "+id, err)
	}

	spec, err := container.Spec(ctx)
	if err != nil {
		return ExecResult{}, jherrors.RuntimeError("read spec "+id, err)
	}
	procSpec := spec.Process
	procSpec.Args = cmd
	procSpec.Env = append(procSpec.Env, opts.Env...)

	var stdout, stderr bytes.Buffer
	execID := fmt.Sprintf("exec-%d", time.Now().UnixNano())
	process, err := task.Exec(ctx, execID, procSpec, cio.NewCreator(cio.WithStreams(nil, &stdout, &stderr)))
	if err != nil {
		return ExecResult{}, jherrors.RuntimeError("exec in "+id, err)
	}

	statusC, err := process.Wait(ctx)
	if err != nil {
		return ExecResult{}, jherrors.RuntimeError("wait exec in "+id, err)
	}

	if err := process.Start(ctx); err != nil {
		return ExecResult{}, jherrors.RuntimeError("start exec in "+id, err)
	}

	status := <-statusC
	code, _, err := status.Result()
	if err != nil {
		return ExecResult{}, jherrors.RuntimeError("exec result in "+id, err)
	}

	return ExecResult{
		ExitCode: int(code),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// WaitContainer blocks until the container's task exits and returns its
// exit code.
func (r *ContainerdRuntime) WaitContainer(ctx context.Context, id string) (int, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return -1, jherrors.RuntimeError("load container "+id, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return -1, jherrors.RuntimeError("get task "+id, err)
	}

	statusC, err := task.Wait(ctx)
	if err != nil {
		return -1, jherrors.RuntimeError("wait for "+id, err)
	}

	status := <-statusC
	code, _, err := status.Result()
	if err != nil {
		return -1, jherrors.RuntimeError("wait result "+id, err)
	}
	return int(code), nil
}

// GetContainerLogs is unimplemented for the containerd backend: judgehost
// runs containers with cio.NullIO (no persisted stream), matching the
// teacher's own "logs not yet implemented" stub. Rubric collection reads
// container output through ExecContainer or the bind-mounted /out
// directory instead of a log stream.
func (r *ContainerdRuntime) GetContainerLogs(ctx context.Context, id string, opts LogOptions) (io.ReadCloser, error) {
	return nil, jherrors.RuntimeError("get logs "+id, fmt.Errorf("log streaming not implemented for the containerd backend"))
}

// CopyFromContainer is unimplemented for the containerd backend; artifact
// collection instead runs through bind-mounted /out directories (§4.5),
// which avoids needing a copy-out code path for the common case.
func (r *ContainerdRuntime) CopyFromContainer(ctx context.Context, id, path string) (io.ReadCloser, error) {
	return nil, jherrors.RuntimeError("copy from "+id, fmt.Errorf("use bind-mounted artifact directories instead"))
}

// parseMemoryBytes parses "<N>[kmgt][b]?" with binary multipliers (§5).
func parseMemoryBytes(s string) int64 {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	s = strings.TrimSuffix(s, "b")

	var mult int64 = 1
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1024
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "g"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "g")
	case strings.HasSuffix(s, "t"):
		mult = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "t")
	}

	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0
	}
	return n * mult
}
