package runtime

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/judgehost/pkg/types"
)

// Fake is an in-memory Runtime double for orchestrator and registry tests
// (§9: "Tests use an in-memory fake satisfying the same interface").
type Fake struct {
	mu sync.Mutex

	images     map[string]bool
	networks   map[string]NetworkInfo
	containers map[string]*fakeContainer

	// ExecFunc, when set, overrides the default "succeed with exit 0"
	// behavior of ExecContainer so tests can script hook/rubric outcomes.
	ExecFunc func(id string, cmd []string) (ExecResult, error)

	// FailCreate, when set, makes CreateContainer fail for the named ID.
	FailCreate map[string]error
}

type fakeContainer struct {
	spec      ContainerCreateSpec
	state     types.ContainerState
	exitCode  int
	createdAt time.Time
}

// NewFake returns an empty Fake runtime.
func NewFake() *Fake {
	return &Fake{
		images:     make(map[string]bool),
		networks:   make(map[string]NetworkInfo),
		containers: make(map[string]*fakeContainer),
	}
}

// SeedImage marks tag as already present, as if a prior BuildImage ran.
func (f *Fake) SeedImage(tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[tag] = true
}

func (f *Fake) BuildImage(ctx context.Context, contextPath, tag string, opts BuildOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[tag] = true
	return nil
}

func (f *Fake) ImageExists(ctx context.Context, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[tag], nil
}

func (f *Fake) CreateNetwork(ctx context.Context, name string, opts NetworkOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks[name] = NetworkInfo{ID: name, Name: name}
	return name, nil
}

func (f *Fake) RemoveNetwork(ctx context.Context, nameOrID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.networks, nameOrID)
	return nil
}

func (f *Fake) ListNetworks(ctx context.Context, filters map[string]string) ([]NetworkInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nets := make([]NetworkInfo, 0, len(f.networks))
	for _, n := range f.networks {
		nets = append(nets, n)
	}
	return nets, nil
}

func (f *Fake) CreateContainer(ctx context.Context, spec ContainerCreateSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailCreate[spec.ID]; err != nil {
		return "", err
	}
	if _, exists := f.containers[spec.ID]; exists {
		return "", fmt.Errorf("container %s already exists", spec.ID)
	}

	f.containers[spec.ID] = &fakeContainer{
		spec:      spec,
		state:     types.ContainerStatePending,
		createdAt: time.Now(),
	}
	return spec.ID, nil
}

func (f *Fake) StartContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[id]
	if !ok {
		return fmt.Errorf("container %s not found", id)
	}
	c.state = types.ContainerStateRunning
	return nil
}

func (f *Fake) StopContainer(ctx context.Context, id string, grace time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[id]
	if !ok {
		return nil
	}
	c.state = types.ContainerStateShutdown
	return nil
}

func (f *Fake) KillContainer(ctx context.Context, id string) error {
	return f.StopContainer(ctx, id, 0)
}

func (f *Fake) RemoveContainer(ctx context.Context, id string, opts RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, id)
	return nil
}

func (f *Fake) InspectContainer(ctx context.Context, id string) (types.ContainerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[id]
	if !ok {
		return types.ContainerStateFailed, fmt.Errorf("container %s not found", id)
	}
	return c.state, nil
}

// SetExited marks a container as having exited with code, used by tests
// to drive WaitContainer/InspectContainer transitions deterministically.
func (f *Fake) SetExited(id string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[id]
	if !ok {
		return
	}
	c.exitCode = code
	if code == 0 {
		c.state = types.ContainerStateComplete
	} else {
		c.state = types.ContainerStateFailed
	}
}

func (f *Fake) ExecContainer(ctx context.Context, id string, cmd []string, opts ExecOptions) (ExecResult, error) {
	f.mu.Lock()
	hook := f.ExecFunc
	f.mu.Unlock()

	if hook != nil {
		return hook(id, cmd)
	}
	return ExecResult{ExitCode: 0}, nil
}

func (f *Fake) WaitContainer(ctx context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[id]
	if !ok {
		return -1, fmt.Errorf("container %s not found", id)
	}
	return c.exitCode, nil
}

func (f *Fake) GetContainerLogs(ctx context.Context, id string, opts LogOptions) (io.ReadCloser, error) {
	return nil, fmt.Errorf("log streaming not implemented by the fake runtime")
}

func (f *Fake) CopyFromContainer(ctx context.Context, id, path string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("copy-from not implemented by the fake runtime")
}

var _ Runtime = (*Fake)(nil)
