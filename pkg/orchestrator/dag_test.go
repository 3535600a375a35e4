package orchestrator

import (
	"testing"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/types"
)

func container(id string, deps ...string) *types.ContainerSpec {
	cs := &types.ContainerSpec{ContainerID: id}
	for _, d := range deps {
		cs.DependsOn = append(cs.DependsOn, &types.DependsOn{ContainerID: d, Condition: types.WaitStarted})
	}
	return cs
}

func TestTopoSortNoDependencies(t *testing.T) {
	in := []*types.ContainerSpec{container("a"), container("b"), container("c")}
	out, err := topoSort(in)
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 containers, got %d", len(out))
	}
}

func TestTopoSortLinearChain(t *testing.T) {
	in := []*types.ContainerSpec{
		container("db"),
		container("api", "db"),
		container("web", "api"),
	}
	out, err := topoSort(in)
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}

	pos := make(map[string]int, len(out))
	for i, cs := range out {
		pos[cs.ContainerID] = i
	}
	if pos["db"] >= pos["api"] {
		t.Fatalf("db must precede api, got order %v", keysInOrder(out))
	}
	if pos["api"] >= pos["web"] {
		t.Fatalf("api must precede web, got order %v", keysInOrder(out))
	}
}

func TestTopoSortDiamond(t *testing.T) {
	in := []*types.ContainerSpec{
		container("db"),
		container("migrate", "db"),
		container("cache", "db"),
		container("web", "migrate", "cache"),
	}
	out, err := topoSort(in)
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}
	pos := make(map[string]int, len(out))
	for i, cs := range out {
		pos[cs.ContainerID] = i
	}
	if pos["db"] >= pos["migrate"] || pos["db"] >= pos["cache"] {
		t.Fatalf("db must precede migrate and cache, got order %v", keysInOrder(out))
	}
	if pos["migrate"] >= pos["web"] || pos["cache"] >= pos["web"] {
		t.Fatalf("migrate and cache must precede web, got order %v", keysInOrder(out))
	}
}

func TestTopoSortCycleDetected(t *testing.T) {
	in := []*types.ContainerSpec{
		container("a", "b"),
		container("b", "a"),
	}
	_, err := topoSort(in)
	if err == nil {
		t.Fatal("expected a circular dependency error")
	}
	if !jherrors.Is(err, jherrors.CodeCircularDependency) {
		t.Fatalf("expected CodeCircularDependency, got %v", err)
	}
}

func TestTopoSortSelfCycle(t *testing.T) {
	in := []*types.ContainerSpec{container("a", "a")}
	_, err := topoSort(in)
	if err == nil {
		t.Fatal("expected a circular dependency error")
	}
	if !jherrors.Is(err, jherrors.CodeCircularDependency) {
		t.Fatalf("expected CodeCircularDependency, got %v", err)
	}
}

func keysInOrder(specs []*types.ContainerSpec) []string {
	out := make([]string, len(specs))
	for i, cs := range specs {
		out[i] = cs.ContainerID
	}
	return out
}
