package orchestrator

import (
	"testing"

	"github.com/cuemby/judgehost/pkg/types"
)

func TestResourcesForNoCapsPassesThrough(t *testing.T) {
	o := &Orchestrator{}
	cs := &types.ContainerSpec{Resources: &types.ResourceLimits{Memory: "2g", CPUs: 4}}
	got := o.resourcesFor(cs)
	if got.Memory != "2g" || got.CPUs != 4 {
		t.Fatalf("expected unclamped resources, got %+v", got)
	}
}

func TestResourcesForClampsOverCPUCap(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxCPUCores: 1.5}}
	cs := &types.ContainerSpec{Resources: &types.ResourceLimits{CPUs: 4}}
	got := o.resourcesFor(cs)
	if got.CPUs != 1.5 {
		t.Fatalf("expected CPUs clamped to 1.5, got %v", got.CPUs)
	}
}

func TestResourcesForClampsOverMemoryCap(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxMemoryMB: 512}}
	cs := &types.ContainerSpec{Resources: &types.ResourceLimits{Memory: "2g"}}
	got := o.resourcesFor(cs)
	if got.Memory != "512m" {
		t.Fatalf("expected memory clamped to 512m, got %v", got.Memory)
	}
}

func TestResourcesForLeavesUnderCapAlone(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxMemoryMB: 1024, MaxCPUCores: 2}}
	cs := &types.ContainerSpec{Resources: &types.ResourceLimits{Memory: "256m", CPUs: 0.5}}
	got := o.resourcesFor(cs)
	if got.Memory != "256m" || got.CPUs != 0.5 {
		t.Fatalf("expected under-cap resources untouched, got %+v", got)
	}
}

func TestResourcesForAppliesCapWhenUnset(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxMemoryMB: 256, MaxCPUCores: 1}}
	cs := &types.ContainerSpec{}
	got := o.resourcesFor(cs)
	if got.Memory != "256m" || got.CPUs != 1 {
		t.Fatalf("expected cap applied to an unset resource spec, got %+v", got)
	}
}
