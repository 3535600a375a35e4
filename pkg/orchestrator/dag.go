package orchestrator

import (
	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/types"
)

// topoSort orders containers so each one follows every container it
// depends_on, via Kahn's algorithm (§4.4 step 5). Ties (containers with
// no remaining dependency) resolve in config order, so the sort is stable
// for specs with no dependencies at all.
func topoSort(containers []*types.ContainerSpec) ([]*types.ContainerSpec, error) {
	byID := make(map[string]*types.ContainerSpec, len(containers))
	indegree := make(map[string]int, len(containers))
	dependents := make(map[string][]string, len(containers))

	for _, cs := range containers {
		byID[cs.ContainerID] = cs
		if _, ok := indegree[cs.ContainerID]; !ok {
			indegree[cs.ContainerID] = 0
		}
	}
	for _, cs := range containers {
		for _, dep := range cs.DependsOn {
			indegree[cs.ContainerID]++
			dependents[dep.ContainerID] = append(dependents[dep.ContainerID], cs.ContainerID)
		}
	}

	var ready []string
	for _, cs := range containers {
		if indegree[cs.ContainerID] == 0 {
			ready = append(ready, cs.ContainerID)
		}
	}

	var order []*types.ContainerSpec
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, byID[id])

		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(containers) {
		for id, deg := range indegree {
			if deg > 0 {
				return nil, jherrors.CircularDependency(id)
			}
		}
		return nil, jherrors.CircularDependency("unknown")
	}

	return order, nil
}
