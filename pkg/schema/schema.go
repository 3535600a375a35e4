// Package schema validates a parsed ProblemConfig against the structural
// rules in spec §3, compiled once at load time rather than re-parsed on
// every validation call (§9: "JSON-schema validation at runtime → schema
// compilation at startup; schema failures produce structured field-level
// errors").
//
// No third-party JSON-schema library is used: none of the retrieved
// example repositories import one (see DESIGN.md), so this is a small,
// purpose-built declarative validator over the one document shape this
// host needs to check.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/types"
)

var (
	problemIDPattern   = regexp.MustCompile(`^[a-z][a-z0-9-]{2,63}$`)
	containerIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,31}$`)
)

var validRubricTypes = map[types.RubricType]bool{
	types.RubricTestCases:            true,
	types.RubricPerformanceBenchmark: true,
	types.RubricCodeQuality:          true,
	types.RubricSecurityScan:         true,
	types.RubricAPIEndpoints:         true,
	types.RubricDatabaseIntegrity:    true,
	types.RubricUITests:              true,
	types.RubricCustom:               true,
}

var validConditions = map[types.WaitCondition]bool{
	types.WaitStarted:   true,
	types.WaitHealthy:   true,
	types.WaitCompleted: true,
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidateProblemConfig checks cfg against the §3 invariants: problem_id
// and container_id shape, container count bounds, rubric container-id
// cross-references, and dependency cycles. It returns a single
// jherrors.InvalidPackage error aggregating every violation found.
func ValidateProblemConfig(cfg *types.ProblemConfig) error {
	var errs []FieldError

	if !problemIDPattern.MatchString(cfg.ProblemID) {
		errs = append(errs, FieldError{"problem_id", "must match ^[a-z][a-z0-9-]{2,63}$"})
	}

	if len(cfg.Containers) == 0 {
		errs = append(errs, FieldError{"containers", "must declare at least 1 container"})
	}
	if len(cfg.Containers) > 10 {
		errs = append(errs, FieldError{"containers", "must declare at most 10 containers"})
	}

	seen := make(map[string]bool, len(cfg.Containers))
	for i, cs := range cfg.Containers {
		field := fmt.Sprintf("containers[%d]", i)
		if !containerIDPattern.MatchString(cs.ContainerID) {
			errs = append(errs, FieldError{field + ".container_id", "must match ^[a-z][a-z0-9_-]{1,31}$"})
			continue
		}
		if seen[cs.ContainerID] {
			errs = append(errs, FieldError{field + ".container_id", "duplicate container_id: " + cs.ContainerID})
		}
		seen[cs.ContainerID] = true

		for j, dep := range cs.DependsOn {
			depField := fmt.Sprintf("%s.depends_on[%d]", field, j)
			if dep.Condition != "" && !validConditions[dep.Condition] {
				errs = append(errs, FieldError{depField + ".condition", "unknown wait condition: " + string(dep.Condition)})
			}
		}
	}

	for i, cs := range cfg.Containers {
		field := fmt.Sprintf("containers[%d].depends_on", i)
		for j, dep := range cs.DependsOn {
			if !seen[dep.ContainerID] {
				errs = append(errs, FieldError{fmt.Sprintf("%s[%d].container_id", field, j), "references unknown container_id: " + dep.ContainerID})
			}
		}
	}

	if cyclic := findCycle(cfg.Containers); cyclic != "" {
		errs = append(errs, FieldError{"containers", "circular dependency at container_id: " + cyclic})
	}

	for i, r := range cfg.Rubrics {
		field := fmt.Sprintf("rubrics[%d]", i)
		if r.RubricID == "" {
			errs = append(errs, FieldError{field + ".rubric_id", "must be non-empty"})
		}
		if !validRubricTypes[r.RubricType] {
			errs = append(errs, FieldError{field + ".rubric_type", "unknown rubric_type: " + string(r.RubricType)})
		}
		if r.MaxScore < 0 {
			errs = append(errs, FieldError{field + ".max_score", "must be >= 0"})
		}
		if r.ContainerID != "" && !seen[r.ContainerID] {
			errs = append(errs, FieldError{field + ".container_id", "references unknown container_id: " + r.ContainerID})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return jherrors.InvalidPackage(formatErrors(errs))
}

func formatErrors(errs []FieldError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.String()
	}
	return strings.Join(msgs, "; ")
}

// findCycle runs a DFS over the depends_on graph and returns the
// container_id where a cycle is first detected, or "" if the graph is a
// DAG (§4.4 step 5: "Fail with CircularDependency on any cycle").
func findCycle(containers []*types.ContainerSpec) string {
	byID := make(map[string]*types.ContainerSpec, len(containers))
	for _, cs := range containers {
		byID[cs.ContainerID] = cs
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(containers))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		cs := byID[id]
		if cs != nil {
			for _, dep := range cs.DependsOn {
				switch color[dep.ContainerID] {
				case gray:
					return dep.ContainerID
				case white:
					if cyc := visit(dep.ContainerID); cyc != "" {
						return cyc
					}
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, cs := range containers {
		if color[cs.ContainerID] == white {
			if cyc := visit(cs.ContainerID); cyc != "" {
				return cyc
			}
		}
	}
	return ""
}
