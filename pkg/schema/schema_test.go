package schema

import (
	"testing"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/types"
)

func validConfig() *types.ProblemConfig {
	return &types.ProblemConfig{
		ProblemID: "binary-search-tree",
		Containers: []*types.ContainerSpec{
			{ContainerID: "db", EvalStage: true},
			{ContainerID: "app", EvalStage: true, DependsOn: []*types.DependsOn{
				{ContainerID: "db", Condition: types.WaitHealthy},
			}},
		},
		Rubrics: []*types.RubricSpec{
			{RubricID: "unit-tests", ContainerID: "app", RubricType: types.RubricTestCases, MaxScore: 100},
		},
	}
}

func TestValidateProblemConfig_Valid(t *testing.T) {
	if err := ValidateProblemConfig(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateProblemConfig_BadProblemID(t *testing.T) {
	cfg := validConfig()
	cfg.ProblemID = "BadID!"

	err := ValidateProblemConfig(cfg)
	assertInvalidPackage(t, err)
}

func TestValidateProblemConfig_TooManyContainers(t *testing.T) {
	cfg := validConfig()
	cfg.Containers = nil
	for i := 0; i < 11; i++ {
		cfg.Containers = append(cfg.Containers, &types.ContainerSpec{ContainerID: "c" + string(rune('a'+i)), EvalStage: true})
	}

	err := ValidateProblemConfig(cfg)
	assertInvalidPackage(t, err)
}

func TestValidateProblemConfig_UnknownDependency(t *testing.T) {
	cfg := validConfig()
	cfg.Containers[1].DependsOn = []*types.DependsOn{{ContainerID: "ghost", Condition: types.WaitStarted}}

	err := ValidateProblemConfig(cfg)
	assertInvalidPackage(t, err)
}

func TestValidateProblemConfig_CircularDependency(t *testing.T) {
	cfg := validConfig()
	cfg.Containers[0].DependsOn = []*types.DependsOn{{ContainerID: "app", Condition: types.WaitStarted}}

	err := ValidateProblemConfig(cfg)
	assertInvalidPackage(t, err)
}

func TestValidateProblemConfig_RubricReferencesUnknownContainer(t *testing.T) {
	cfg := validConfig()
	cfg.Rubrics[0].ContainerID = "ghost"

	err := ValidateProblemConfig(cfg)
	assertInvalidPackage(t, err)
}

func assertInvalidPackage(t *testing.T, err error) {
	t.Helper()
	je, ok := jherrors.As(err)
	if !ok || je.Code != jherrors.CodeInvalidPackage {
		t.Fatalf("expected InvalidPackage, got %v", err)
	}
}
