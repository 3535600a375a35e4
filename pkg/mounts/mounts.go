// Package mounts implements the Mount Layout Contract (§4.5): the set of
// bind mounts the Orchestrator attaches to each evaluation container,
// derived from the problem package, the submission directory, and a
// per-evaluation results tree.
package mounts

import (
	"os"
	"path/filepath"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/types"
)

// Resolve computes the bind mounts for one container within one evaluation,
// per the §4.5 table. evalDir is the per-evaluation results root
// (<results>/); pkgDir is the problem package root; submissionDir is the
// extracted submission directory (may be empty when the container does not
// accept a submission).
//
// Mount sources that don't exist are omitted, except the submission mount
// for accepts_submission=true, which is a hard InvalidPackage-class error.
func Resolve(evalDir, pkgDir, submissionDir string, cs *types.ContainerSpec, multiContainer bool) ([]types.Mount, error) {
	logger := log.WithComponent("mounts")
	var result []types.Mount

	containerPkgDir := firstExistingDir(
		filepath.Join(pkgDir, "containers", cs.ContainerID),
		filepath.Join(pkgDir, cs.ContainerID),
	)
	if containerPkgDir != "" {
		m, err := roMount(containerPkgDir, "/workspace/problem")
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	} else {
		logger.Debug().Str("container_id", cs.ContainerID).Msg("no problem workspace directory found, skipping mount")
	}

	if containerPkgDir != "" {
		dataDir := filepath.Join(containerPkgDir, "data")
		if dirExists(dataDir) {
			m, err := roMount(dataDir, "/data")
			if err != nil {
				return nil, err
			}
			result = append(result, m)
		}
	}

	hooksDir := firstExistingDir(
		filepath.Join(pkgDir, "containers", cs.ContainerID, "hooks"),
		filepath.Join(pkgDir, "hooks"),
	)
	if hooksDir != "" {
		m, err := roMount(hooksDir, "/hooks")
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	if cs.AcceptsSubmission {
		if !dirExists(submissionDir) {
			return nil, jherrors.InvalidPackage("submission directory does not exist for accepts_submission container " + cs.ContainerID)
		}
		target := "/submission"
		if cs.MountSubmissionAt != "" {
			target = cs.MountSubmissionAt
		}
		m, err := roMount(submissionDir, target)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	outDir := filepath.Join(evalDir, "containers", cs.ContainerID, "out")
	if err := os.MkdirAll(outDir, 0o777); err != nil {
		return nil, jherrors.Internal("creating /out directory for "+cs.ContainerID, err)
	}
	m, err := rwMount(outDir, "/out")
	if err != nil {
		return nil, err
	}
	result = append(result, m)

	if multiContainer {
		sharedDir := filepath.Join(evalDir, "shared")
		if err := os.MkdirAll(sharedDir, 0o777); err != nil {
			return nil, jherrors.Internal("creating /shared directory", err)
		}
		m, err := rwMount(sharedDir, "/shared")
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	workspaceDir := filepath.Join(evalDir, "workspace", cs.ContainerID)
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return nil, jherrors.Internal("creating /workspace directory for "+cs.ContainerID, err)
	}
	m, err = rwMount(workspaceDir, "/workspace")
	if err != nil {
		return nil, err
	}
	result = append(result, m)

	return result, nil
}

func roMount(source, target string) (types.Mount, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return types.Mount{}, jherrors.Internal("resolving absolute path for "+source, err)
	}
	return types.Mount{Source: abs, Target: target, ReadOnly: true}, nil
}

func rwMount(source, target string) (types.Mount, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return types.Mount{}, jherrors.Internal("resolving absolute path for "+source, err)
	}
	return types.Mount{Source: abs, Target: target, ReadOnly: false}, nil
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// firstExistingDir returns the first candidate that exists as a directory,
// or "" if none do.
func firstExistingDir(candidates ...string) string {
	for _, c := range candidates {
		if dirExists(c) {
			return c
		}
	}
	return ""
}
