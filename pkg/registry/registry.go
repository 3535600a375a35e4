// Package registry implements the Problem Registry and Image Builder
// (§4.1): it accepts a problem package as a URL or byte buffer, materializes
// it on disk, validates config.json, builds one container image per
// container-spec per stage, and keeps an in-memory map of problem_id to
// ProblemRecord seeded from pkg/storage on startup.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/judgehost/pkg/archive"
	"github.com/cuemby/judgehost/pkg/fetcher"
	"github.com/cuemby/judgehost/pkg/imagecache"
	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/schema"
	"github.com/cuemby/judgehost/pkg/storage"
	"github.com/cuemby/judgehost/pkg/types"
)

// evalDockerfileNames is the eval Dockerfile fallback chain relative to a
// container's build context, in preference order (§4.1 "Validation").
var evalDockerfileNames = []string{"Dockerfile.eval", "Dockerfile"}

// IngestRequest is the Registry's ingest contract (§4.1).
type IngestRequest struct {
	ProblemID    string
	ArchiveURL   string
	ArchiveData  []byte
	Checksum     string
	ForceRebuild bool
}

// Registry is the in-memory map of problem_id to ProblemRecord, backed by
// pkg/storage for durability across restarts.
type Registry struct {
	mu sync.RWMutex

	problems map[string]*types.ProblemRecord

	store   storage.Store
	fetcher *fetcher.Fetcher
	cache   *imagecache.Cache
	runtime runtime.Runtime
	dataDir string // root under which package directories are materialized
	logger  zerolog.Logger
}

// New constructs a Registry. dataDir is the root directory under which
// each problem's extracted package lives, at <dataDir>/problems/<problem_id>.
func New(store storage.Store, f *fetcher.Fetcher, cache *imagecache.Cache, rt runtime.Runtime, dataDir string) *Registry {
	return &Registry{
		problems: make(map[string]*types.ProblemRecord),
		store:    store,
		fetcher:  f,
		cache:    cache,
		runtime:  rt,
		dataDir:  dataDir,
		logger:   log.WithComponent("registry"),
	}
}

// Load seeds the in-memory map from pkg/storage on startup (§2 component 5,
// §4.1 EXPANSION). For each persisted image tag it confirms the tag still
// exists in the Container Runtime Facade before seeding the Image Cache
// with it; a missing tag is simply left out, so the next evaluation of that
// problem pays one rebuild.
func (r *Registry) Load(ctx context.Context) error {
	records, err := r.store.ListProblems()
	if err != nil {
		return jherrors.Wrap(jherrors.CodeInternal, "loading problem records from storage", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		r.problems[record.ProblemID] = record

		for key, tag := range record.ImageTags {
			cid, stage, ok := splitImageTagKey(key)
			if !ok {
				continue
			}
			exists, err := r.runtime.ImageExists(ctx, tag)
			if err != nil {
				r.logger.Warn().Err(err).Str("problem_id", record.ProblemID).Str("tag", tag).
					Msg("checking persisted image tag on load")
				continue
			}
			if !exists {
				r.logger.Info().Str("problem_id", record.ProblemID).Str("tag", tag).
					Msg("persisted image tag no longer present, will rebuild on next use")
				continue
			}
			r.cache.Seed(imagecache.Key{ProblemID: record.ProblemID, ContainerID: cid, Stage: stage}, tag)
		}
	}

	r.logger.Info().Int("count", len(records)).Msg("problem registry loaded")
	return nil
}

func splitImageTagKey(key string) (cid, stage string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

// Get returns the ProblemRecord for problemID, or NotFound.
func (r *Registry) Get(problemID string) (*types.ProblemRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.problems[problemID]
	if !ok {
		return nil, jherrors.NotFound("problem", problemID)
	}
	return record, nil
}

// List returns every registered ProblemRecord.
func (r *Registry) List() []*types.ProblemRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.ProblemRecord, 0, len(r.problems))
	for _, record := range r.problems {
		out = append(out, record)
	}
	return out
}

// Ingest implements the ingest contract (§4.1): fetch or accept the
// archive, extract it, validate config.json, build every required image,
// and register the resulting ProblemRecord.
func (r *Registry) Ingest(ctx context.Context, req IngestRequest) (*types.ProblemRecord, error) {
	if req.ProblemID == "" {
		return nil, jherrors.InvalidInput("problem_id", "must be non-empty")
	}
	if req.ArchiveURL == "" && len(req.ArchiveData) == 0 {
		return nil, jherrors.InvalidInput("archive_url|archive_data", "one of archive_url or archive_data is required")
	}

	r.mu.RLock()
	_, exists := r.problems[req.ProblemID]
	r.mu.RUnlock()
	if exists && !req.ForceRebuild {
		return nil, jherrors.AlreadyRegistered(req.ProblemID)
	}

	data := req.ArchiveData
	if len(data) == 0 {
		fetched, err := r.fetcher.Fetch(ctx, req.ArchiveURL, req.Checksum)
		if err != nil {
			return nil, err
		}
		data = fetched
	} else if req.Checksum != "" {
		if err := checksumEqual(data, req.Checksum); err != nil {
			return nil, err
		}
	}

	packageDir := filepath.Join(r.dataDir, "problems", req.ProblemID)
	if err := os.RemoveAll(packageDir); err != nil {
		return nil, jherrors.Internal("clearing previous package directory", err)
	}
	if err := archive.Extract(data, packageDir); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(packageDir)
	if err != nil {
		return nil, err
	}
	if cfg.ProblemID == "" {
		cfg.ProblemID = req.ProblemID
	}
	if err := schema.ValidateProblemConfig(cfg); err != nil {
		return nil, err
	}

	if req.ForceRebuild {
		r.cache.InvalidateProblem(req.ProblemID)
	}

	imageTags, err := r.buildImages(ctx, req.ProblemID, packageDir, cfg)
	if err != nil {
		return nil, err
	}

	record := &types.ProblemRecord{
		ProblemID:    req.ProblemID,
		Config:       cfg,
		PackageDir:   packageDir,
		ImageTags:    imageTags,
		RegisteredAt: time.Now(),
	}

	if err := r.store.CreateProblem(record); err != nil {
		return nil, jherrors.Wrap(jherrors.CodeInternal, "persisting problem record", err)
	}

	r.mu.Lock()
	r.problems[req.ProblemID] = record
	r.mu.Unlock()

	return record, nil
}

// EnsureImages implements the Orchestrator's §4.4 step 3: verify every
// eval (and, when declared, build-stage) image tag already registered for
// problemID still exists in the runtime, rebuilding through the Image
// Cache whenever one has been pruned from the container daemon since
// registration. Returns the possibly-updated "<cid>:<stage>" -> tag map.
func (r *Registry) EnsureImages(ctx context.Context, problemID string) (map[string]string, error) {
	r.mu.RLock()
	record, ok := r.problems[problemID]
	r.mu.RUnlock()
	if !ok {
		return nil, jherrors.NotFound("problem", problemID)
	}

	for key, tag := range record.ImageTags {
		exists, err := r.runtime.ImageExists(ctx, tag)
		if err != nil {
			return nil, jherrors.RuntimeError("checking image "+tag, err)
		}
		if exists {
			continue
		}
		if _, _, ok := splitImageTagKey(key); !ok {
			continue
		}
		r.logger.Info().Str("problem_id", problemID).Str("tag", tag).
			Msg("eval image missing from runtime, rebuilding")
		r.cache.InvalidateProblem(problemID)
		rebuilt, err := r.buildImages(ctx, problemID, record.PackageDir, record.Config)
		if err != nil {
			return nil, err
		}
		record.ImageTags = rebuilt
		break
	}

	r.mu.Lock()
	r.problems[problemID] = record
	r.mu.Unlock()
	if err := r.store.UpdateProblem(record); err != nil {
		r.logger.Warn().Err(err).Str("problem_id", problemID).Msg("persisting refreshed image tags")
	}

	return record.ImageTags, nil
}

// checksumEqual verifies an in-memory archive_data buffer against a
// provided SHA-256 (case-insensitive hex), mirroring the check pkg/fetcher
// applies to downloaded bytes.
func checksumEqual(data []byte, checksum string) error {
	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if !strings.EqualFold(got, checksum) {
		return jherrors.ChecksumMismatch(checksum, got)
	}
	return nil
}

func loadConfig(packageDir string) (*types.ProblemConfig, error) {
	raw, err := os.ReadFile(filepath.Join(packageDir, "config.json"))
	if err != nil {
		return nil, jherrors.InvalidPackage("missing config.json at package root: " + err.Error())
	}

	var cfg types.ProblemConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, jherrors.InvalidPackage("config.json is not valid JSON: " + err.Error())
	}
	return &cfg, nil
}

// buildImages builds the required eval-stage image (and, when present, the
// optional build-stage image) for every container in cfg, keyed through
// the Image Cache, and returns the resulting "<cid>:<stage>" -> tag map.
func (r *Registry) buildImages(ctx context.Context, problemID, packageDir string, cfg *types.ProblemConfig) (map[string]string, error) {
	tags := make(map[string]string)

	for _, cs := range cfg.Containers {
		buildContext, err := resolveContainerContext(packageDir, cs)
		if err != nil {
			return nil, err
		}

		if cs.BuildStage {
			dockerfile := firstExisting(buildContext, []string{"Dockerfile.build"})
			if dockerfile != "" {
				tag := imageTag(problemID, cs.ContainerID, "build")
				key := imagecache.Key{ProblemID: problemID, ContainerID: cs.ContainerID, Stage: "build"}
				_, err := r.cache.EnsureBuilt(ctx, key, func(ctx context.Context) (string, error) {
					if err := r.runtime.BuildImage(ctx, buildContext, tag, runtime.BuildOptions{Dockerfile: "Dockerfile.build"}); err != nil {
						return "", err
					}
					return tag, nil
				})
				if err != nil {
					r.logger.Warn().Err(err).Str("problem_id", problemID).Str("container_id", cs.ContainerID).
						Msg("build-stage image build failed, continuing (non-fatal)")
				} else {
					tags[cs.ContainerID+":build"] = tag
				}
			}
		}

		dockerfile, err := resolveEvalDockerfile(buildContext, cs)
		if err != nil {
			return nil, err
		}

		tag := imageTag(problemID, cs.ContainerID, "eval")
		key := imagecache.Key{ProblemID: problemID, ContainerID: cs.ContainerID, Stage: "eval"}
		builtTag, err := r.cache.EnsureBuilt(ctx, key, func(ctx context.Context) (string, error) {
			if err := r.runtime.BuildImage(ctx, buildContext, tag, runtime.BuildOptions{Dockerfile: dockerfile}); err != nil {
				return "", err
			}
			return tag, nil
		})
		if err != nil {
			return nil, jherrors.BuildFailed(cs.ContainerID, err)
		}
		tags[cs.ContainerID+":eval"] = builtTag
	}

	return tags, nil
}

// resolveContainerContext locates the build context directory for a
// container-spec: containers/<cid>/ if present, then <cid>/, otherwise the
// package root.
func resolveContainerContext(packageDir string, cs *types.ContainerSpec) (string, error) {
	for _, candidate := range []string{
		filepath.Join(packageDir, "containers", cs.ContainerID),
		filepath.Join(packageDir, cs.ContainerID),
	} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return packageDir, nil
}

// resolveEvalDockerfile applies the fallback chain from §4.1 Validation:
// containers/<cid>/Dockerfile.eval -> <cid>/Dockerfile.eval -> <cid>/Dockerfile
// -> the config-specified dockerfile_path. buildContext has already been
// resolved to whichever of those container-scoped directories exists (or
// the package root when neither does), so here we just probe for Dockerfile.eval then Dockerfile within it before
// falling back to an explicit dockerfile_path.
func resolveEvalDockerfile(buildContext string, cs *types.ContainerSpec) (string, error) {
	for _, name := range evalDockerfileNames {
		if _, err := os.Stat(filepath.Join(buildContext, name)); err == nil {
			return name, nil
		}
	}
	if cs.DockerfilePath != "" {
		if _, err := os.Stat(filepath.Join(buildContext, cs.DockerfilePath)); err == nil {
			return cs.DockerfilePath, nil
		}
	}
	return "", jherrors.InvalidPackage(fmt.Sprintf(
		"container %q: no eval Dockerfile found (tried Dockerfile.eval, Dockerfile, dockerfile_path %q)",
		cs.ContainerID, cs.DockerfilePath))
}

func firstExisting(buildContext string, names []string) string {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(buildContext, name)); err == nil {
			return name
		}
	}
	return ""
}

// imageTag applies the naming convention from §4.1 Build.
func imageTag(problemID, containerID, stage string) string {
	return fmt.Sprintf("judge-%s-%s-%s:latest", problemID, containerID, stage)
}
