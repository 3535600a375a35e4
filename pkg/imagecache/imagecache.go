// Package imagecache memoizes built image tags by (problem_id, container_id,
// stage) so two concurrent first evaluations of the same problem never build
// the same image twice (§3, §5 "ImageCache (global): serialized writes;
// concurrent reads; a build acquires a per-key lock").
package imagecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/judgehost/pkg/types"
)

// Key identifies one cacheable build.
type Key struct {
	ProblemID   string
	ContainerID string
	Stage       string // "build" or "eval"
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProblemID, k.ContainerID, k.Stage)
}

// BuildFunc performs the actual image build, returning the resulting tag.
type BuildFunc func(ctx context.Context) (tag string, err error)

// Cache holds built tags keyed by Key, with a per-key lock so concurrent
// first-builds of the same key serialize rather than race.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]types.ImageCacheEntry
	keyLocks map[Key]*sync.Mutex
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		entries:  make(map[Key]types.ImageCacheEntry),
		keyLocks: make(map[Key]*sync.Mutex),
	}
}

// Get returns the cached tag for key, if present.
func (c *Cache) Get(key Key) (types.ImageCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Seed records an already-known tag (e.g. restored from a ProblemRecord on
// Registry.Load, after confirming the tag exists in the runtime) without
// invoking a build.
func (c *Cache) Seed(key Key, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = types.ImageCacheEntry{
		ProblemID:   key.ProblemID,
		ContainerID: key.ContainerID,
		Stage:       key.Stage,
		ImageTag:    tag,
	}
}

// EnsureBuilt returns the cached tag for key, building it via build if
// absent. Concurrent callers for the same key block on the same per-key
// lock; only one of them actually runs build.
func (c *Cache) EnsureBuilt(ctx context.Context, key Key, build BuildFunc) (string, error) {
	if entry, ok := c.Get(key); ok {
		return entry.ImageTag, nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Re-check: another goroutine may have finished the build while we
	// waited for the lock.
	if entry, ok := c.Get(key); ok {
		return entry.ImageTag, nil
	}

	tag, err := build(ctx)
	if err != nil {
		return "", err
	}

	c.Seed(key, tag)
	return tag, nil
}

func (c *Cache) keyLock(key Key) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.keyLocks[key] = lock
	}
	return lock
}

// InvalidateProblem drops every cache entry for problemID, the effect of a
// force_rebuild re-registration (§4.1 "force_rebuild=true drops all cache
// entries for the problem_id and rebuilds from scratch").
func (c *Cache) InvalidateProblem(problemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.ProblemID == problemID {
			delete(c.entries, key)
		}
	}
	for key := range c.keyLocks {
		if key.ProblemID == problemID {
			delete(c.keyLocks, key)
		}
	}
}
