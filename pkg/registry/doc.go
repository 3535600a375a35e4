/*
Package registry implements the Problem Registry and Image Builder (§4.1):
the component that turns a problem package — a tarball or zip of config.json
plus per-container build contexts — into a set of built container images and
a durable ProblemRecord.

# Architecture

	┌──────────────────────── REGISTRY ─────────────────────────┐
	│                                                             │
	│  Ingest(problem_id, archive_url|archive_data, checksum?)   │
	│       │                                                    │
	│       ▼                                                    │
	│  pkg/fetcher  ──fetch + verify──▶  archive bytes            │
	│       │                                                    │
	│       ▼                                                    │
	│  pkg/archive  ──sniff + extract──▶  package directory       │
	│       │                                                    │
	│       ▼                                                    │
	│  pkg/schema   ──validate config.json                        │
	│       │                                                    │
	│       ▼                                                    │
	│  per container: resolve Dockerfile, build via               │
	│  pkg/imagecache.EnsureBuilt ──▶ pkg/runtime.BuildImage       │
	│       │                                                    │
	│       ▼                                                    │
	│  ProblemRecord ──▶ pkg/storage (durable) + in-memory map    │
	└─────────────────────────────────────────────────────────────┘

# Re-registration

force_rebuild=true drops every Image Cache entry for the problem_id before
rebuilding, so a changed Dockerfile always takes effect; running evaluations
hold their own image-tag references and are unaffected.

# Startup

Load seeds the in-memory map from pkg/storage and re-populates the Image
Cache for any persisted tag confirmed still present via the Container
Runtime Facade, so a restart doesn't force an unnecessary rebuild of every
problem on the first submission after it comes back up.

# Integration Points

This package integrates with:

  - pkg/fetcher: archive retrieval and checksum verification
  - pkg/archive: format sniffing and extraction
  - pkg/schema: config.json structural validation
  - pkg/imagecache: per-(problem,container,stage) build memoization
  - pkg/runtime: image builds and existence checks
  - pkg/storage: durable ProblemRecord persistence
*/
package registry
