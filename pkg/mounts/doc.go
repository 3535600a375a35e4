/*
Package mounts implements the Mount Layout Contract enforced by the
Orchestrator (§4.5): for every container in an evaluation, it computes the
bind-mount set joining the problem package, the submission directory, and a
per-evaluation results tree.

# Mount set

	Host source                                        Target              Mode  When
	<pkg>/containers/<cid>/ (fallback <pkg>/<cid>/)     /workspace/problem   ro    always
	<pkg>/containers/<cid>/data/                        /data                ro    if present
	<pkg>/containers/<cid>/hooks/ (fallback <pkg>/hooks/) /hooks             ro    if present
	<submission_dir>                                    /submission (or mount_submission_at) ro  iff accepts_submission
	<results>/containers/<cid>/out/                     /out                 rw    always (pre-created 0o777)
	<results>/shared/                                   /shared              rw    iff multi-container
	<results>/workspace/<cid>/                          /workspace           rw    always

Missing optional sources are skipped with a debug log. A missing submission
directory for an accepts_submission container is a hard error — the
evaluation fails before any container is created, matching the teacher's
LocalDriver pattern of failing fast on a missing mount source rather than
silently degrading.

# Integration Points

This package integrates with:

  - pkg/types: ContainerSpec, Mount
  - pkg/orchestrator: calls Resolve once per container during evaluation setup
  - pkg/runtime: consumes the resulting []types.Mount in ContainerCreateSpec
*/
package mounts
