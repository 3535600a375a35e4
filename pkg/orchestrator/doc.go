/*
Package orchestrator implements the Evaluation Orchestrator (§4.4): it
drives one Job from raw submission to a persisted, reported Evaluation.

# Pipeline

	1.  prepare submission      (fetch/extract/clone; metadata.json)
	2.  create workspace        (results/<submission_id>/...)
	3.  ensure images           (rebuild through the Registry if pruned)
	4.  create network          (iff >1 container)
	5.  topological sort        (container depends_on, Kahn's algorithm)
	6.  create containers       (mounts, resources)
	7.  start containers        (dependency waits, service warm-up)
	8.  execute hooks            (pre_* → stabilize → post_*)
	9.  watch terminations       (concurrent with 8)
	10. collect rubrics
	11. aggregate
	12. persist result.json
	13. cleanup
	14. report

Steps 1-11 can fail the evaluation; 12-14 always run regardless of outcome,
matching §4.4's failure semantics (tear down on create/start failure,
proceed to cleanup on a mid-run exception, kill-on-timeout).

# Container Lifecycle

Each container's create → start → (hooks via exec) → stop → remove
sequence generalizes the teacher's single-task executeContainer/
stopContainer state machine (pkg/worker) from one container to a
dependency-ordered group sharing one evaluation network. Dependency waits
check started/completed against the ContainerState the Runtime facade
reports, and for healthy run the dependency's declared pkg/health checker
(HTTP/TCP/exec), falling back to the started check when none is declared;
the termination monitor's concurrent watch-then-stop loop is the direct
descendant of pkg/reconciler's ticking reconciliation loop, narrowed from
a cluster-wide sweep to one evaluation's declared terminate_on_finish
edges.

# Rubric Collection

A rubric's output file is searched for first in the evaluation's artifacts
root, then under its container's /out mount (the Mount Layout Contract's
only container-writable location), optionally nested under a rubrics/
subdirectory there. Missing files are not_found/0; malformed JSON is
error/0; anything else is clamped to [0, max_score] and given a normalized
status.

# Integration Points

  - pkg/queue: supplies the Job; Complete/Fail is called by the caller
    after Run returns
  - pkg/registry: problem package + image tags; EnsureImages covers step 3
  - pkg/runtime: every container/network operation
  - pkg/mounts: the Mount Layout Contract resolver
  - pkg/fetcher, pkg/archive: submission retrieval (url/data sources)
  - pkg/reporter: Reporter interface, invoked at step 14
  - pkg/events, pkg/metrics: evaluation.started/result.evaluation.* and
    the Job Queue/Evaluation Orchestrator/Problem Registry metric families
*/
package orchestrator
