package host

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/judgehost/pkg/archive"
	"github.com/cuemby/judgehost/pkg/events"
	"github.com/cuemby/judgehost/pkg/fetcher"
	"github.com/cuemby/judgehost/pkg/imagecache"
	"github.com/cuemby/judgehost/pkg/orchestrator"
	"github.com/cuemby/judgehost/pkg/queue"
	"github.com/cuemby/judgehost/pkg/registry"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/storage"
	"github.com/cuemby/judgehost/pkg/types"
)

func TestHostDrivesQueuedJobToCompletion(t *testing.T) {
	dataDir := t.TempDir()
	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rt := runtime.NewFake()
	reg := registry.New(store, fetcher.New(time.Second), imagecache.New(), rt, dataDir)

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "config.json"), mustJSON(t, types.ProblemConfig{
		ProblemID: "echo",
		Containers: []*types.ContainerSpec{
			{ContainerID: "grader", EvalStage: true, AcceptsSubmission: true},
		},
	}), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "Dockerfile"), []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var pkgBuf bytes.Buffer
	if err := archive.CreateTarGz(&pkgBuf, src); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Ingest(context.Background(), registry.IngestRequest{ProblemID: "echo", ArchiveData: pkgBuf.Bytes()}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	q := queue.New(queue.Config{MaxSize: 10, MaxWorkers: 2, AutoProcess: true}, broker)

	oCfg := orchestrator.DefaultConfig()
	oCfg.SubmissionsDir = t.TempDir()
	oCfg.ResultsDir = t.TempDir()
	oCfg.ServiceWarmup = time.Millisecond
	oCfg.HookStabilize = time.Millisecond
	oCfg.DependencyInterval = time.Millisecond
	o := orchestrator.New(oCfg, reg, rt, fetcher.New(time.Second), broker, nil)

	h := New(q, o, broker)
	h.Start()
	defer h.Stop()

	submissionSrc := t.TempDir()
	if err := os.WriteFile(filepath.Join(submissionSrc, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var subBuf bytes.Buffer
	if err := archive.CreateTarGz(&subBuf, submissionSrc); err != nil {
		t.Fatal(err)
	}

	job, err := q.Enqueue(types.SubmissionRequest{
		SubmissionID: "sub-host-1",
		ProblemID:    "echo",
		Source:       types.SourceData,
		ArchiveData:  subBuf.Bytes(),
	}, 5)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := q.Get(job.JobID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.State == types.JobCompleted || got.State == types.JobFailed {
			if got.State != types.JobCompleted {
				t.Fatalf("expected job to complete, got %v: %s", got.State, got.Error)
			}
			if got.Result == nil {
				t.Fatal("expected a result on a completed job")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the host to drive the job to completion")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
