package storage

import (
	"testing"
	"time"

	"github.com/cuemby/judgehost/pkg/types"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetProblem(t *testing.T) {
	store := openTestStore(t)

	record := &types.ProblemRecord{
		ProblemID:    "binary-search-tree",
		PackageDir:   "/var/lib/judgehost/problems/binary-search-tree",
		ImageTags:    map[string]string{"app": "judge-binary-search-tree-app-eval:latest"},
		RegisteredAt: time.Now(),
	}

	if err := store.CreateProblem(record); err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}

	got, err := store.GetProblem("binary-search-tree")
	if err != nil {
		t.Fatalf("GetProblem: %v", err)
	}
	if got.PackageDir != record.PackageDir {
		t.Errorf("got package_dir %q, want %q", got.PackageDir, record.PackageDir)
	}
}

func TestGetProblem_NotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetProblem("missing"); err == nil {
		t.Fatal("expected error for missing problem")
	}
}

func TestListProblems(t *testing.T) {
	store := openTestStore(t)

	store.CreateProblem(&types.ProblemRecord{ProblemID: "p1"})
	store.CreateProblem(&types.ProblemRecord{ProblemID: "p2"})

	records, err := store.ListProblems()
	if err != nil {
		t.Fatalf("ListProblems: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestUpdateProblem_Upsert(t *testing.T) {
	store := openTestStore(t)

	store.CreateProblem(&types.ProblemRecord{ProblemID: "p1", PackageDir: "/old"})
	store.UpdateProblem(&types.ProblemRecord{ProblemID: "p1", PackageDir: "/new"})

	got, _ := store.GetProblem("p1")
	if got.PackageDir != "/new" {
		t.Errorf("expected upsert to replace package_dir, got %q", got.PackageDir)
	}
}

func TestDeleteProblem(t *testing.T) {
	store := openTestStore(t)

	store.CreateProblem(&types.ProblemRecord{ProblemID: "p1"})
	if err := store.DeleteProblem("p1"); err != nil {
		t.Fatalf("DeleteProblem: %v", err)
	}

	if _, err := store.GetProblem("p1"); err == nil {
		t.Error("expected error after delete")
	}
}
