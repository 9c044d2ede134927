package replica

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/task"
)

func openTestReplica(t *testing.T) ReplicaWrapper {
	t.Helper()
	w, err := OpenEmbeddedReplica(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenEmbeddedReplica: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func mustRead(t *testing.T, w ReplicaWrapper, id uuid.UUID) *task.Task {
	t.Helper()
	got, err := w.ReadTask(id)
	if err != nil {
		t.Fatalf("ReadTask(%s): %v", id, err)
	}
	if got == nil {
		t.Fatalf("ReadTask(%s) = nil, want a task", id)
	}
	return got
}

func TestActorCreateAndRead(t *testing.T) {
	w := openTestReplica(t)

	tk := task.New("Buy milk")
	if err := w.CommitOperations(BuildSaveBatch(nil, tk)); err != nil {
		t.Fatalf("CommitOperations: %v", err)
	}

	got := mustRead(t, w, tk.ID)
	if got.Description != "Buy milk" {
		t.Errorf("Description = %q, want %q", got.Description, "Buy milk")
	}
	if got.Status != task.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
}

func TestActorReadMissingTask(t *testing.T) {
	w := openTestReplica(t)

	got, err := w.ReadTask(uuid.New())
	if err != nil {
		t.Fatalf("ReadTask: %v", err)
	}
	if got != nil {
		t.Errorf("ReadTask on missing uuid = %+v, want nil", got)
	}
}

func TestActorTagLifecycle(t *testing.T) {
	w := openTestReplica(t)

	tk := task.New("Buy milk")
	if err := w.CommitOperations(BuildSaveBatch(nil, tk)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Tag an existing task: the worker sees a live snapshot and takes
	// the structured-helper branch.
	if err := w.CommitOperations([]Operation{
		UndoPointOp(),
		AddTagOp(tk.ID, "errand"),
	}); err != nil {
		t.Fatalf("add tag: %v", err)
	}
	got := mustRead(t, w, tk.ID)
	if len(got.Tags) != 1 || got.Tags[0] != "errand" {
		t.Fatalf("Tags = %v, want [errand]", got.Tags)
	}

	// Swap tags in one batch.
	if err := w.CommitOperations([]Operation{
		UndoPointOp(),
		RemoveTagOp(tk.ID, "errand"),
		AddTagOp(tk.ID, "home"),
	}); err != nil {
		t.Fatalf("swap tags: %v", err)
	}
	got = mustRead(t, w, tk.ID)
	if len(got.Tags) != 1 || got.Tags[0] != "home" {
		t.Errorf("Tags = %v, want [home]", got.Tags)
	}
}

// Mutating a task that was never created exercises the raw-key fallback
// branch of the mapping layer; the read path folds the keys back.
func TestActorFallbackMutations(t *testing.T) {
	w := openTestReplica(t)

	id := uuid.New()
	dep := uuid.New()
	entry := time.Date(2024, 5, 4, 16, 20, 0, 0, time.UTC)

	if err := w.CommitOperations([]Operation{
		UndoPointOp(),
		AddTagOp(id, "orphan"),
		AddDependencyOp(id, dep),
		AddAnnotationOp(id, entry, "tagged before created"),
	}); err != nil {
		t.Fatalf("fallback commit: %v", err)
	}

	got := mustRead(t, w, id)
	if !got.HasTag("orphan") {
		t.Errorf("Tags = %v, want orphan", got.Tags)
	}
	if !got.HasDependency(dep) {
		t.Errorf("Depends = %v, want %s", got.Depends, dep)
	}
	if len(got.Annotations) != 1 || got.Annotations[0].Description != "tagged before created" {
		t.Errorf("Annotations = %+v", got.Annotations)
	}
	if !got.Annotations[0].Entry.Equal(entry) {
		t.Errorf("annotation entry = %v, want %v", got.Annotations[0].Entry, entry)
	}
}

func TestActorLogicalDelete(t *testing.T) {
	w := openTestReplica(t)

	tk := task.New("doomed")
	if err := w.CommitOperations(BuildSaveBatch(nil, tk)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.CommitOperations(BuildDeleteBatch(tk.ID)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Logical delete: the record survives with status=deleted.
	got := mustRead(t, w, tk.ID)
	if got.Status != task.StatusDeleted {
		t.Errorf("Status = %s, want deleted", got.Status)
	}
}

func TestActorCommitAtomicity(t *testing.T) {
	w := openTestReplica(t)

	existing := task.New("survivor")
	if err := w.CommitOperations(BuildSaveBatch(nil, existing)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A create with no payload is a mapping error; it must poison the
	// whole batch, including the earlier valid operations.
	fresh := uuid.New()
	err := w.CommitOperations([]Operation{
		UndoPointOp(),
		SetFieldOp(existing.ID, "project", "should-not-stick"),
		{Type: OpCreate, UUID: fresh},
	})
	if err == nil {
		t.Fatal("expected commit to fail")
	}

	got := mustRead(t, w, existing.ID)
	if got.Project != "" {
		t.Errorf("Project = %q after failed commit, want unchanged", got.Project)
	}
	missing, err := w.ReadTask(fresh)
	if err != nil {
		t.Fatalf("ReadTask: %v", err)
	}
	if missing != nil {
		t.Errorf("failed batch leaked task %s", fresh)
	}
}

func TestActorConcurrentCommits(t *testing.T) {
	w := openTestReplica(t)

	const n = 16
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		tk := task.New(fmt.Sprintf("task %d", i))
		ids[i] = tk.ID
		wg.Add(1)
		go func(i int, tk *task.Task) {
			defer wg.Done()
			errs[i] = w.CommitOperations(BuildSaveBatch(nil, tk))
		}(i, tk)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}
	for i, id := range ids {
		got := mustRead(t, w, id)
		if want := fmt.Sprintf("task %d", i); got.Description != want {
			t.Errorf("task %d description = %q, want %q", i, got.Description, want)
		}
	}
}

func TestActorEmptyBatch(t *testing.T) {
	w := openTestReplica(t)
	if err := w.CommitOperations(nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}

func TestActorOpenSwitchesStore(t *testing.T) {
	w := openTestReplica(t)

	tk := task.New("first store")
	if err := w.CommitOperations(BuildSaveBatch(nil, tk)); err != nil {
		t.Fatalf("create: %v", err)
	}

	other := filepath.Join(t.TempDir(), "other.db")
	if err := w.Open(other); err != nil {
		t.Fatalf("Open(%s): %v", other, err)
	}

	// The new store knows nothing about the old one's tasks.
	got, err := w.ReadTask(tk.ID)
	if err != nil {
		t.Fatalf("ReadTask: %v", err)
	}
	if got != nil {
		t.Errorf("task leaked across Open: %+v", got)
	}

	// Re-opening the current path is a no-op, not an error.
	if err := w.Open(other); err != nil {
		t.Errorf("idempotent Open: %v", err)
	}
}

func TestActorCloseIsTerminal(t *testing.T) {
	w, err := OpenEmbeddedReplica(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenEmbeddedReplica: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if err := w.CommitOperations(BuildDeleteBatch(uuid.New())); !errors.Is(err, ErrReplicaClosed) {
		t.Errorf("commit after close: %v, want ErrReplicaClosed", err)
	}
	if _, err := w.ReadTask(uuid.New()); !errors.Is(err, ErrReplicaClosed) {
		t.Errorf("read after close: %v, want ErrReplicaClosed", err)
	}
	if err := w.Open(filepath.Join(t.TempDir(), "again.db")); !errors.Is(err, ErrReplicaClosed) {
		t.Errorf("open after close: %v, want ErrReplicaClosed", err)
	}
}

// The factory must fail fast, not hang, when the store path cannot be
// created. A regular file in the directory position guarantees the open
// fails immediately.
func TestActorFactoryOpenFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	start := time.Now()
	w, err := OpenEmbeddedReplica(filepath.Join(blocker, "sub", "tasks.db"))
	if err == nil {
		_ = w.Close()
		t.Fatal("expected factory to fail")
	}
	if elapsed := time.Since(start); elapsed > startupTimeout {
		t.Errorf("factory took %v, want well under the handshake timeout", elapsed)
	}
}
