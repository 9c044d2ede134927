package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/query"
	"github.com/steveyegge/taskdb/internal/replica"
	"github.com/steveyegge/taskdb/internal/task"
)

// fakeWrapper is an in-memory ReplicaWrapper. It records every committed
// batch so tests can assert on batch shapes without a real store.
type fakeWrapper struct {
	tasks   map[uuid.UUID]*task.Task
	batches [][]replica.Operation
	err     error
}

func newFakeWrapper() *fakeWrapper {
	return &fakeWrapper{tasks: make(map[uuid.UUID]*task.Task)}
}

func (f *fakeWrapper) Open(string) error { return f.err }

func (f *fakeWrapper) CommitOperations(ops []replica.Operation) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, ops)
	for _, op := range ops {
		switch op.Type {
		case replica.OpCreate:
			t, err := replica.TaskFromFields(op.UUID, op.Data)
			if err != nil {
				return err
			}
			f.tasks[op.UUID] = t
		case replica.OpDelete:
			if t, ok := f.tasks[op.UUID]; ok {
				t.Status = task.StatusDeleted
			}
		case replica.OpAddTag:
			if t, ok := f.tasks[op.UUID]; ok {
				t.AddTag(op.Tag)
			}
		}
	}
	return nil
}

func (f *fakeWrapper) ReadTask(id uuid.UUID) (*task.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (f *fakeWrapper) Close() error { return nil }

func newFakeBackend(t *testing.T) (*ReplicaBackend, *fakeWrapper) {
	t.Helper()
	fake := newFakeWrapper()
	b := NewReplicaBackend(filepath.Join(t.TempDir(), "tasks.db"), fake)
	if err := b.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return b, fake
}

func TestReplicaBackendSaveBuildsCreateBatch(t *testing.T) {
	b, fake := newFakeBackend(t)

	tk := task.New("new task")
	if err := b.SaveTask(tk); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	if len(fake.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(fake.batches))
	}
	batch := fake.batches[0]
	if len(batch) != 2 || batch[0].Type != replica.OpUndoPoint || batch[1].Type != replica.OpCreate {
		t.Errorf("batch = %+v, want [UndoPoint, Create]", batch)
	}
}

func TestReplicaBackendSaveDiffsAgainstSnapshot(t *testing.T) {
	b, fake := newFakeBackend(t)

	tk := task.New("existing")
	if err := b.SaveTask(tk); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := tk.Clone()
	next.AddTag("urgent")
	if err := b.SaveTask(next); err != nil {
		t.Fatalf("update: %v", err)
	}

	batch := fake.batches[len(fake.batches)-1]
	var sawAddTag bool
	for _, op := range batch {
		if op.Type == replica.OpCreate {
			t.Errorf("update save produced a Create: %+v", batch)
		}
		if op.Type == replica.OpAddTag && op.Tag == "urgent" {
			sawAddTag = true
		}
	}
	if !sawAddTag {
		t.Errorf("batch = %+v, want an AddTag for urgent", batch)
	}
}

func TestReplicaBackendDeleteBatchShape(t *testing.T) {
	b, fake := newFakeBackend(t)

	id := uuid.New()
	if err := b.DeleteTask(id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	batch := fake.batches[0]
	if len(batch) != 2 || batch[0].Type != replica.OpUndoPoint ||
		batch[1].Type != replica.OpDelete || batch[1].UUID != id {
		t.Errorf("batch = %+v, want [UndoPoint, Delete{%s}]", batch, id)
	}
}

func TestReplicaBackendWritesRequireWrapper(t *testing.T) {
	b := NewReplicaBackend(filepath.Join(t.TempDir(), "tasks.db"), nil)
	if err := b.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := b.SaveTask(task.New("doomed")); !errors.Is(err, ErrWriteNotConfigured) {
		t.Errorf("SaveTask without wrapper: %v, want ErrWriteNotConfigured", err)
	}
	if err := b.DeleteTask(uuid.New()); !errors.Is(err, ErrWriteNotConfigured) {
		t.Errorf("DeleteTask without wrapper: %v, want ErrWriteNotConfigured", err)
	}

	// Reads still work: a store that was never created is just empty.
	all, err := b.LoadAllTasks()
	if err != nil {
		t.Fatalf("LoadAllTasks: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("LoadAllTasks = %d tasks, want 0", len(all))
	}
}

func TestReplicaBackendBackupRestoreUnsupported(t *testing.T) {
	b, _ := newFakeBackend(t)
	if _, err := b.Backup(); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Backup: %v, want ErrNotSupported", err)
	}
	if err := b.Restore("anything"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Restore: %v, want ErrNotSupported", err)
	}
}

// End-to-end through the real actor and store: save, list, query,
// logical delete.
func TestReplicaBackendEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	b, err := OpenReplicaBackend(path)
	if err != nil {
		t.Fatalf("OpenReplicaBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	if err := b.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	chores := task.New("take out trash")
	chores.Project = "house"
	work := task.New("review PR")
	work.Project = "work"
	work.AddTag("code")
	for _, tk := range []*task.Task{chores, work} {
		if err := b.SaveTask(tk); err != nil {
			t.Fatalf("SaveTask: %v", err)
		}
	}

	all, err := b.LoadAllTasks()
	if err != nil {
		t.Fatalf("LoadAllTasks: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("LoadAllTasks = %d tasks, want 2", len(all))
	}

	q := &query.TaskQuery{
		Project: &query.ProjectFilter{Match: query.ProjectExact, Project: "work"},
	}
	got, err := b.QueryTasks(q, "")
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != work.ID {
		t.Fatalf("project query = %+v, want just the work task", got)
	}
	if !got[0].HasTag("code") {
		t.Errorf("tags lost on round trip: %v", got[0].Tags)
	}

	if err := b.DeleteTask(chores.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	deleted, err := b.LoadTask(chores.ID)
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if deleted == nil || deleted.Status != task.StatusDeleted {
		t.Errorf("LoadTask after delete = %+v, want status deleted", deleted)
	}
}
