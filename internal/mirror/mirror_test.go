package mirror

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/replica"
	"github.com/steveyegge/taskdb/internal/task"
)

// memWrapper is an in-memory ReplicaWrapper sufficient for mirroring:
// it applies creates, tag adds, field updates and deletes to a task map.
type memWrapper struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*task.Task
}

func newMemWrapper() *memWrapper {
	return &memWrapper{tasks: make(map[uuid.UUID]*task.Task)}
}

func (w *memWrapper) Open(string) error { return nil }

func (w *memWrapper) CommitOperations(ops []replica.Operation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, op := range ops {
		switch op.Type {
		case replica.OpCreate:
			t, err := replica.TaskFromFields(op.UUID, op.Data)
			if err != nil {
				return err
			}
			w.tasks[op.UUID] = t
		case replica.OpUpdate:
			if t, ok := w.tasks[op.UUID]; ok && op.Key == "description" && op.New != nil {
				t.Description = *op.New
			}
		case replica.OpAddTag:
			if t, ok := w.tasks[op.UUID]; ok {
				t.AddTag(op.Tag)
			}
		case replica.OpDelete:
			if t, ok := w.tasks[op.UUID]; ok {
				t.Status = task.StatusDeleted
			}
		}
	}
	return nil
}

func (w *memWrapper) ReadTask(id uuid.UUID) (*task.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tasks[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (w *memWrapper) Close() error { return nil }

func (w *memWrapper) get(id uuid.UUID) *task.Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tasks[id]
}

func writeTaskFile(t *testing.T, path string, tasks []*task.Task) {
	t.Helper()
	data, err := json.Marshal(tasks)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
}

func quietConfig() *Config {
	config := DefaultConfig()
	config.Logger = log.New(io.Discard, "", 0)
	return config
}

func TestSyncOnceMirrorsFileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	first := task.New("mirror me")
	second := task.New("me as well")
	writeTaskFile(t, path, []*task.Task{first, second})

	w := newMemWrapper()
	m, err := New(path, w, quietConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Stop()

	if err := m.SyncOnce(); err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if got := w.get(first.ID); got == nil || got.Description != "mirror me" {
		t.Errorf("first task = %+v", got)
	}
	if got := w.get(second.ID); got == nil {
		t.Error("second task not mirrored")
	}

	// Changing a task mirrors the change without recreating it.
	first.Description = "mirror me harder"
	writeTaskFile(t, path, []*task.Task{first, second})
	if err := m.SyncOnce(); err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if got := w.get(first.ID); got.Description != "mirror me harder" {
		t.Errorf("Description = %q after update", got.Description)
	}

	// Removing a task mirrors as a logical delete.
	writeTaskFile(t, path, []*task.Task{first})
	if err := m.SyncOnce(); err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if got := w.get(second.ID); got == nil || got.Status != task.StatusDeleted {
		t.Errorf("removed task = %+v, want status deleted", got)
	}
}

func TestSyncOnceMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	w := newMemWrapper()
	m, err := New(path, w, quietConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Stop()
	if err := m.SyncOnce(); err != nil {
		t.Errorf("SyncOnce on missing file: %v", err)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New("", newMemWrapper(), nil); err == nil {
		t.Error("empty task file accepted")
	}
	if _, err := New("/tmp/tasks.json", nil, nil); err == nil {
		t.Error("nil wrapper accepted")
	}
}

func TestStartWatchesForChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	writeTaskFile(t, path, nil)

	w := newMemWrapper()
	config := quietConfig()
	config.DebounceInterval = 10 * time.Millisecond
	config.FullSyncInterval = time.Hour
	m, err := New(path, w, config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	// Give the watcher a moment, then write a task and wait for the
	// daemon to pick it up.
	time.Sleep(50 * time.Millisecond)
	tk := task.New("event driven")
	writeTaskFile(t, path, []*task.Task{tk})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.get(tk.ID) != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := w.get(tk.ID); got == nil || got.Description != "event driven" {
		t.Errorf("task not mirrored after file event: %+v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Start did not return after cancel")
	}
}
