package storage

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/query"
	"github.com/steveyegge/taskdb/internal/replica"
	"github.com/steveyegge/taskdb/internal/replica/store"
	"github.com/steveyegge/taskdb/internal/task"
)

// ReplicaBackend implements Backend on top of the embedded replica. All
// mutation flows through an injected ReplicaWrapper as operation
// batches; bulk reads take a separate short-lived read-only connection
// to the store, trading strict read-your-writes for not queueing list
// renders behind commits. Single-task loads go through the wrapper so a
// save followed by a load of the same task is always consistent.
type ReplicaBackend struct {
	storePath   string
	wrapper     replica.ReplicaWrapper
	ownsWrapper bool
	initialized bool
	logger      *log.Logger
}

var _ Backend = (*ReplicaBackend)(nil)

// NewReplicaBackend returns a backend that writes through wrapper and
// bulk-reads directly from the store at storePath. A nil wrapper yields
// a read-only backend whose mutating methods fail with
// ErrWriteNotConfigured.
func NewReplicaBackend(storePath string, wrapper replica.ReplicaWrapper) *ReplicaBackend {
	return &ReplicaBackend{
		storePath: storePath,
		wrapper:   wrapper,
		logger:    log.New(os.Stderr, "[storage] ", log.LstdFlags),
	}
}

// OpenReplicaBackend constructs the real actor-backed wrapper for
// storePath and wraps it in a backend that owns it: Close shuts the
// actor down.
func OpenReplicaBackend(storePath string) (*ReplicaBackend, error) {
	wrapper, err := replica.OpenEmbeddedReplica(storePath)
	if err != nil {
		return nil, err
	}
	b := NewReplicaBackend(storePath, wrapper)
	b.ownsWrapper = true
	return b, nil
}

// Initialize points the wrapper at the store path, creating the store
// if missing. With no wrapper injected there is nothing to prepare.
func (b *ReplicaBackend) Initialize() error {
	if b.wrapper != nil {
		if err := b.wrapper.Open(b.storePath); err != nil {
			return fmt.Errorf("initialize replica backend: %w", err)
		}
	}
	b.initialized = true
	return nil
}

// SaveTask diffs against the current snapshot and commits the resulting
// batch. A snapshot read failure is treated as "no existing task" so a
// save can still create the record.
func (b *ReplicaBackend) SaveTask(t *task.Task) error {
	if !b.initialized {
		return ErrNotInitialized
	}
	if b.wrapper == nil {
		return fmt.Errorf("save task %s: %w", t.ID, ErrWriteNotConfigured)
	}

	existing, err := b.wrapper.ReadTask(t.ID)
	if err != nil {
		b.logger.Printf("snapshot read for %s failed, saving as new: %v", t.ID, err)
		existing = nil
	}
	batch := replica.BuildSaveBatch(existing, t)
	if err := b.wrapper.CommitOperations(batch); err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

func (b *ReplicaBackend) LoadTask(id uuid.UUID) (*task.Task, error) {
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	if b.wrapper != nil {
		t, err := b.wrapper.ReadTask(id)
		if err != nil {
			return nil, fmt.Errorf("load task %s: %w", id, err)
		}
		return t, nil
	}

	// Read-only configuration: go straight at the store.
	tasks, err := b.readAll()
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

// DeleteTask commits a logical-delete batch; the record stays in the
// store with status deleted.
func (b *ReplicaBackend) DeleteTask(id uuid.UUID) error {
	if !b.initialized {
		return ErrNotInitialized
	}
	if b.wrapper == nil {
		return fmt.Errorf("delete task %s: %w", id, ErrWriteNotConfigured)
	}
	if err := b.wrapper.CommitOperations(replica.BuildDeleteBatch(id)); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (b *ReplicaBackend) LoadAllTasks() ([]*task.Task, error) {
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	tasks, err := b.readAll()
	if err != nil {
		return nil, fmt.Errorf("load all tasks: %w", err)
	}
	return tasks, nil
}

func (b *ReplicaBackend) QueryTasks(q *query.TaskQuery, contextProject string) ([]*task.Task, error) {
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	tasks, err := b.readAll()
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return q.Apply(tasks, contextProject), nil
}

// Backup is not supported: the replica's durable record is its own
// operation log, and a file copy of a live sqlite store is not a safe
// snapshot.
func (b *ReplicaBackend) Backup() (string, error) {
	return "", fmt.Errorf("backup: %w", ErrNotSupported)
}

// Restore is not supported for the same reason as Backup.
func (b *ReplicaBackend) Restore(string) error {
	return fmt.Errorf("restore: %w", ErrNotSupported)
}

// Close shuts down the wrapper when this backend constructed it;
// injected wrappers belong to the caller.
func (b *ReplicaBackend) Close() error {
	if b.ownsWrapper && b.wrapper != nil {
		return b.wrapper.Close()
	}
	return nil
}

// readAll opens a short-lived read-only connection and decodes every
// task row. A store that does not exist yet is an empty task set.
func (b *ReplicaBackend) readAll() ([]*task.Task, error) {
	if _, err := os.Stat(b.storePath); os.IsNotExist(err) {
		return nil, nil
	}
	st, err := store.OpenReadOnly(b.storePath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rows, err := st.AllTasks()
	if err != nil {
		return nil, err
	}
	tasks := make([]*task.Task, 0, len(rows))
	for rawID, fields := range rows {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid task uuid %q: %w", rawID, err)
		}
		t, err := replica.TaskFromFields(id, fields)
		if err != nil {
			return nil, fmt.Errorf("decode task %s: %w", rawID, err)
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Entry.Equal(tasks[j].Entry) {
			return tasks[i].Entry.Before(tasks[j].Entry)
		}
		return tasks[i].ID.String() < tasks[j].ID.String()
	})
	return tasks, nil
}
