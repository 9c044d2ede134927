package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/query"
	"github.com/steveyegge/taskdb/internal/task"
)

// backupStamp is the timestamp layout embedded in backup file names.
const backupStamp = "20060102-150405"

// FileBackend stores all tasks in one JSON file. The full task set is
// held in memory and rewritten atomically (temp file + rename) on every
// mutation, which is fine at a single user's task volume. Backup and
// Restore snapshot the JSON file next to itself with a timestamped name.
type FileBackend struct {
	path   string
	logger *log.Logger

	mu          sync.RWMutex
	tasks       map[uuid.UUID]*task.Task
	initialized bool
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend returns a file backend rooted at path. Nothing is read
// or written until Initialize.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{
		path:   path,
		logger: log.New(os.Stderr, "[storage] ", log.LstdFlags),
		tasks:  make(map[uuid.UUID]*task.Task),
	}
}

// Initialize creates the parent directory and loads the task file if it
// already exists. A missing file is an empty store, not an error.
func (b *FileBackend) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		b.initialized = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read task file: %w", err)
	}
	tasks, err := decodeTaskFile(data)
	if err != nil {
		return fmt.Errorf("parse task file %s: %w", b.path, err)
	}
	b.tasks = tasks
	b.initialized = true
	b.logger.Printf("loaded %d tasks from %s", len(tasks), b.path)
	return nil
}

func (b *FileBackend) SaveTask(t *task.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	b.tasks[t.ID] = t.Clone()
	if err := b.flushLocked(); err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

func (b *FileBackend) LoadTask(id uuid.UUID) (*task.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	t, ok := b.tasks[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

// DeleteTask removes the record entirely. Unlike the replica backend the
// file store has no operation log to undo from, so there is nothing to
// gain from keeping a tombstone.
func (b *FileBackend) DeleteTask(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	if _, ok := b.tasks[id]; !ok {
		return nil
	}
	delete(b.tasks, id)
	if err := b.flushLocked(); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (b *FileBackend) LoadAllTasks() ([]*task.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return b.snapshotLocked(), nil
}

func (b *FileBackend) QueryTasks(q *query.TaskQuery, contextProject string) ([]*task.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return q.Apply(b.snapshotLocked(), contextProject), nil
}

// Backup copies the task file to a timestamped sibling and returns the
// backup's file name as the restore label.
func (b *FileBackend) Backup() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return "", ErrNotInitialized
	}
	if err := b.flushLocked(); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	data, err := os.ReadFile(b.path)
	if err != nil {
		return "", fmt.Errorf("backup: read task file: %w", err)
	}

	label := backupName(filepath.Base(b.path), time.Now())
	target := filepath.Join(filepath.Dir(b.path), label)
	if err := os.WriteFile(target, data, 0600); err != nil {
		return "", fmt.Errorf("backup: write %s: %w", target, err)
	}
	b.logger.Printf("backed up %d tasks to %s", len(b.tasks), target)
	return label, nil
}

// Restore replaces the current task set from a backup label previously
// returned by Backup.
func (b *FileBackend) Restore(label string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}

	target := filepath.Join(filepath.Dir(b.path), filepath.Base(label))
	data, err := os.ReadFile(target)
	if os.IsNotExist(err) {
		return fmt.Errorf("restore %s: %w", label, ErrBackupNotFound)
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", label, err)
	}
	tasks, err := decodeTaskFile(data)
	if err != nil {
		return fmt.Errorf("restore %s: %w", label, err)
	}
	b.tasks = tasks
	if err := b.flushLocked(); err != nil {
		return fmt.Errorf("restore %s: %w", label, err)
	}
	b.logger.Printf("restored %d tasks from %s", len(tasks), target)
	return nil
}

func (b *FileBackend) Close() error {
	return nil
}

// flushLocked writes the full task set atomically: marshal, write to a
// temp file, rename over the real one. Callers hold the write lock.
func (b *FileBackend) flushLocked() error {
	all := b.snapshotLocked()
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	tmpPath := b.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// snapshotLocked clones every task into a slice ordered by entry time,
// oldest first, with UUID as the tiebreak so output is deterministic.
func (b *FileBackend) snapshotLocked() []*task.Task {
	all := make([]*task.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		all = append(all, t.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Entry.Equal(all[j].Entry) {
			return all[i].Entry.Before(all[j].Entry)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return all
}

func decodeTaskFile(data []byte) (map[uuid.UUID]*task.Task, error) {
	var list []*task.Task
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	tasks := make(map[uuid.UUID]*task.Task, len(list))
	for _, t := range list {
		tasks[t.ID] = t
	}
	return tasks, nil
}

func backupName(base string, now time.Time) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s-%s%s", stem, now.Format(backupStamp), ext)
}
