// Package mirror provides the daemon that watches a JSON task file and
// mirrors its contents into an embedded replica.
//
// The daemon:
// 1. Watches the task file for writes
// 2. Diffs changed tasks into operation batches and commits them
// 3. Periodically performs a full re-sync as a safety net
// 4. Handles graceful shutdown
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/steveyegge/taskdb/internal/replica"
	"github.com/steveyegge/taskdb/internal/task"
)

// Config holds configuration for the mirror daemon.
type Config struct {
	// DebounceInterval is how long to wait before processing file
	// changes, batching rapid successive writes together.
	DebounceInterval time.Duration

	// FullSyncInterval is how often to re-sync the whole file even
	// without a file event.
	FullSyncInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 100 * time.Millisecond,
		FullSyncInterval: 30 * time.Second,
		Logger:           log.New(os.Stderr, "[mirror] ", log.LstdFlags),
	}
}

// Mirror watches a task file and keeps a replica in step with it.
type Mirror struct {
	taskFile string
	wrapper  replica.ReplicaWrapper
	config   *Config

	watcher  *fsnotify.Watcher
	dirtyAt  time.Time
	dirtyMu  sync.Mutex
	mirrored map[uuid.UUID]bool // ids seen in the previous sync

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a mirror for taskFile writing into wrapper. Use Start to
// begin watching and syncing.
func New(taskFile string, wrapper replica.ReplicaWrapper, config *Config) (*Mirror, error) {
	if taskFile == "" {
		return nil, fmt.Errorf("taskFile cannot be empty")
	}
	if wrapper == nil {
		return nil, fmt.Errorf("wrapper cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mirror{
		taskFile: taskFile,
		wrapper:  wrapper,
		config:   config,
		watcher:  watcher,
		mirrored: make(map[uuid.UUID]bool),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins the daemon's operation: an initial full sync, then event
// driven syncs with debouncing plus a periodic full re-sync. Blocks
// until ctx is cancelled.
func (m *Mirror) Start(ctx context.Context) error {
	m.config.Logger.Println("Starting mirror")

	if err := m.SyncOnce(); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	// Watch the directory, not the file: the file backend replaces the
	// file by rename, which a file-level watch loses track of.
	if err := m.watcher.Add(filepath.Dir(m.taskFile)); err != nil {
		return fmt.Errorf("failed to watch task directory: %w", err)
	}
	m.config.Logger.Printf("Watching: %s", m.taskFile)

	m.wg.Add(2)
	go m.watchFileEvents()
	go m.processChanges()

	select {
	case <-ctx.Done():
		m.config.Logger.Println("Shutdown signal received")
		return m.Stop()
	case <-m.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (m *Mirror) Stop() error {
	m.config.Logger.Println("Stopping mirror")
	m.cancel()
	if err := m.watcher.Close(); err != nil {
		m.config.Logger.Printf("Error closing watcher: %v", err)
	}
	m.wg.Wait()
	m.config.Logger.Println("Mirror stopped")
	return nil
}

// SyncOnce mirrors the current file contents into the replica: changed
// tasks become update batches, new tasks become creates, and tasks that
// disappeared since the previous sync become logical deletes.
func (m *Mirror) SyncOnce() error {
	tasks, err := readTaskFile(m.taskFile)
	if err != nil {
		return err
	}

	seen := make(map[uuid.UUID]bool, len(tasks))
	synced := 0
	for _, t := range tasks {
		seen[t.ID] = true
		snapshot, err := m.wrapper.ReadTask(t.ID)
		if err != nil {
			m.config.Logger.Printf("Warning: snapshot read for %s failed: %v", t.ID, err)
			continue
		}
		batch := replica.BuildSaveBatch(snapshot, t)
		if len(batch) == 1 {
			continue // nothing but the undo point: no change
		}
		if err := m.wrapper.CommitOperations(batch); err != nil {
			m.config.Logger.Printf("Warning: failed to mirror task %s: %v", t.ID, err)
			continue
		}
		synced++
	}

	for id := range m.mirrored {
		if seen[id] {
			continue
		}
		m.config.Logger.Printf("Task %s removed from file, deleting", id)
		if err := m.wrapper.CommitOperations(replica.BuildDeleteBatch(id)); err != nil {
			m.config.Logger.Printf("Warning: failed to delete task %s: %v", id, err)
			seen[id] = true // retry the delete next sync
		}
	}
	m.mirrored = seen

	if synced > 0 {
		m.config.Logger.Printf("Synced %d tasks", synced)
	}
	return nil
}

// watchFileEvents monitors filesystem events and marks the file dirty.
func (m *Mirror) watchFileEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.taskFile) {
				continue
			}
			m.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			m.markDirty()

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (m *Mirror) markDirty() {
	m.dirtyMu.Lock()
	defer m.dirtyMu.Unlock()
	m.dirtyAt = time.Now()
}

// processChanges runs debounced syncs plus the periodic full re-sync.
func (m *Mirror) processChanges() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.DebounceInterval)
	defer ticker.Stop()
	fullSync := time.NewTicker(m.config.FullSyncInterval)
	defer fullSync.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case <-ticker.C:
			if !m.takeDirty() {
				continue
			}
			if err := m.SyncOnce(); err != nil {
				m.config.Logger.Printf("Error syncing: %v", err)
			}

		case <-fullSync.C:
			if err := m.SyncOnce(); err != nil {
				m.config.Logger.Printf("Error in periodic sync: %v", err)
			}
		}
	}
}

// takeDirty consumes the dirty mark if it has aged past the debounce
// interval.
func (m *Mirror) takeDirty() bool {
	m.dirtyMu.Lock()
	defer m.dirtyMu.Unlock()
	if m.dirtyAt.IsZero() || time.Since(m.dirtyAt) < m.config.DebounceInterval {
		return false
	}
	m.dirtyAt = time.Time{}
	return true
}

// readTaskFile loads the mirrored JSON file. A missing file is an empty
// task set: everything previously mirrored gets deleted.
func readTaskFile(path string) ([]*task.Task, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	var tasks []*task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse task file %s: %w", path, err)
	}
	return tasks, nil
}
