// Package storage provides the persistence backends the task manager
// depends on: a simple JSON file backend and a replica-backed backend
// that routes all mutation through an operation batch committed by a
// ReplicaWrapper.
package storage

import (
	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/query"
	"github.com/steveyegge/taskdb/internal/task"
)

// Backend is the persistence capability consumed by the task manager.
// Absence is not an error: LoadTask returns (nil, nil) for an unknown
// identity.
type Backend interface {
	// Initialize prepares the backend for use (creates files or
	// directories, opens connections). Must be called before any other
	// method.
	Initialize() error

	// SaveTask persists a task, creating it if new and otherwise
	// writing only what changed.
	SaveTask(t *task.Task) error

	// LoadTask returns the task with the given identity, or (nil, nil)
	// when no such task exists.
	LoadTask(id uuid.UUID) (*task.Task, error)

	// DeleteTask removes a task. Backends may delete logically; a
	// logically deleted task remains loadable with status deleted.
	DeleteTask(id uuid.UUID) error

	// LoadAllTasks returns every stored task.
	LoadAllTasks() ([]*task.Task, error)

	// QueryTasks returns the tasks matching q, constrained by the
	// active context project unless the query ignores it. An empty
	// contextProject means no context is active.
	QueryTasks(q *query.TaskQuery, contextProject string) ([]*task.Task, error)

	// Backup snapshots the backend's state and returns a label that
	// Restore accepts. Backends without snapshot support return
	// ErrNotSupported.
	Backup() (string, error)

	// Restore replaces the backend's state from a backup label.
	Restore(label string) error

	// Close releases any resources held by the backend.
	Close() error
}
