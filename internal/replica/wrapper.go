package replica

import (
	"errors"

	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/task"
)

// Common errors returned by replica operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, replica.ErrReplicaClosed) {
//	    // The actor's worker is gone; the handle is permanently unusable.
//	}
var (
	// ErrReplicaClosed is returned by every call once the actor's worker
	// has exited, whether through Close or an unexpected death. Terminal
	// for that actor instance.
	ErrReplicaClosed = errors.New("replica closed")

	// ErrStartupTimeout is returned by the factory when the worker does
	// not complete its startup handshake within the allowed window.
	ErrStartupTimeout = errors.New("replica startup timed out")
)

// ReplicaWrapper is the capability a storage backend depends on for
// embedded-store semantics. The concrete implementation is the actor
// returned by OpenEmbeddedReplica; tests substitute in-memory fakes.
//
// All methods are safe for concurrent use from multiple goroutines.
type ReplicaWrapper interface {
	// Open points the wrapper at a store location, creating the store if
	// missing. Idempotent for the current path; never leaks the prior
	// handle when switching paths.
	Open(path string) error

	// CommitOperations applies the batch transactionally and in order.
	// On any mapping or store failure the entire batch is rejected and
	// no partial writes are observable.
	CommitOperations(ops []Operation) error

	// ReadTask returns the current snapshot for id, or (nil, nil) when
	// no such task exists.
	ReadTask(id uuid.UUID) (*task.Task, error)

	// Close shuts the wrapper down, releasing the underlying handle.
	// Subsequent calls on the wrapper return ErrReplicaClosed.
	Close() error
}
