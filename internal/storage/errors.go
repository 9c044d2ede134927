package storage

import "errors"

// Common errors returned by storage backends.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, storage.ErrNotSupported) {
//	    // This backend has no backup/restore support.
//	}
var (
	// ErrWriteNotConfigured is returned by mutating operations on the
	// replica backend when no replica wrapper was injected. A setup bug,
	// not a retryable condition.
	ErrWriteNotConfigured = errors.New("write path not configured")

	// ErrNotSupported is returned for operations the backend cannot
	// perform, such as backup/restore on the replica backend.
	ErrNotSupported = errors.New("operation not supported by this backend")

	// ErrNotInitialized is returned when a backend is used before
	// Initialize has been called.
	ErrNotInitialized = errors.New("storage backend not initialized")

	// ErrBackupNotFound is returned by Restore when the named backup
	// does not exist.
	ErrBackupNotFound = errors.New("backup not found")
)
