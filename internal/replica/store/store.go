// Package store implements the embedded, operation-logged task database
// behind the replica.
//
// The store runs in embedded mode using SQLite with WAL for concurrency
// support. A task is a row holding a JSON object of string fields; every
// mutation is appended to an operations log, with undo-point rows marking
// the boundaries of undoable units of work.
//
// Schema:
//   - tasks(uuid TEXT PRIMARY KEY, data TEXT)    -- data: JSON {field: value}
//   - operations(id INTEGER PK, uuid, kind, detail, created_at)
//
// The store handle is NOT safe for concurrent mutation; the replica actor
// owns it exclusively on one goroutine. The read-only query methods on
// Store are safe for a separate direct reader connection.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Joined-field conventions shared with the replica mapping layer.
const (
	FieldStatus      = "status"
	FieldDescription = "description"
	FieldTags        = "tags"        // space-joined tag names
	FieldDepends     = "depends"     // space-joined UUIDs
	FieldAnnotations = "annotations" // newline-joined "entry description"
)

// TimeFormat is the fixed text format for every timestamp field value.
const TimeFormat = time.RFC3339

// Operation log kinds.
const (
	OpUndoPoint = "undo_point"
	OpCreate    = "create"
	OpSet       = "set"
	OpUnset     = "unset"
)

// Store wraps the embedded database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store at the given filesystem path.
//
// The parent directory is created if missing. The caller MUST call Close()
// when done to checkpoint and release the database.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	s := &Store{conn: conn, path: path}

	// WAL lets the direct reader connection proceed during commits.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens a second connection for bulk reads. The store must
// already exist; this never creates one.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store not found at %s: %w", path, err)
	}
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open store read-only: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}
	return &Store{conn: conn, path: path}, nil
}

// Path returns the filesystem path the store was opened at.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	s.conn = nil
	return nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		uuid TEXT PRIMARY KEY,
		data TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT,
		kind TEXT NOT NULL,
		detail TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_operations_uuid ON operations(uuid);
	CREATE INDEX IF NOT EXISTS idx_operations_kind ON operations(kind);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// TaskFields returns the field map for one task. The second return is
// false when the task does not exist.
func (s *Store) TaskFields(id string) (map[string]string, bool, error) {
	var data string
	err := s.conn.QueryRow("SELECT data FROM tasks WHERE uuid = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query task %s: %w", id, err)
	}
	fields, err := decodeFields(data)
	if err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

// AllTasks returns the field maps of every task, keyed by UUID text.
func (s *Store) AllTasks() (map[string]map[string]string, error) {
	rows, err := s.conn.Query("SELECT uuid, data FROM tasks")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		fields, err := decodeFields(data)
		if err != nil {
			return nil, err
		}
		out[id] = fields
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return out, nil
}

// TaskCount returns the number of task rows, deleted ones included.
func (s *Store) TaskCount() (int, error) {
	var count int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// OperationCount returns the length of the durable operation log.
func (s *Store) OperationCount() (int, error) {
	var count int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM operations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return count, nil
}

// UndoPointCount returns the number of undo boundaries in the log.
func (s *Store) UndoPointCount() (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM operations WHERE kind = ?", OpUndoPoint).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count undo points: %w", err)
	}
	return count, nil
}

// Begin starts a mutation transaction. Exactly one of Commit or Rollback
// must be called on the returned Txn.
func (s *Store) Begin() (*Txn, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Txn{tx: tx}, nil
}

// Txn is one atomic unit of store mutation. All helpers operate on the
// transaction's view; nothing is visible to readers until Commit.
type Txn struct {
	tx *sql.Tx
}

// Commit makes the transaction's mutations durable and visible.
func (t *Txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback abandons the transaction. Safe to call after Commit.
func (t *Txn) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// TaskFields reads a task's field map inside the transaction.
func (t *Txn) TaskFields(id string) (map[string]string, bool, error) {
	var data string
	err := t.tx.QueryRow("SELECT data FROM tasks WHERE uuid = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query task %s: %w", id, err)
	}
	fields, err := decodeFields(data)
	if err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

// EnsureTask creates an empty task row if none exists and logs the
// creation. Existing rows are left untouched.
func (t *Txn) EnsureTask(id string) error {
	res, err := t.tx.Exec("INSERT OR IGNORE INTO tasks (uuid, data) VALUES (?, '{}')", id)
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return t.logOp(id, OpCreate, "")
	}
	return nil
}

// SetField writes one field value, creating the task row if needed.
func (t *Txn) SetField(id, key, value string) error {
	if err := t.EnsureTask(id); err != nil {
		return err
	}
	fields, _, err := t.TaskFields(id)
	if err != nil {
		return err
	}
	fields[key] = value
	if err := t.writeFields(id, fields); err != nil {
		return err
	}
	return t.logOp(id, OpSet, encodeDetail(key, value))
}

// UnsetField removes one field. Unsetting an absent field is a no-op but
// is still logged, matching the log-everything discipline of the store.
func (t *Txn) UnsetField(id, key string) error {
	fields, ok, err := t.TaskFields(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	delete(fields, key)
	if err := t.writeFields(id, fields); err != nil {
		return err
	}
	return t.logOp(id, OpUnset, encodeDetail(key, ""))
}

// RecordUndoPoint appends an undo boundary to the operation log.
func (t *Txn) RecordUndoPoint() error {
	return t.logOp("", OpUndoPoint, "")
}

// AddTag adds a tag to the task's joined tags field. The task must exist;
// the fallback write path handles same-batch creates.
func (t *Txn) AddTag(id, tag string) error {
	return t.editJoined(id, FieldTags, " ", func(items []string) []string {
		for _, have := range items {
			if have == tag {
				return items
			}
		}
		return append(items, tag)
	})
}

// RemoveTag removes a tag from the joined tags field.
func (t *Txn) RemoveTag(id, tag string) error {
	return t.editJoined(id, FieldTags, " ", func(items []string) []string {
		return remove(items, tag)
	})
}

// AddDependency adds a dependency UUID to the joined depends field.
func (t *Txn) AddDependency(id, dependsOn string) error {
	return t.editJoined(id, FieldDepends, " ", func(items []string) []string {
		for _, have := range items {
			if have == dependsOn {
				return items
			}
		}
		return append(items, dependsOn)
	})
}

// RemoveDependency removes a dependency UUID from the joined depends field.
func (t *Txn) RemoveDependency(id, dependsOn string) error {
	return t.editJoined(id, FieldDepends, " ", func(items []string) []string {
		return remove(items, dependsOn)
	})
}

// AddAnnotation appends an "entry description" line to the annotations
// field. Entry is rendered in the store's fixed time format, so the first
// space always separates timestamp from text.
func (t *Txn) AddAnnotation(id string, entry time.Time, description string) error {
	line := entry.UTC().Format(TimeFormat) + " " + strings.ReplaceAll(description, "\n", " ")
	return t.editJoined(id, FieldAnnotations, "\n", func(items []string) []string {
		return append(items, line)
	})
}

// editJoined applies an edit to a list-valued field stored as a joined
// string. The field is removed entirely when the edit empties the list.
func (t *Txn) editJoined(id, key, sep string, edit func([]string) []string) error {
	fields, ok, err := t.TaskFields(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}

	var items []string
	if raw := fields[key]; raw != "" {
		items = strings.Split(raw, sep)
	}
	items = edit(items)

	if len(items) == 0 {
		delete(fields, key)
	} else {
		fields[key] = strings.Join(items, sep)
	}
	if err := t.writeFields(id, fields); err != nil {
		return err
	}
	return t.logOp(id, OpSet, encodeDetail(key, fields[key]))
}

func (t *Txn) writeFields(id string, fields map[string]string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields for %s: %w", id, err)
	}
	if _, err := t.tx.Exec("UPDATE tasks SET data = ? WHERE uuid = ?", string(data), id); err != nil {
		return fmt.Errorf("failed to write task %s: %w", id, err)
	}
	return nil
}

func (t *Txn) logOp(id, kind, detail string) error {
	_, err := t.tx.Exec(
		"INSERT INTO operations (uuid, kind, detail, created_at) VALUES (?, ?, ?, ?)",
		id, kind, detail, time.Now().UTC().Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to log %s operation: %w", kind, err)
	}
	return nil
}

func decodeFields(data string) (map[string]string, error) {
	fields := make(map[string]string)
	if data == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("corrupt task data: %w", err)
	}
	return fields, nil
}

func encodeDetail(key, value string) string {
	detail, _ := json.Marshal(map[string]string{"key": key, "value": value})
	return string(detail)
}

func remove(items []string, item string) []string {
	out := items[:0]
	for _, have := range items {
		if have != item {
			out = append(out, have)
		}
	}
	return out
}
