// Package migrate moves tasks between storage backends and the JSONL
// interchange format used by export/import.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/steveyegge/taskdb/internal/storage"
	"github.com/steveyegge/taskdb/internal/task"
)

// Options configures a backend-to-backend migration.
type Options struct {
	From   storage.Backend
	To     storage.Backend
	DryRun bool // Preview without writing
}

// Result contains statistics about a migration or import.
type Result struct {
	TasksRead    int
	TasksWritten int
	Errors       []string
}

// ExportJSONL writes every task in the backend as one JSON object per
// line and returns the number exported.
func ExportJSONL(b storage.Backend, w io.Writer) (int, error) {
	tasks, err := b.LoadAllTasks()
	if err != nil {
		return 0, fmt.Errorf("load tasks for export: %w", err)
	}
	enc := json.NewEncoder(w)
	for _, t := range tasks {
		if err := enc.Encode(t); err != nil {
			return 0, fmt.Errorf("encode task %s: %w", t.ID, err)
		}
	}
	return len(tasks), nil
}

// ReadJSONL parses a JSONL stream into tasks. Parsing stops at the
// first malformed line so a truncated file fails loudly instead of
// importing half its content.
func ReadJSONL(r io.Reader) ([]*task.Task, error) {
	var tasks []*task.Task
	dec := json.NewDecoder(r)
	line := 0
	for {
		var t task.Task
		if err := dec.Decode(&t); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %w", line+1, err)
		}
		line++
		t.SetDefaults()
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

// ImportJSONL reads tasks from r and saves them into the backend.
// Tasks that fail validation or saving are skipped and reported in the
// result rather than aborting the whole import.
func ImportJSONL(b storage.Backend, r io.Reader) (*Result, error) {
	tasks, err := ReadJSONL(r)
	if err != nil {
		return nil, err
	}

	result := &Result{TasksRead: len(tasks)}
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("task %s invalid: %v", t.ID, err))
			continue
		}
		if err := b.SaveTask(t); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("task %s not saved: %v", t.ID, err))
			continue
		}
		result.TasksWritten++
	}
	return result, nil
}

// Migrate copies every task from one backend to another. Logically
// deleted tasks are not carried over.
func Migrate(ctx context.Context, opts Options) (*Result, error) {
	tasks, err := opts.From.LoadAllTasks()
	if err != nil {
		return nil, fmt.Errorf("load source tasks: %w", err)
	}

	result := &Result{TasksRead: len(tasks)}
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if t.Status == task.StatusDeleted {
			continue
		}
		if opts.DryRun {
			result.TasksWritten++
			continue
		}
		if err := opts.To.SaveTask(t); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("task %s not saved: %v", t.ID, err))
			continue
		}
		result.TasksWritten++
	}
	return result, nil
}
