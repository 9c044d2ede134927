package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/steveyegge/taskdb/internal/storage"
	"github.com/steveyegge/taskdb/internal/task"
)

// resolveTask finds the task addressed by ref: a full UUID or a unique
// UUID prefix.
func resolveTask(b storage.Backend, ref string) (*task.Task, error) {
	if id, err := uuid.Parse(ref); err == nil {
		t, err := b.LoadTask(id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("no task with uuid %s", id)
		}
		return t, nil
	}

	all, err := b.LoadAllTasks()
	if err != nil {
		return nil, err
	}
	var matches []*task.Task
	for _, t := range all {
		if strings.HasPrefix(t.ID.String(), strings.ToLower(ref)) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q is ambiguous: %d tasks match", ref, len(matches))
	}
}
