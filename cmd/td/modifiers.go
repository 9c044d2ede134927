package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/taskdb/internal/dates"
	"github.com/steveyegge/taskdb/internal/task"
)

// applyModifiers interprets taskwarrior-style command line tokens
// against a task: +tag / -tag, project:, priority:, due:, wait:,
// scheduled:, recur:. Everything else is collected as description words
// and returned.
func applyModifiers(t *task.Task, args []string) ([]string, error) {
	var words []string
	now := time.Now()

	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "+") && len(arg) > 1:
			t.AddTag(arg[1:])
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			t.RemoveTag(arg[1:])
		case strings.HasPrefix(arg, "project:"):
			t.Project = strings.TrimPrefix(arg, "project:")
		case strings.HasPrefix(arg, "priority:"):
			raw := strings.TrimPrefix(arg, "priority:")
			if raw == "" {
				t.Priority = task.PriorityNone
				continue
			}
			p := task.ParsePriority(strings.ToUpper(raw))
			if p == task.PriorityNone {
				return nil, fmt.Errorf("invalid priority %q (want H, M or L)", raw)
			}
			t.Priority = p
		case strings.HasPrefix(arg, "due:"):
			if err := setDate(&t.Due, strings.TrimPrefix(arg, "due:"), now); err != nil {
				return nil, err
			}
		case strings.HasPrefix(arg, "wait:"):
			if err := setDate(&t.Wait, strings.TrimPrefix(arg, "wait:"), now); err != nil {
				return nil, err
			}
			if t.Wait != nil {
				t.Status = task.StatusWaiting
			}
		case strings.HasPrefix(arg, "scheduled:"):
			if err := setDate(&t.Scheduled, strings.TrimPrefix(arg, "scheduled:"), now); err != nil {
				return nil, err
			}
		case strings.HasPrefix(arg, "recur:"):
			t.Recur = strings.TrimPrefix(arg, "recur:")
		default:
			words = append(words, arg)
		}
	}
	return words, nil
}

// setDate resolves a date expression into the target field; an empty
// expression clears it.
func setDate(target **time.Time, expr string, now time.Time) error {
	if expr == "" {
		*target = nil
		return nil
	}
	when, err := dates.Parse(expr, now)
	if err != nil {
		return err
	}
	*target = &when
	return nil
}
