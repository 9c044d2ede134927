// Package query defines the task query model: status, project, tag and
// date filters, sort criteria, and in-process evaluation against tasks.
//
// Queries are plain data. Storage backends fetch their full task set and
// apply the query in-process; there is no filter pushdown.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/taskdb/internal/task"
)

// ProjectMatch selects how a project filter compares against a task.
type ProjectMatch int

const (
	// ProjectExact matches the project name exactly.
	ProjectExact ProjectMatch = iota
	// ProjectHierarchy matches the project and any sub-project
	// ("home" matches "home.garden").
	ProjectHierarchy
	// ProjectMultiple matches any of a list of candidate projects.
	ProjectMultiple
	// ProjectNone matches tasks with no project at all.
	ProjectNone
)

// ProjectFilter constrains the project field of matched tasks.
type ProjectFilter struct {
	Match    ProjectMatch
	Project  string
	Projects []string
}

// Matches reports whether a task project satisfies the filter.
func (f *ProjectFilter) Matches(project string) bool {
	switch f.Match {
	case ProjectExact:
		return project == f.Project
	case ProjectHierarchy:
		if project == "" {
			return false
		}
		return project == f.Project || strings.HasPrefix(project, f.Project+".")
	case ProjectMultiple:
		for _, p := range f.Projects {
			if project == p {
				return true
			}
		}
		return false
	case ProjectNone:
		return project == ""
	}
	return false
}

// TagFilter constrains task tags: Include lists tags of which at least one
// must be present, Exclude lists tags that must all be absent.
type TagFilter struct {
	Include []string
	Exclude []string
}

// IsEmpty reports whether the filter has no conditions.
func (f *TagFilter) IsEmpty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

// Matches reports whether a tag set satisfies the filter.
func (f *TagFilter) Matches(tags []string) bool {
	has := func(tag string) bool {
		for _, have := range tags {
			if have == tag {
				return true
			}
		}
		return false
	}
	if len(f.Include) > 0 {
		any := false
		for _, tag := range f.Include {
			if has(tag) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	for _, tag := range f.Exclude {
		if has(tag) {
			return false
		}
	}
	return true
}

// DateField selects which task timestamp a DateFilter inspects.
type DateField int

const (
	DateDue DateField = iota
	DateScheduled
	DateModified
	DateEntry
)

// DateFilter constrains one of the task timestamps to a window.
// A zero Before or After bound is open.
type DateFilter struct {
	Field  DateField
	After  time.Time
	Before time.Time
}

// Matches reports whether the task's selected timestamp falls inside the
// window. Tasks missing an optional timestamp never match.
func (f *DateFilter) Matches(t *task.Task) bool {
	var when time.Time
	switch f.Field {
	case DateDue:
		if t.Due == nil {
			return false
		}
		when = *t.Due
	case DateScheduled:
		if t.Scheduled == nil {
			return false
		}
		when = *t.Scheduled
	case DateModified:
		if t.Modified == nil {
			return false
		}
		when = *t.Modified
	case DateEntry:
		when = t.Entry
	}
	if !f.After.IsZero() && !when.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !when.Before(f.Before) {
		return false
	}
	return true
}

// SortField selects the ordering of query results.
type SortField string

const (
	SortEntry    SortField = "entry"
	SortModified SortField = "modified"
	SortDue      SortField = "due"
	SortPriority SortField = "priority"
	SortProject  SortField = "project"
)

// SortCriteria orders query results by one field.
type SortCriteria struct {
	Field     SortField
	Ascending bool
}

// FilterMode controls how an active user context combines with a query.
type FilterMode int

const (
	// ApplyContext ANDs the active context constraint with explicit
	// filters. This is the default.
	ApplyContext FilterMode = iota
	// IgnoreContext evaluates the query without the active context.
	IgnoreContext
)

// TaskQuery is a full query specification. Zero value matches everything.
type TaskQuery struct {
	Status  *task.Status
	Project *ProjectFilter
	Tags    *TagFilter
	Date    *DateFilter
	Sort    *SortCriteria
	Limit   int // 0 = unlimited
	Offset  int
	Mode    FilterMode
}

// Matches evaluates the query's filters (not sort or pagination) against
// one task. The context project, if non-empty, is AND-combined unless the
// query mode is IgnoreContext.
func (q *TaskQuery) Matches(t *task.Task, contextProject string) bool {
	if q.Status != nil && t.Status != *q.Status {
		return false
	}
	if q.Project != nil && !q.Project.Matches(t.Project) {
		return false
	}
	if q.Tags != nil && !q.Tags.Matches(t.Tags) {
		return false
	}
	if q.Date != nil && !q.Date.Matches(t) {
		return false
	}
	if contextProject != "" && q.Mode != IgnoreContext && t.Project != contextProject {
		return false
	}
	return true
}

// Apply evaluates the full query against a task slice: filter, sort and
// paginate. The input slice is not modified.
func (q *TaskQuery) Apply(tasks []*task.Task, contextProject string) []*task.Task {
	matched := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if q.Matches(t, contextProject) {
			matched = append(matched, t)
		}
	}

	if q.Sort != nil {
		sortTasks(matched, *q.Sort)
	}

	if q.Offset >= len(matched) {
		return []*task.Task{}
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched
}

func sortTasks(tasks []*task.Task, by SortCriteria) {
	less := func(a, b *task.Task) bool { return false }

	switch by.Field {
	case SortEntry:
		less = func(a, b *task.Task) bool { return a.Entry.Before(b.Entry) }
	case SortModified:
		less = func(a, b *task.Task) bool {
			at, bt := a.Entry, b.Entry
			if a.Modified != nil {
				at = *a.Modified
			}
			if b.Modified != nil {
				bt = *b.Modified
			}
			return at.Before(bt)
		}
	case SortDue:
		// Tasks without a due date sort last regardless of direction.
		less = func(a, b *task.Task) bool {
			switch {
			case a.Due != nil && b.Due != nil:
				if by.Ascending {
					return a.Due.Before(*b.Due)
				}
				return b.Due.Before(*a.Due)
			case a.Due != nil:
				return true
			default:
				return false
			}
		}
		sort.SliceStable(tasks, func(i, j int) bool { return less(tasks[i], tasks[j]) })
		return
	case SortPriority:
		rank := map[task.Priority]int{
			task.PriorityHigh: 0,
			task.PriorityMed:  1,
			task.PriorityLow:  2,
			task.PriorityNone: 3,
		}
		less = func(a, b *task.Task) bool {
			if by.Ascending {
				return rank[a.Priority] > rank[b.Priority]
			}
			return rank[a.Priority] < rank[b.Priority]
		}
		sort.SliceStable(tasks, func(i, j int) bool { return less(tasks[i], tasks[j]) })
		return
	case SortProject:
		less = func(a, b *task.Task) bool { return a.Project < b.Project }
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if by.Ascending {
			return less(tasks[i], tasks[j])
		}
		return less(tasks[j], tasks[i])
	})
}

// ProjectFromFilter extracts the project name from a context filter
// expression such as "project:home +next". Returns "" when the expression
// carries no project term.
func ProjectFromFilter(filter string) string {
	for _, term := range strings.Fields(filter) {
		if rest, ok := strings.CutPrefix(term, "project:"); ok && rest != "" {
			return rest
		}
		if rest, ok := strings.CutPrefix(term, "project.is:"); ok && rest != "" {
			return rest
		}
	}
	return ""
}
