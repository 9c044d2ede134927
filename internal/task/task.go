// Package task provides the task domain model shared by every storage
// backend: the Task entity, its status and priority enumerations,
// annotations, and user-defined attributes.
package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the lifecycle states of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
	StatusWaiting   Status = "waiting"
	StatusRecurring Status = "recurring"
)

// ParseStatus converts a stored status string to a Status.
// Unknown values fall back to pending, matching the permissive
// behavior of the import path.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusPending, StatusCompleted, StatusDeleted, StatusWaiting, StatusRecurring:
		return Status(s)
	default:
		return StatusPending
	}
}

// Priority is the optional task priority. Empty means unset.
type Priority string

const (
	PriorityNone Priority = ""
	PriorityLow  Priority = "L"
	PriorityMed  Priority = "M"
	PriorityHigh Priority = "H"
)

// ParsePriority converts a stored priority string. Unknown values map to
// PriorityNone rather than erroring.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMed, PriorityHigh:
		return Priority(s)
	default:
		return PriorityNone
	}
}

// Annotation is a timestamped note attached to a task.
// Annotations are ordered by insertion and are not required to be unique.
type Annotation struct {
	Entry       time.Time `json:"entry"`
	Description string    `json:"description"`
}

// NewAnnotation creates an annotation timestamped now.
func NewAnnotation(description string) Annotation {
	return Annotation{Entry: time.Now().UTC(), Description: description}
}

// UDAValue is a user-defined attribute value. Exactly one of the typed
// fields is meaningful, selected by Kind.
type UDAValue struct {
	Kind   UDAKind   `json:"kind"`
	String string    `json:"string,omitempty"`
	Number float64   `json:"number,omitempty"`
	Date   time.Time `json:"date,omitempty"`
}

// UDAKind tags the active variant of a UDAValue.
type UDAKind string

const (
	UDAString UDAKind = "string"
	UDANumber UDAKind = "number"
	UDADate   UDAKind = "date"
)

// StringUDA wraps a string attribute value.
func StringUDA(s string) UDAValue { return UDAValue{Kind: UDAString, String: s} }

// NumberUDA wraps a numeric attribute value.
func NumberUDA(n float64) UDAValue { return UDAValue{Kind: UDANumber, Number: n} }

// DateUDA wraps a date attribute value.
func DateUDA(t time.Time) UDAValue { return UDAValue{Kind: UDADate, Date: t} }

// Task is the central task entity. The JSON shape follows the taskwarrior
// export format: the identity field is "uuid" and the optional working-set
// index, when present, is "id".
type Task struct {
	ID uuid.UUID `json:"uuid"`

	// DisplayID is a transient working-set index for CLI display.
	// It is never persisted by the replica store.
	DisplayID int `json:"id,omitempty"`

	Description string `json:"description"`
	Status      Status `json:"status"`

	Entry     time.Time  `json:"entry"`
	Modified  *time.Time `json:"modified,omitempty"`
	Due       *time.Time `json:"due,omitempty"`
	Scheduled *time.Time `json:"scheduled,omitempty"`
	Wait      *time.Time `json:"wait,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Start     *time.Time `json:"start,omitempty"`

	Priority Priority `json:"priority,omitempty"`
	Project  string   `json:"project,omitempty"`

	// Tags is a set: values are unique, order is not meaningful.
	Tags []string `json:"tags,omitempty"`

	// Annotations keep insertion order.
	Annotations []Annotation `json:"annotations,omitempty"`

	// Depends holds the UUIDs of tasks this task depends on (a set).
	Depends []uuid.UUID `json:"depends,omitempty"`

	Urgency float64 `json:"urgency,omitempty"`

	// UDAs are user-defined attributes keyed by name.
	UDAs map[string]UDAValue `json:"udas,omitempty"`

	Recur  string     `json:"recur,omitempty"`
	Parent *uuid.UUID `json:"parent,omitempty"`
	Mask   string     `json:"mask,omitempty"`

	Active bool `json:"active,omitempty"`
}

// New creates a pending task with the given description and a fresh UUID.
func New(description string) *Task {
	return &Task{
		ID:          uuid.New(),
		Description: description,
		Status:      StatusPending,
		Entry:       time.Now().UTC(),
	}
}

// SetDefaults fills the fields a bare imported record may omit: a fresh
// UUID, pending status and an entry timestamp.
func (t *Task) SetDefaults() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Entry.IsZero() {
		t.Entry = time.Now().UTC()
	}
}

// Validate checks the invariants every stored task must satisfy.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("uuid is required")
	}
	if t.Description == "" {
		return fmt.Errorf("description is required")
	}
	if t.Entry.IsZero() {
		return fmt.Errorf("entry timestamp is required")
	}
	switch t.Status {
	case StatusPending, StatusCompleted, StatusDeleted, StatusWaiting, StatusRecurring:
	default:
		return fmt.Errorf("invalid status %q", t.Status)
	}
	return nil
}

// Clone returns a deep copy. Storage backends hand out clones so callers
// can mutate freely before saving.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.Annotations = append([]Annotation(nil), t.Annotations...)
	c.Depends = append([]uuid.UUID(nil), t.Depends...)
	if t.UDAs != nil {
		c.UDAs = make(map[string]UDAValue, len(t.UDAs))
		for k, v := range t.UDAs {
			c.UDAs[k] = v
		}
	}
	cloneTime := func(p *time.Time) *time.Time {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	c.Modified = cloneTime(t.Modified)
	c.Due = cloneTime(t.Due)
	c.Scheduled = cloneTime(t.Scheduled)
	c.Wait = cloneTime(t.Wait)
	c.End = cloneTime(t.End)
	c.Start = cloneTime(t.Start)
	if t.Parent != nil {
		p := *t.Parent
		c.Parent = &p
	}
	return &c
}

func (t *Task) touch() {
	now := time.Now().UTC()
	t.Modified = &now
}

// Complete marks the task completed and stops time tracking.
func (t *Task) Complete() {
	t.Status = StatusCompleted
	now := time.Now().UTC()
	t.End = &now
	t.Active = false
	t.Start = nil
	t.touch()
}

// Delete marks the task logically deleted. The record survives for undo.
func (t *Task) Delete() {
	t.Status = StatusDeleted
	now := time.Now().UTC()
	t.End = &now
	t.Active = false
	t.Start = nil
	t.touch()
}

// StartWork begins time tracking on the task.
func (t *Task) StartWork() {
	t.Active = true
	now := time.Now().UTC()
	t.Start = &now
	t.touch()
}

// StopWork ends time tracking on the task.
func (t *Task) StopWork() {
	t.Active = false
	t.Start = nil
	t.touch()
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// AddTag adds a tag if not already present.
func (t *Task) AddTag(tag string) {
	if t.HasTag(tag) {
		return
	}
	t.Tags = append(t.Tags, tag)
	t.touch()
}

// RemoveTag removes a tag. Returns true if the tag was present.
func (t *Task) RemoveTag(tag string) bool {
	for i, have := range t.Tags {
		if have == tag {
			t.Tags = append(t.Tags[:i], t.Tags[i+1:]...)
			t.touch()
			return true
		}
	}
	return false
}

// HasDependency reports whether the task depends on the given UUID.
func (t *Task) HasDependency(id uuid.UUID) bool {
	for _, have := range t.Depends {
		if have == id {
			return true
		}
	}
	return false
}

// AddDependency records a dependency on another task if not already present.
func (t *Task) AddDependency(id uuid.UUID) {
	if t.HasDependency(id) {
		return
	}
	t.Depends = append(t.Depends, id)
	t.touch()
}

// RemoveDependency removes a dependency. Returns true if it was present.
func (t *Task) RemoveDependency(id uuid.UUID) bool {
	for i, have := range t.Depends {
		if have == id {
			t.Depends = append(t.Depends[:i], t.Depends[i+1:]...)
			t.touch()
			return true
		}
	}
	return false
}

// Annotate appends an annotation.
func (t *Task) Annotate(a Annotation) {
	t.Annotations = append(t.Annotations, a)
	t.touch()
}

// RemoveAnnotation removes every annotation with the given description.
// Returns true if at least one was removed.
func (t *Task) RemoveAnnotation(description string) bool {
	kept := t.Annotations[:0]
	removed := false
	for _, a := range t.Annotations {
		if a.Description == description {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	t.Annotations = kept
	if removed {
		t.touch()
	}
	return removed
}

// IsOverdue reports whether a pending task is past its due date.
func (t *Task) IsOverdue() bool {
	return t.Status == StatusPending && t.Due != nil && t.Due.Before(time.Now())
}

// IsActive reports whether the task is being worked on.
func (t *Task) IsActive() bool {
	return t.Active && t.Start != nil
}
