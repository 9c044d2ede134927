package replica

import (
	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/task"
)

// CreateFromTask builds the create operation for a brand-new task,
// flattening the full field set into the store's field-key conventions.
// A nil task yields an empty payload rather than a panic; callers should
// treat that as a logic error to report.
func CreateFromTask(t *task.Task) Operation {
	if t == nil {
		return Operation{Type: OpCreate}
	}
	return CreateOp(t.ID, FieldsFromTask(t))
}

// ComputeUpdateOps diffs two snapshots of the same task into the minimal
// operation sequence that transforms old into new. Description, project
// and status changes emit generic Updates; tags and dependencies diff by
// set symmetric difference; annotations are append-only, so only
// additions are detected. Remaining scalar fields and user-defined
// attributes diff to SetField/UnsetField on the flattened field maps.
func ComputeUpdateOps(old, new *task.Task) []Operation {
	var ops []Operation
	id := new.ID

	if old.Description != new.Description {
		ops = append(ops, UpdateOp(id, fieldDescription, strPtr(old.Description), strPtr(new.Description)))
	}
	if old.Project != new.Project {
		ops = append(ops, UpdateOp(id, fieldProject, strPtr(old.Project), strPtr(new.Project)))
	}
	if old.Status != new.Status {
		ops = append(ops, UpdateOp(id, fieldStatus, strPtr(string(old.Status)), strPtr(string(new.Status))))
	}

	for _, tag := range new.Tags {
		if !old.HasTag(tag) {
			ops = append(ops, AddTagOp(id, tag))
		}
	}
	for _, tag := range old.Tags {
		if !new.HasTag(tag) {
			ops = append(ops, RemoveTagOp(id, tag))
		}
	}

	for _, dep := range new.Depends {
		if !old.HasDependency(dep) {
			ops = append(ops, AddDependencyOp(id, dep))
		}
	}
	for _, dep := range old.Depends {
		if !new.HasDependency(dep) {
			ops = append(ops, RemoveDependencyOp(id, dep))
		}
	}

	for _, a := range new.Annotations {
		if !hasAnnotation(old.Annotations, a) {
			ops = append(ops, AddAnnotationOp(id, a.Entry, a.Description))
		}
	}

	ops = append(ops, diffScalars(id, old, new)...)
	return ops
}

// diffScalars compares the flattened field maps for everything the
// structured diff above does not already cover.
func diffScalars(id uuid.UUID, old, new *task.Task) []Operation {
	structured := map[string]bool{
		fieldDescription: true,
		fieldProject:     true,
		fieldStatus:      true,
		fieldTags:        true,
		fieldDepends:     true,
		fieldAnnotations: true,
	}
	oldFields := FieldsFromTask(old)
	newFields := FieldsFromTask(new)

	var ops []Operation
	for key, value := range newFields {
		if structured[key] {
			continue
		}
		if prev, ok := oldFields[key]; !ok || prev != value {
			ops = append(ops, SetFieldOp(id, key, value))
		}
	}
	for key := range oldFields {
		if structured[key] {
			continue
		}
		if _, ok := newFields[key]; !ok {
			ops = append(ops, UnsetFieldOp(id, key))
		}
	}
	return ops
}

// BuildSaveBatch produces the batch that persists next. A nil existing
// snapshot means the task is new and the batch is a single Create;
// otherwise the batch carries the computed update operations, which may
// be empty (a no-op batch is valid and committable). The batch always
// begins with an UndoPoint.
func BuildSaveBatch(existing, next *task.Task) []Operation {
	ops := []Operation{UndoPointOp()}
	if existing == nil {
		return append(ops, CreateFromTask(next))
	}
	return append(ops, ComputeUpdateOps(existing, next)...)
}

// BuildDeleteBatch produces the two-operation logical-delete batch.
func BuildDeleteBatch(id uuid.UUID) []Operation {
	return []Operation{UndoPointOp(), DeleteOp(id)}
}

func hasAnnotation(anns []task.Annotation, want task.Annotation) bool {
	for _, a := range anns {
		if a.Entry.Equal(want.Entry) && a.Description == want.Description {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
