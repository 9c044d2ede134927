// Package replica provides the operation-batch write path for the embedded
// task store: the Operation model, the batch builder that diffs task
// snapshots into minimal operation sequences, the ReplicaWrapper capability
// interface, and the actor that owns the store handle on a dedicated
// goroutine.
package replica

import (
	"time"

	"github.com/google/uuid"
)

// OpType discriminates the Operation variants.
type OpType string

const (
	// OpCreate creates a task with a full initial field set.
	OpCreate OpType = "create"
	// OpUpdate replaces one field, carrying the old value for potential
	// conflict detection (not currently enforced).
	OpUpdate OpType = "update"
	// OpSetField sets a single string-valued field, the primitive the
	// embedded store understands.
	OpSetField OpType = "set_field"
	// OpUnsetField clears a single field.
	OpUnsetField OpType = "unset_field"
	// OpAddTag adds one tag.
	OpAddTag OpType = "add_tag"
	// OpRemoveTag removes one tag.
	OpRemoveTag OpType = "remove_tag"
	// OpAddAnnotation appends one timestamped note.
	OpAddAnnotation OpType = "add_annotation"
	// OpAddDependency records a dependency on another task.
	OpAddDependency OpType = "add_dependency"
	// OpRemoveDependency removes a dependency.
	OpRemoveDependency OpType = "remove_dependency"
	// OpDelete marks a task deleted. Logical: the record survives.
	OpDelete OpType = "delete"
	// OpUndoPoint marks the boundary of one undoable unit of work.
	OpUndoPoint OpType = "undo_point"
)

// Operation describes one atomic mutation to one task. It is pure data:
// a Type discriminator plus the payload fields the variant uses. Every
// variant serializes to JSON and back without loss.
type Operation struct {
	Type OpType    `json:"type"`
	UUID uuid.UUID `json:"uuid"`

	// Data carries the full initial field map for OpCreate, already
	// flattened to the store's field-key conventions.
	Data map[string]string `json:"data,omitempty"`

	// Key names the field for OpUpdate/OpSetField/OpUnsetField.
	Key string `json:"key,omitempty"`
	// Old and New are the before/after values for OpUpdate; nil means
	// the field is absent on that side.
	Old *string `json:"old,omitempty"`
	New *string `json:"new,omitempty"`
	// Value is the field value for OpSetField.
	Value string `json:"value,omitempty"`

	// Tag is the tag name for OpAddTag/OpRemoveTag.
	Tag string `json:"tag,omitempty"`

	// Entry and Description form the annotation for OpAddAnnotation.
	Entry       time.Time `json:"entry,omitempty"`
	Description string    `json:"description,omitempty"`

	// DependsOn is the target for OpAddDependency/OpRemoveDependency.
	DependsOn uuid.UUID `json:"depends_on,omitempty"`
}

// UndoPointOp returns the undo-boundary marker operation.
func UndoPointOp() Operation {
	return Operation{Type: OpUndoPoint}
}

// CreateOp builds a create operation from a flattened field map.
func CreateOp(id uuid.UUID, data map[string]string) Operation {
	return Operation{Type: OpCreate, UUID: id, Data: data}
}

// UpdateOp builds a generic field replacement operation.
func UpdateOp(id uuid.UUID, key string, old, new *string) Operation {
	return Operation{Type: OpUpdate, UUID: id, Key: key, Old: old, New: new}
}

// SetFieldOp builds a single-field set operation.
func SetFieldOp(id uuid.UUID, key, value string) Operation {
	return Operation{Type: OpSetField, UUID: id, Key: key, Value: value}
}

// UnsetFieldOp builds a single-field clear operation.
func UnsetFieldOp(id uuid.UUID, key string) Operation {
	return Operation{Type: OpUnsetField, UUID: id, Key: key}
}

// AddTagOp builds a tag addition.
func AddTagOp(id uuid.UUID, tag string) Operation {
	return Operation{Type: OpAddTag, UUID: id, Tag: tag}
}

// RemoveTagOp builds a tag removal.
func RemoveTagOp(id uuid.UUID, tag string) Operation {
	return Operation{Type: OpRemoveTag, UUID: id, Tag: tag}
}

// AddAnnotationOp builds an annotation addition. The entry timestamp is
// normalized to UTC seconds, the granularity the store persists.
func AddAnnotationOp(id uuid.UUID, entry time.Time, description string) Operation {
	return Operation{
		Type:        OpAddAnnotation,
		UUID:        id,
		Entry:       entry.UTC().Truncate(time.Second),
		Description: description,
	}
}

// AddDependencyOp builds a dependency addition.
func AddDependencyOp(id, dependsOn uuid.UUID) Operation {
	return Operation{Type: OpAddDependency, UUID: id, DependsOn: dependsOn}
}

// RemoveDependencyOp builds a dependency removal.
func RemoveDependencyOp(id, dependsOn uuid.UUID) Operation {
	return Operation{Type: OpRemoveDependency, UUID: id, DependsOn: dependsOn}
}

// DeleteOp builds a logical delete.
func DeleteOp(id uuid.UUID) Operation {
	return Operation{Type: OpDelete, UUID: id}
}

// IsMutation reports whether the operation changes store state
// (everything except the undo-point marker).
func (op Operation) IsMutation() bool {
	return op.Type != OpUndoPoint
}
