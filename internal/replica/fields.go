package replica

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/replica/store"
	"github.com/steveyegge/taskdb/internal/task"
)

// Field-key conventions for the embedded store. The joined-list fields
// reuse the store package's constants so both ends stay in sync.
const (
	fieldDescription = store.FieldDescription
	fieldStatus      = store.FieldStatus
	fieldTags        = store.FieldTags
	fieldDepends     = store.FieldDepends
	fieldAnnotations = store.FieldAnnotations

	fieldEntry     = "entry"
	fieldModified  = "modified"
	fieldDue       = "due"
	fieldScheduled = "scheduled"
	fieldWait      = "wait"
	fieldEnd       = "end"
	fieldStart     = "start"
	fieldPriority  = "priority"
	fieldProject   = "project"
	fieldRecur     = "recur"
	fieldParent    = "parent"
	fieldMask      = "mask"
	fieldActive    = "active"
)

// Raw-key fallback prefixes, used when a mutation cannot go through the
// store's structured helpers because no task snapshot is obtainable.
const (
	tagKeyPrefix        = "tag_"
	depKeyPrefix        = "dep_"
	annotationKeyPrefix = "annotation_"
)

// FieldsFromTask flattens a task into the store's string field map.
// Set-valued fields use the joined conventions (tags and depends
// space-joined, annotations newline-joined "entry description" lines).
// UDAs flatten to their own keys with a rendered scalar value.
func FieldsFromTask(t *task.Task) map[string]string {
	fields := map[string]string{
		fieldDescription: t.Description,
		fieldStatus:      string(t.Status),
		fieldEntry:       t.Entry.UTC().Format(store.TimeFormat),
	}

	putTime := func(key string, when *time.Time) {
		if when != nil {
			fields[key] = when.UTC().Format(store.TimeFormat)
		}
	}
	putTime(fieldModified, t.Modified)
	putTime(fieldDue, t.Due)
	putTime(fieldScheduled, t.Scheduled)
	putTime(fieldWait, t.Wait)
	putTime(fieldEnd, t.End)
	putTime(fieldStart, t.Start)

	if t.Priority != task.PriorityNone {
		fields[fieldPriority] = string(t.Priority)
	}
	if t.Project != "" {
		fields[fieldProject] = t.Project
	}
	if len(t.Tags) > 0 {
		fields[fieldTags] = strings.Join(t.Tags, " ")
	}
	if len(t.Depends) > 0 {
		ids := make([]string, len(t.Depends))
		for i, id := range t.Depends {
			ids[i] = id.String()
		}
		fields[fieldDepends] = strings.Join(ids, " ")
	}
	if len(t.Annotations) > 0 {
		lines := make([]string, len(t.Annotations))
		for i, a := range t.Annotations {
			lines[i] = a.Entry.UTC().Format(store.TimeFormat) + " " +
				strings.ReplaceAll(a.Description, "\n", " ")
		}
		fields[fieldAnnotations] = strings.Join(lines, "\n")
	}
	if t.Recur != "" {
		fields[fieldRecur] = t.Recur
	}
	if t.Parent != nil {
		fields[fieldParent] = t.Parent.String()
	}
	if t.Mask != "" {
		fields[fieldMask] = t.Mask
	}
	if t.Active {
		fields[fieldActive] = "true"
	}

	for name, value := range t.UDAs {
		fields[name] = renderUDA(value)
	}
	return fields
}

// TaskFromFields reconstructs a task from a stored field map. Recognized
// field names are parsed into typed fields; raw-key fallback entries
// (tag_*, dep_*, annotation_*) fold into their collections; every other
// key becomes a user-defined attribute with type inferred by an ordered
// probe: numeric, then date, else string.
func TaskFromFields(id uuid.UUID, fields map[string]string) (*task.Task, error) {
	t := &task.Task{
		ID:     id,
		Status: task.StatusPending,
	}

	// Deterministic iteration keeps tag/dep ordering stable across reads.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := fields[key]
		switch key {
		case fieldDescription:
			t.Description = value
		case fieldStatus:
			t.Status = task.ParseStatus(value)
		case fieldEntry:
			when, err := parseStoreTime(key, value)
			if err != nil {
				return nil, err
			}
			t.Entry = when
		case fieldModified, fieldDue, fieldScheduled, fieldWait, fieldEnd, fieldStart:
			when, err := parseStoreTime(key, value)
			if err != nil {
				return nil, err
			}
			switch key {
			case fieldModified:
				t.Modified = &when
			case fieldDue:
				t.Due = &when
			case fieldScheduled:
				t.Scheduled = &when
			case fieldWait:
				t.Wait = &when
			case fieldEnd:
				t.End = &when
			case fieldStart:
				t.Start = &when
			}
		case fieldPriority:
			t.Priority = task.ParsePriority(value)
		case fieldProject:
			t.Project = value
		case fieldTags:
			if value != "" {
				t.Tags = append(t.Tags, strings.Fields(value)...)
			}
		case fieldDepends:
			for _, raw := range strings.Fields(value) {
				dep, err := uuid.Parse(raw)
				if err != nil {
					return nil, fmt.Errorf("invalid dependency uuid %q: %w", raw, err)
				}
				t.Depends = append(t.Depends, dep)
			}
		case fieldAnnotations:
			anns, err := parseAnnotations(value)
			if err != nil {
				return nil, err
			}
			t.Annotations = append(t.Annotations, anns...)
		case fieldRecur:
			t.Recur = value
		case fieldParent:
			parent, err := uuid.Parse(value)
			if err != nil {
				return nil, fmt.Errorf("invalid parent uuid %q: %w", value, err)
			}
			t.Parent = &parent
		case fieldMask:
			t.Mask = value
		case fieldActive:
			t.Active = value == "true"
		default:
			if tag, ok := strings.CutPrefix(key, tagKeyPrefix); ok {
				if !t.HasTag(tag) {
					t.Tags = append(t.Tags, tag)
				}
				continue
			}
			if raw, ok := strings.CutPrefix(key, depKeyPrefix); ok {
				dep, err := uuid.Parse(raw)
				if err != nil {
					return nil, fmt.Errorf("invalid dependency key %q: %w", key, err)
				}
				if !t.HasDependency(dep) {
					t.Depends = append(t.Depends, dep)
				}
				continue
			}
			if raw, ok := strings.CutPrefix(key, annotationKeyPrefix); ok {
				secs, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid annotation key %q: %w", key, err)
				}
				t.Annotations = append(t.Annotations, task.Annotation{
					Entry:       time.Unix(secs, 0).UTC(),
					Description: value,
				})
				continue
			}
			if t.UDAs == nil {
				t.UDAs = make(map[string]task.UDAValue)
			}
			t.UDAs[key] = probeUDA(value)
		}
	}

	if t.Entry.IsZero() {
		// Tasks written through the raw fallback path may lack an entry
		// timestamp; absence is tolerated on read.
		t.Entry = time.Time{}
	}
	return t, nil
}

func parseStoreTime(key, value string) (time.Time, error) {
	when, err := time.Parse(store.TimeFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s timestamp %q: %w", key, value, err)
	}
	return when.UTC(), nil
}

func parseAnnotations(value string) ([]task.Annotation, error) {
	var anns []task.Annotation
	for _, line := range strings.Split(value, "\n") {
		if line == "" {
			continue
		}
		stamp, text, found := strings.Cut(line, " ")
		if !found {
			return nil, fmt.Errorf("malformed annotation line %q", line)
		}
		entry, err := time.Parse(store.TimeFormat, stamp)
		if err != nil {
			return nil, fmt.Errorf("invalid annotation timestamp %q: %w", stamp, err)
		}
		anns = append(anns, task.Annotation{Entry: entry.UTC(), Description: text})
	}
	return anns, nil
}

// renderUDA converts a typed attribute value to the store's text form.
func renderUDA(v task.UDAValue) string {
	switch v.Kind {
	case task.UDANumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case task.UDADate:
		return v.Date.UTC().Format(store.TimeFormat)
	default:
		return v.String
	}
}

// probeUDA infers the type of an unrecognized field value. The probe order
// is fixed: numeric parse, then date parse, else string.
func probeUDA(value string) task.UDAValue {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return task.NumberUDA(n)
	}
	if when, err := time.Parse(store.TimeFormat, value); err == nil {
		return task.DateUDA(when.UTC())
	}
	return task.StringUDA(value)
}
