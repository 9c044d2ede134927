package store

import (
	"path/filepath"
	"testing"
	"time"
)

// testStorePath returns a temporary path for test stores.
func testStorePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "replica.db")
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(testStorePath(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTestStore(t)

	count, err := s.TaskCount()
	if err != nil {
		t.Fatalf("TaskCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("TaskCount() = %d on fresh store, want 0", count)
	}
}

func TestOpenReadOnly_RequiresExisting(t *testing.T) {
	if _, err := OpenReadOnly(testStorePath(t)); err == nil {
		t.Error("OpenReadOnly() on missing store succeeded, want error")
	}
}

func TestSetField_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if err := tx.SetField("u1", FieldDescription, "Buy milk"); err != nil {
		t.Fatalf("SetField() failed: %v", err)
	}
	if err := tx.SetField("u1", FieldStatus, "pending"); err != nil {
		t.Fatalf("SetField() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	fields, ok, err := s.TaskFields("u1")
	if err != nil {
		t.Fatalf("TaskFields() failed: %v", err)
	}
	if !ok {
		t.Fatal("TaskFields() reported task missing after commit")
	}
	if fields[FieldDescription] != "Buy milk" || fields[FieldStatus] != "pending" {
		t.Errorf("fields = %v", fields)
	}
}

func TestUnsetField(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	if err := tx.SetField("u1", "priority", "H"); err != nil {
		t.Fatalf("SetField() failed: %v", err)
	}
	if err := tx.UnsetField("u1", "priority"); err != nil {
		t.Fatalf("UnsetField() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	fields, _, err := s.TaskFields("u1")
	if err != nil {
		t.Fatalf("TaskFields() failed: %v", err)
	}
	if _, present := fields["priority"]; present {
		t.Error("priority still present after UnsetField")
	}
}

func TestRollback_LeavesNoTrace(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	if err := tx.SetField("u1", FieldDescription, "ghost"); err != nil {
		t.Fatalf("SetField() failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}

	_, ok, err := s.TaskFields("u1")
	if err != nil {
		t.Fatalf("TaskFields() failed: %v", err)
	}
	if ok {
		t.Error("task visible after rollback")
	}

	ops, err := s.OperationCount()
	if err != nil {
		t.Fatalf("OperationCount() failed: %v", err)
	}
	if ops != 0 {
		t.Errorf("OperationCount() = %d after rollback, want 0", ops)
	}
}

func TestTagHelpers(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	if err := tx.SetField("u1", FieldDescription, "tagged"); err != nil {
		t.Fatal(err)
	}
	if err := tx.AddTag("u1", "errand"); err != nil {
		t.Fatalf("AddTag() failed: %v", err)
	}
	if err := tx.AddTag("u1", "home"); err != nil {
		t.Fatalf("AddTag() failed: %v", err)
	}
	if err := tx.AddTag("u1", "errand"); err != nil { // duplicate
		t.Fatalf("AddTag() duplicate failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	fields, _, _ := s.TaskFields("u1")
	if fields[FieldTags] != "errand home" {
		t.Errorf("tags = %q, want %q", fields[FieldTags], "errand home")
	}

	tx, _ = s.Begin()
	if err := tx.RemoveTag("u1", "errand"); err != nil {
		t.Fatalf("RemoveTag() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	fields, _, _ = s.TaskFields("u1")
	if fields[FieldTags] != "home" {
		t.Errorf("tags = %q, want %q", fields[FieldTags], "home")
	}

	// Removing the last tag drops the field entirely.
	tx, _ = s.Begin()
	if err := tx.RemoveTag("u1", "home"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	fields, _, _ = s.TaskFields("u1")
	if _, present := fields[FieldTags]; present {
		t.Errorf("tags field = %q still present after removing last tag", fields[FieldTags])
	}
}

func TestTagHelpers_MissingTask(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	defer tx.Rollback()
	if err := tx.AddTag("nope", "x"); err == nil {
		t.Error("AddTag() on missing task succeeded, want error")
	}
}

func TestDependencyHelpers(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	if err := tx.SetField("u1", FieldDescription, "parent"); err != nil {
		t.Fatal(err)
	}
	if err := tx.AddDependency("u1", "dep-a"); err != nil {
		t.Fatalf("AddDependency() failed: %v", err)
	}
	if err := tx.AddDependency("u1", "dep-b"); err != nil {
		t.Fatalf("AddDependency() failed: %v", err)
	}
	if err := tx.RemoveDependency("u1", "dep-a"); err != nil {
		t.Fatalf("RemoveDependency() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	fields, _, _ := s.TaskFields("u1")
	if fields[FieldDepends] != "dep-b" {
		t.Errorf("depends = %q, want %q", fields[FieldDepends], "dep-b")
	}
}

func TestAddAnnotation(t *testing.T) {
	s := openTestStore(t)
	entry := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tx, _ := s.Begin()
	if err := tx.SetField("u1", FieldDescription, "noted"); err != nil {
		t.Fatal(err)
	}
	if err := tx.AddAnnotation("u1", entry, "called the plumber"); err != nil {
		t.Fatalf("AddAnnotation() failed: %v", err)
	}
	if err := tx.AddAnnotation("u1", entry.Add(time.Hour), "multi\nline"); err != nil {
		t.Fatalf("AddAnnotation() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	fields, _, _ := s.TaskFields("u1")
	want := "2024-03-01T12:00:00Z called the plumber\n2024-03-01T13:00:00Z multi line"
	if fields[FieldAnnotations] != want {
		t.Errorf("annotations = %q, want %q", fields[FieldAnnotations], want)
	}
}

func TestUndoPointCount(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	if err := tx.RecordUndoPoint(); err != nil {
		t.Fatalf("RecordUndoPoint() failed: %v", err)
	}
	if err := tx.SetField("u1", FieldDescription, "first"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	undo, err := s.UndoPointCount()
	if err != nil {
		t.Fatalf("UndoPointCount() failed: %v", err)
	}
	if undo != 1 {
		t.Errorf("UndoPointCount() = %d, want 1", undo)
	}

	ops, _ := s.OperationCount()
	if ops < 3 { // undo point + create + set
		t.Errorf("OperationCount() = %d, want at least 3", ops)
	}
}

func TestAllTasks(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	_ = tx.SetField("u1", FieldDescription, "one")
	_ = tx.SetField("u2", FieldDescription, "two")
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	all, err := s.AllTasks()
	if err != nil {
		t.Fatalf("AllTasks() failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("AllTasks() returned %d tasks, want 2", len(all))
	}
	if all["u2"][FieldDescription] != "two" {
		t.Errorf("u2 fields = %v", all["u2"])
	}
}

func TestReopen_Persists(t *testing.T) {
	path := testStorePath(t)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	tx, _ := s.Begin()
	_ = tx.SetField("u1", FieldDescription, "durable")
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	fields, ok, err := s2.TaskFields("u1")
	if err != nil || !ok {
		t.Fatalf("TaskFields() after reopen: fields=%v ok=%v err=%v", fields, ok, err)
	}
	if fields[FieldDescription] != "durable" {
		t.Errorf("description = %q after reopen", fields[FieldDescription])
	}
}
