package migrate

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steveyegge/taskdb/internal/storage"
	"github.com/steveyegge/taskdb/internal/task"
)

func newBackend(t *testing.T, name string) *storage.FileBackend {
	t.Helper()
	b := storage.NewFileBackend(filepath.Join(t.TempDir(), name))
	if err := b.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return b
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newBackend(t, "src.json")

	first := task.New("export me")
	first.Tags = []string{"io"}
	second := task.New("me too")
	for _, tk := range []*task.Task{first, second} {
		if err := src.SaveTask(tk); err != nil {
			t.Fatalf("SaveTask: %v", err)
		}
	}

	var buf bytes.Buffer
	n, err := ExportJSONL(src, &buf)
	if err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d tasks, want 2", n)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("output has %d lines, want 2", lines)
	}

	dst := newBackend(t, "dst.json")
	result, err := ImportJSONL(dst, &buf)
	if err != nil {
		t.Fatalf("ImportJSONL: %v", err)
	}
	if result.TasksWritten != 2 || len(result.Errors) != 0 {
		t.Fatalf("import result = %+v", result)
	}

	got, err := dst.LoadTask(first.ID)
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if got == nil || got.Description != "export me" || !got.HasTag("io") {
		t.Errorf("imported task = %+v", got)
	}
}

func TestImportSkipsInvalidTasks(t *testing.T) {
	dst := newBackend(t, "dst.json")

	// Second record has no description, which fails validation.
	input := `{"uuid":"8d4a7a63-7c62-4b43-b2f5-6ec3c6f29901","description":"good","status":"pending","entry":"2024-01-01T00:00:00Z"}
{"uuid":"9d4a7a63-7c62-4b43-b2f5-6ec3c6f29902","status":"pending","entry":"2024-01-01T00:00:00Z"}
`
	result, err := ImportJSONL(dst, strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportJSONL: %v", err)
	}
	if result.TasksRead != 2 || result.TasksWritten != 1 {
		t.Errorf("result = %+v, want 2 read / 1 written", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want one validation failure", result.Errors)
	}
}

func TestImportRejectsMalformedStream(t *testing.T) {
	dst := newBackend(t, "dst.json")
	if _, err := ImportJSONL(dst, strings.NewReader("{not json\n")); err == nil {
		t.Fatal("expected error on malformed JSONL")
	}
}

func TestMigrateCopiesBetweenBackends(t *testing.T) {
	src := newBackend(t, "src.json")
	dst := newBackend(t, "dst.json")

	keep := task.New("keep")
	gone := task.New("gone")
	gone.Status = task.StatusDeleted
	for _, tk := range []*task.Task{keep, gone} {
		if err := src.SaveTask(tk); err != nil {
			t.Fatalf("SaveTask: %v", err)
		}
	}

	result, err := Migrate(context.Background(), Options{From: src, To: dst})
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.TasksRead != 2 || result.TasksWritten != 1 {
		t.Errorf("result = %+v, want deleted task skipped", result)
	}

	got, err := dst.LoadTask(keep.ID)
	if err != nil || got == nil {
		t.Fatalf("LoadTask = %+v, %v", got, err)
	}
	all, err := dst.LoadAllTasks()
	if err != nil {
		t.Fatalf("LoadAllTasks: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("destination holds %d tasks, want 1", len(all))
	}
}

func TestMigrateDryRun(t *testing.T) {
	src := newBackend(t, "src.json")
	dst := newBackend(t, "dst.json")
	if err := src.SaveTask(task.New("phantom")); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	result, err := Migrate(context.Background(), Options{From: src, To: dst, DryRun: true})
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.TasksWritten != 1 {
		t.Errorf("dry run counted %d, want 1", result.TasksWritten)
	}
	all, err := dst.LoadAllTasks()
	if err != nil {
		t.Fatalf("LoadAllTasks: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("dry run wrote %d tasks", len(all))
	}
}
