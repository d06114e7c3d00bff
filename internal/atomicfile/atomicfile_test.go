package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCreatesAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	if err := Write(path, []byte("first"), 0644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Write(path, []byte("second"), 0644); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	leftovers, _ := filepath.Glob(path + ".tmp.*")
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestWriteFailureKeepsOldContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := Write(path, []byte("old"), 0644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// A directory at the target makes the rename fail.
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(blocked, "x"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := Write(blocked, []byte("new"), 0644); err == nil {
		t.Fatal("Write over a non-empty directory should fail")
	}
	leftovers, _ := filepath.Glob(blocked + ".tmp.*")
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind after failure: %v", leftovers)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "old" {
		t.Errorf("content = %q, want %q", got, "old")
	}
}

func TestCleanupTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	for _, name := range []string{"settings.json.tmp.a", "settings.json.tmp.b", "other.tmp.c"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := CleanupTemp(path)
	if err != nil {
		t.Fatalf("CleanupTemp failed: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d files, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "other.tmp.c")); err != nil {
		t.Error("unrelated temp file should be kept")
	}
}
