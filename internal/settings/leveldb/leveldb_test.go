package leveldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"settings-lite/internal/settings"
)

func TestLevelDBContract(t *testing.T) {
	settings.RunContractTests(t, func(t *testing.T) settings.Opener {
		dir := filepath.Join(t.TempDir(), "settings.ldb")
		return func() (settings.Medium, error) { return Open(dir) }
	})
}

func TestPrefixesAreIndependent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "settings.ldb")
	ctx := context.Background()

	m, err := Open(dir, WithPrefix("game/"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := m.Save(ctx, map[string]settings.Value{"volume": settings.IntValue(80)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	m.Close()

	m, err = Open(dir, WithPrefix("editor/"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := m.Save(ctx, map[string]settings.Value{}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	m.Close()

	m, err = Open(dir, WithPrefix("game/"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer m.Close()
	got, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := got["volume"]; !ok {
		t.Error("saving an empty editor prefix must not touch game keys")
	}
}

func TestSecondOpenFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "settings.ldb")
	m, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer m.Close()

	if _, err := Open(dir); err == nil {
		t.Error("second Open of a held database should fail")
	}
}

func TestLoadCorruptEntry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "settings.ldb")
	m, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer m.Close()

	if err := m.db.Put(m.key("broken"), []byte{1}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(context.Background()); !errors.Is(err, settings.ErrCorrupt) {
		t.Errorf("Load: got %v, want ErrCorrupt", err)
	}
}
