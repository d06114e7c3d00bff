package memory

import (
	"context"
	"testing"

	"settings-lite/internal/settings"
)

func TestMemoryContract(t *testing.T) {
	settings.RunContractTests(t, func(t *testing.T) settings.Opener {
		m := New()
		return func() (settings.Medium, error) { return m, nil }
	})
}

func TestSaveHonorsCancelledContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Save(ctx, map[string]settings.Value{"a": settings.IntValue(1)}); err == nil {
		t.Fatal("Save with cancelled context should fail")
	}
	if m.Saves() != 0 {
		t.Errorf("Saves = %d, want 0", m.Saves())
	}
}

func TestLoadReturnsCopy(t *testing.T) {
	m := New()
	if err := m.Save(context.Background(), map[string]settings.Value{"a": settings.IntValue(1)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, _ := m.Load(context.Background())
	delete(got, "a")
	again, _ := m.Load(context.Background())
	if _, ok := again["a"]; !ok {
		t.Error("mutating a loaded map must not change the medium")
	}
}
