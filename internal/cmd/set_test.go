package cmd

import (
	"strings"
	"testing"
)

func TestSet_Int(t *testing.T) {
	app, out, medium := setupTestApp(t)

	if err := run(t, newSetCmd, app, "volume", "80", "--kind", "int"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, err := app.Store.GetInt("volume"); err != nil || got != 80 {
		t.Errorf("volume = %d, %v; want 80", got, err)
	}
	if medium.Saves() != 1 {
		t.Errorf("saves = %d, want 1", medium.Saves())
	}
	if got := strings.TrimSpace(out.String()); got != "Set volume = 80" {
		t.Errorf("output = %q", got)
	}
}

func TestSet_DefaultsToString(t *testing.T) {
	app, _, _ := setupTestApp(t)

	if err := run(t, newSetCmd, app, "zip", "02134"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, _ := app.Store.GetString("zip"); got != "02134" {
		t.Errorf("zip = %q, want %q", got, "02134")
	}
}

func TestSet_OverwritesAcrossKinds(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.Store.SetString("k", "text")

	if err := run(t, newSetCmd, app, "k", "2.5", "--kind", "float"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, err := app.Store.GetFloat("k"); err != nil || got != 2.5 {
		t.Errorf("k = %v, %v; want 2.5", got, err)
	}
}

func TestSet_Object(t *testing.T) {
	app, _, _ := setupTestApp(t)

	if err := run(t, newSetCmd, app, "profile", `{"level":3,"xp":120}`, "--kind", "object"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	var got struct {
		Level int `json:"level"`
		XP    int `json:"xp"`
	}
	if err := app.Store.GetObject("profile", &got); err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if got.Level != 3 || got.XP != 120 {
		t.Errorf("profile = %+v", got)
	}
}

func TestSet_Invalid(t *testing.T) {
	app, _, medium := setupTestApp(t)

	tests := [][]string{
		{"volume", "loud", "--kind", "int"},
		{"flag", "maybe", "--kind", "bool"},
		{"profile", "{not json", "--kind", "object"},
		{"k", "v", "--kind", "list"},
	}
	for _, args := range tests {
		if err := run(t, newSetCmd, app, args...); err == nil {
			t.Errorf("set %v should fail", args)
		}
	}
	if app.Store.Len() != 0 || medium.Saves() != 0 {
		t.Errorf("invalid sets changed the store: len=%d saves=%d", app.Store.Len(), medium.Saves())
	}
}

func TestUnset(t *testing.T) {
	app, out, medium := setupTestApp(t)
	app.Store.SetString("name", "Alice")

	if err := run(t, newUnsetCmd, app, "name"); err != nil {
		t.Fatalf("unset failed: %v", err)
	}
	if app.Store.HasKey("name") {
		t.Error("name still set")
	}
	if !strings.Contains(out.String(), "Unset name") {
		t.Errorf("output = %q", out.String())
	}

	// Unsetting again is not an error.
	if err := run(t, newUnsetCmd, app, "name"); err != nil {
		t.Fatalf("second unset failed: %v", err)
	}
	if medium.Saves() != 2 {
		t.Errorf("saves = %d, want 2", medium.Saves())
	}
}

func TestClear(t *testing.T) {
	app, out, _ := setupTestApp(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		app.Store.SetInt(k, 1)
	}

	if err := run(t, newClearCmd, app); err == nil {
		t.Fatal("clear without --force should fail")
	}
	if app.Store.Len() != 5 {
		t.Fatalf("clear without --force removed entries")
	}

	if err := run(t, newClearCmd, app, "--force"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if app.Store.Len() != 0 {
		t.Errorf("len = %d after clear, want 0", app.Store.Len())
	}
	if !strings.Contains(out.String(), "Removed 5 settings") {
		t.Errorf("output = %q", out.String())
	}
}
