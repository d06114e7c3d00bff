package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"settings-lite/internal/settings"
)

func TestList_Empty(t *testing.T) {
	app, out, _ := setupTestApp(t)
	if err := run(t, newListCmd, app); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "No settings" {
		t.Errorf("output = %q", got)
	}
}

func TestList_Sorted(t *testing.T) {
	app, out, _ := setupTestApp(t)
	app.Store.SetString("name", "Alice")
	app.Store.SetInt("audio.volume", 80)
	app.Store.SetObject("profile", map[string]int{"level": 3})

	if err := run(t, newListCmd, app); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := "audio.volume = 80 (int)\n" +
		"name = Alice (string)\n" +
		"profile = {\"level\":3} (object, json)\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestList_JSON(t *testing.T) {
	app, out, _ := setupTestApp(t)
	app.JSON = true
	app.Store.SetFloat("ratio", 0.5)

	if err := run(t, newListCmd, app); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var doc settings.Document
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	entries, err := doc.Entries()
	if err != nil {
		t.Fatalf("document does not parse: %v", err)
	}
	if entries["ratio"] != settings.FloatValue(0.5) {
		t.Errorf("ratio = %v", entries["ratio"])
	}
}
