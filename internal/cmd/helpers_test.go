package cmd

import (
	"bytes"
	"testing"

	"settings-lite/internal/config"
	"settings-lite/internal/settings"
	"settings-lite/internal/settings/memory"

	"github.com/spf13/cobra"
)

// setupTestApp creates an App over a fresh in-memory store.
func setupTestApp(t *testing.T) (*App, *bytes.Buffer, *memory.Medium) {
	t.Helper()
	medium := memory.New()
	store, err := settings.Open(medium)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Backend = "memory"
	var out bytes.Buffer
	app := &App{
		Store:  store,
		Config: cfg,
		Paths:  config.Paths{ConfigDir: t.TempDir()},
		Out:    &out,
		Err:    &out,
	}
	return app, &out, medium
}

// run executes cmd with args and returns its error.
func run(t *testing.T, newCmd func(*AppProvider) *cobra.Command, app *App, args ...string) error {
	t.Helper()
	cmd := newCmd(NewTestProvider(app))
	cmd.SetArgs(args)
	return cmd.Execute()
}
