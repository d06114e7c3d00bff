package e2etests

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"settings-lite/internal/config"
	"settings-lite/internal/settings"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	cmd := os.Getenv("SETTINGS_CMD")
	if cmd == "" {
		t.Skip("SETTINGS_CMD environment variable not set; skipping e2e tests")
	}
	return &Runner{Cmd: cmd}
}

func mustRun(t *testing.T, r *Runner, configFile string, args ...string) string {
	t.Helper()
	res := r.Run(configFile, args...)
	if res.ExitCode != 0 {
		t.Fatalf("settings %s: exit %d, stderr: %s", strings.Join(args, " "), res.ExitCode, res.Stderr)
	}
	return strings.TrimSpace(res.Stdout)
}

func TestE2E_Scenarios(t *testing.T) {
	r := newRunner(t)

	for _, backend := range []string{"file", "bolt", "sqlite", "leveldb"} {
		t.Run(backend, func(t *testing.T) {
			cfg, err := r.SetupSandbox(t.TempDir(), "--backend", backend)
			if err != nil {
				t.Fatal(err)
			}

			mustRun(t, r, cfg, "set", "volume", "80", "--kind", "int")
			if got := mustRun(t, r, cfg, "get", "volume", "--kind", "int"); got != "80" {
				t.Errorf("volume = %q, want 80", got)
			}

			if got := mustRun(t, r, cfg, "get", "missingKey", "--kind", "int", "--default", "50"); got != "50" {
				t.Errorf("missingKey with default = %q, want 50", got)
			}
			if got := mustRun(t, r, cfg, "get", "missingKey"); got != "missingKey (not set)" {
				t.Errorf("missingKey = %q, default must not create an entry", got)
			}

			mustRun(t, r, cfg, "set", "name", "Alice")
			mustRun(t, r, cfg, "unset", "name")
			if got := mustRun(t, r, cfg, "get", "name"); got != "name (not set)" {
				t.Errorf("name after unset = %q", got)
			}

			mustRun(t, r, cfg, "set", "profile", `{"level":3,"xp":120}`, "--kind", "object")
			if got := mustRun(t, r, cfg, "get", "profile", "--kind", "object"); got != `{"level":3,"xp":120}` {
				t.Errorf("profile = %q", got)
			}

			for _, k := range []string{"a", "b", "c", "d", "e"} {
				mustRun(t, r, cfg, "set", k, "1", "--kind", "int")
			}
			mustRun(t, r, cfg, "clear", "--force")
			if got := mustRun(t, r, cfg, "list"); got != "No settings" {
				t.Errorf("list after clear = %q", got)
			}
		})
	}
}

func TestE2E_TypeMismatchExitCode(t *testing.T) {
	r := newRunner(t)
	cfg, err := r.SetupSandbox(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	mustRun(t, r, cfg, "set", "name", "Alice")
	res := r.Run(cfg, "get", "name", "--kind", "int")
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
	if !strings.HasPrefix(res.Stderr, "error:") || !strings.Contains(res.Stderr, "type mismatch") {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestE2E_ListJSONIsDocument(t *testing.T) {
	r := newRunner(t)
	cfg, err := r.SetupSandbox(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mustRun(t, r, cfg, "set", "ratio", "0.1", "--kind", "float")

	res := r.RunJSON(cfg, "list")
	var doc settings.Document
	if err := json.Unmarshal([]byte(res.Stdout), &doc); err != nil {
		t.Fatalf("list --json is not a document: %v\n%s", err, res.Stdout)
	}
	if doc.Settings["ratio"] != (settings.Record{Kind: "float", Value: "0.1"}) {
		t.Errorf("ratio = %+v", doc.Settings["ratio"])
	}
}

// A served file store is locked; other processes reach it through the
// remote backend instead.
func TestE2E_ServeAndRemote(t *testing.T) {
	r := newRunner(t)
	dir := t.TempDir()
	cfg, err := r.SetupSandbox(dir)
	if err != nil {
		t.Fatal(err)
	}
	mustRun(t, r, cfg, "set", "volume", "80", "--kind", "int")

	srv, err := r.StartServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	res := r.Run(cfg, "set", "volume", "90", "--kind", "int")
	if res.ExitCode == 0 || !strings.Contains(res.Stderr, "locked") {
		t.Errorf("direct write while served: exit %d, stderr %q; want locked error", res.ExitCode, res.Stderr)
	}

	remoteCfg := filepath.Join(dir, "remote", "config.yaml")
	rc := config.Default()
	rc.Backend = "remote"
	rc.Remote.URL = "http://" + srv.Addr
	if err := config.Write(remoteCfg, rc); err != nil {
		t.Fatal(err)
	}

	if got := mustRun(t, r, remoteCfg, "get", "volume"); got != "80" {
		t.Errorf("remote get volume = %q, want 80", got)
	}
	mustRun(t, r, remoteCfg, "set", "volume", "90", "--kind", "int")

	if err := srv.Stop(); err != nil {
		t.Fatalf("server exit: %v", err)
	}
	if got := mustRun(t, r, cfg, "get", "volume"); got != "90" {
		t.Errorf("volume after remote write = %q, want 90", got)
	}
}
