package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestForFollowsCapture(t *testing.T) {
	// Logger created before the capture is installed.
	log := For("settings")

	c := CaptureForTest()
	defer c.Restore()

	log.Info("opened store", zap.String("medium", "memory"))
	log.Debug("saved")

	if !c.Has(zapcore.InfoLevel, "opened store") {
		t.Error("expected info entry 'opened store'")
	}
	if got := c.Count(zapcore.DebugLevel); got != 1 {
		t.Errorf("debug count = %d, want 1", got)
	}
	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].LoggerName != "settings" {
		t.Errorf("logger name = %q, want %q", entries[0].LoggerName, "settings")
	}
	if entries[0].ContextMap()["medium"] != "memory" {
		t.Errorf("medium field = %v, want memory", entries[0].ContextMap()["medium"])
	}
}

func TestWithFieldsCarryThrough(t *testing.T) {
	c := CaptureForTest()
	defer c.Restore()

	For("api").With(zap.String("request_id", "abc")).Warn("save failed")

	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "abc" {
		t.Errorf("request_id = %v, want abc", entries[0].ContextMap()["request_id"])
	}
}

func TestRestore(t *testing.T) {
	c := CaptureForTest()
	c.Restore()

	For("x").Error("after restore")
	if c.Count(zapcore.ErrorLevel) != 0 {
		t.Error("capture should not receive entries after Restore")
	}
}
