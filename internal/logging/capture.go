package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Capture collects log entries for test assertions.
// Use CaptureForTest to install it as the global logger.
type Capture struct {
	logs    *observer.ObservedLogs
	restore func()
}

// CaptureForTest installs an observing core as the global zap logger and
// returns a Capture that can be queried for assertions.
// Call Restore() when done (typically via defer).
func CaptureForTest() *Capture {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	return &Capture{logs: logs, restore: restore}
}

// Restore reinstates the previous global logger.
func (c *Capture) Restore() {
	c.restore()
}

// Entries returns a copy of all captured entries.
func (c *Capture) Entries() []observer.LoggedEntry {
	return c.logs.All()
}

// Has returns true if any captured entry matches the given level and
// contains msgSubstring in its message.
func (c *Capture) Has(level zapcore.Level, msgSubstring string) bool {
	for _, e := range c.logs.All() {
		if e.Level == level && strings.Contains(e.Message, msgSubstring) {
			return true
		}
	}
	return false
}

// Count returns the number of captured entries at the given level.
func (c *Capture) Count(level zapcore.Level) int {
	n := 0
	for _, e := range c.logs.All() {
		if e.Level == level {
			n++
		}
	}
	return n
}
