// Package memory implements a settings.Medium held in process memory.
// Saved state survives Close, so one Medium can be reopened by several
// stores in turn. Nothing survives the process.
package memory

import (
	"context"
	"sync"

	"settings-lite/internal/settings"
)

// Medium keeps the last saved view in a map.
type Medium struct {
	mu      sync.Mutex
	entries map[string]settings.Value
	saves   int
}

// New creates an empty Medium.
func New() *Medium {
	return &Medium{entries: make(map[string]settings.Value)}
}

// Load returns a copy of the last saved view.
func (m *Medium) Load(ctx context.Context) (map[string]settings.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]settings.Value, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

// Save replaces the saved view with entries.
func (m *Medium) Save(ctx context.Context, entries map[string]settings.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	m.saves++
	return nil
}

// Saves returns how many times Save has succeeded.
func (m *Medium) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close is a no-op; the saved view stays available for the next Load.
func (m *Medium) Close() error { return nil }

// Compile-time check that Medium implements settings.Medium.
var _ settings.Medium = (*Medium)(nil)
