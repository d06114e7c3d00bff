// Package api exposes a settings store over HTTP and MCP.
package api

import (
	"context"
	"sync"

	"settings-lite/internal/settings"
)

// Service applies mutations to a store and saves them in one step. A
// failed save rolls the view back so callers never observe state that is
// not durable.
type Service struct {
	mu    sync.Mutex // serializes mutate-then-save sequences
	store *settings.Store
}

// NewService wraps store.
func NewService(store *settings.Store) *Service {
	return &Service{store: store}
}

// Store returns the underlying store.
func (s *Service) Store() *settings.Store { return s.store }

// Set stores v under key and saves.
func (s *Service) Set(ctx context.Context, key string, v settings.Value) error {
	return s.mutate(ctx, func(st *settings.Store) { st.Put(key, v) })
}

// Remove deletes key and saves.
func (s *Service) Remove(ctx context.Context, key string) error {
	return s.mutate(ctx, func(st *settings.Store) { st.RemoveKey(key) })
}

// ReplaceAll swaps the whole view for entries and saves.
func (s *Service) ReplaceAll(ctx context.Context, entries map[string]settings.Value) error {
	return s.mutate(ctx, func(st *settings.Store) { st.Replace(entries) })
}

func (s *Service) mutate(ctx context.Context, fn func(*settings.Store)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.store.Entries()
	fn(s.store)
	if err := s.store.SaveContext(ctx); err != nil {
		s.store.Replace(before)
		return err
	}
	return nil
}
