// Package settings defines a typed key/value settings contract and a
// Store that implements it on top of a pluggable backing Medium.
//
// Keys form a flat namespace. Dotted keys such as "audio.volume" are a
// caller convention and carry no meaning here. Mutations change the
// in-memory view immediately; nothing reaches the medium until Save.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"settings-lite/internal/logging"

	"go.uber.org/zap"
)

// Settings is the accessor contract every backend honors.
type Settings interface {
	// HasKey reports whether an entry for key exists in the current view.
	HasKey(key string) bool

	// RemoveKey deletes the entry for key. Removing an absent key is a no-op.
	RemoveKey(key string)

	// RemoveAllKeys clears every entry.
	RemoveAllKeys()

	GetBool(key string) (bool, error)
	GetBoolOr(key string, def bool) (bool, error)
	SetBool(key string, value bool)

	GetInt(key string) (int64, error)
	GetIntOr(key string, def int64) (int64, error)
	SetInt(key string, value int64)

	GetFloat(key string) (float64, error)
	GetFloatOr(key string, def float64) (float64, error)
	SetFloat(key string, value float64)

	GetString(key string) (string, error)
	GetStringOr(key string, def string) (string, error)
	SetString(key string, value string)

	// GetObject decodes the object stored under key into out, which must
	// be a non-nil pointer. Pass Default to fall back on a missing key.
	GetObject(key string, out any, opts ...GetOption) error

	// SetObject encodes obj and stores it under key, replacing whatever
	// kind of entry was there before.
	SetObject(key string, obj any) error

	// Save writes the whole view to the backing medium. On failure the
	// view is left untouched and Save may be retried.
	Save() error
}

// Medium is a durable home for a flat key/value view.
//
// Load returns the durable state; a target that does not exist yet loads
// as empty. Save receives a private snapshot and must replace the durable
// content atomically: either all of it is written or the prior state is
// left intact.
type Medium interface {
	Load(ctx context.Context) (map[string]Value, error)
	Save(ctx context.Context, entries map[string]Value) error
	Close() error
}

// Store implements Settings over a Medium.
type Store struct {
	medium Medium
	codec  Codec
	log    *zap.Logger

	saveMu sync.Mutex // serializes Save calls

	mu      sync.RWMutex
	entries map[string]Value
	gen     uint64 // bumped on every mutation
	saved   uint64 // gen at the last successful Save or Load
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the codec used by GetObject and SetObject. The default is JSON.
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithLogger sets the logger. The default follows the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open loads the durable state of m into a new Store. The Store owns m
// from here on and closes it in Close.
func Open(m Medium, opts ...Option) (*Store, error) {
	return OpenContext(context.Background(), m, opts...)
}

// OpenContext is Open with a context for the initial load.
func OpenContext(ctx context.Context, m Medium, opts ...Option) (*Store, error) {
	s := &Store{
		medium: m,
		codec:  JSON,
		log:    logging.For("settings"),
	}
	for _, opt := range opts {
		opt(s)
	}

	entries, err := m.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w: %w", ErrPersistence, err)
	}
	if entries == nil {
		entries = make(map[string]Value)
	}
	s.entries = entries
	s.log.Debug("opened store", zap.Int("entries", len(entries)), zap.String("codec", s.codec.Name()))
	return s, nil
}

// Codec returns the codec used for objects.
func (s *Store) Codec() Codec { return s.codec }

func (s *Store) HasKey(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

func (s *Store) RemoveKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		s.gen++
	}
}

func (s *Store) RemoveAllKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) > 0 {
		s.entries = make(map[string]Value)
		s.gen++
	}
}

// Lookup returns the raw value stored under key.
func (s *Store) Lookup(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Put stores a raw value. Invalid values are ignored.
func (s *Store) Put(key string, v Value) {
	if !v.IsValid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = v
	s.gen++
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of the current view.
func (s *Store) Entries() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEntries(s.entries)
}

// Replace swaps the whole view for a copy of entries. Invalid values are
// dropped.
func (s *Store) Replace(entries map[string]Value) {
	fresh := make(map[string]Value, len(entries))
	for k, v := range entries {
		if v.IsValid() {
			fresh[k] = v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = fresh
	s.gen++
}

// Dirty reports whether the view has mutations that have not been saved.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen != s.saved
}

func (s *Store) lookup(key string) (Value, error) {
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Value{}, fmt.Errorf("%q: %w", key, ErrMissingKey)
	}
	return v, nil
}

func (s *Store) GetBool(key string) (bool, error) {
	v, err := s.lookup(key)
	if err != nil {
		return false, err
	}
	b, err := v.AsBool()
	if err != nil {
		return false, fmt.Errorf("%q: %w", key, err)
	}
	return b, nil
}

func (s *Store) GetBoolOr(key string, def bool) (bool, error) {
	b, err := s.GetBool(key)
	if errors.Is(err, ErrMissingKey) {
		return def, nil
	}
	return b, err
}

func (s *Store) SetBool(key string, value bool) { s.Put(key, BoolValue(value)) }

func (s *Store) GetInt(key string) (int64, error) {
	v, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	i, err := v.AsInt()
	if err != nil {
		return 0, fmt.Errorf("%q: %w", key, err)
	}
	return i, nil
}

func (s *Store) GetIntOr(key string, def int64) (int64, error) {
	i, err := s.GetInt(key)
	if errors.Is(err, ErrMissingKey) {
		return def, nil
	}
	return i, err
}

func (s *Store) SetInt(key string, value int64) { s.Put(key, IntValue(value)) }

func (s *Store) GetFloat(key string) (float64, error) {
	v, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	f, err := v.AsFloat()
	if err != nil {
		return 0, fmt.Errorf("%q: %w", key, err)
	}
	return f, nil
}

func (s *Store) GetFloatOr(key string, def float64) (float64, error) {
	f, err := s.GetFloat(key)
	if errors.Is(err, ErrMissingKey) {
		return def, nil
	}
	return f, err
}

func (s *Store) SetFloat(key string, value float64) { s.Put(key, FloatValue(value)) }

func (s *Store) GetString(key string) (string, error) {
	v, err := s.lookup(key)
	if err != nil {
		return "", err
	}
	str, err := v.AsString()
	if err != nil {
		return "", fmt.Errorf("%q: %w", key, err)
	}
	return str, nil
}

func (s *Store) GetStringOr(key string, def string) (string, error) {
	str, err := s.GetString(key)
	if errors.Is(err, ErrMissingKey) {
		return def, nil
	}
	return str, err
}

func (s *Store) SetString(key string, value string) { s.Put(key, StringValue(value)) }

// Save writes the view to the medium.
func (s *Store) Save() error {
	return s.SaveContext(context.Background())
}

// SaveContext is Save with a context passed through to the medium.
func (s *Store) SaveContext(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	snapshot := copyEntries(s.entries)
	gen := s.gen
	s.mu.RUnlock()

	if err := s.medium.Save(ctx, snapshot); err != nil {
		s.log.Warn("save failed", zap.Int("entries", len(snapshot)), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.mu.Lock()
	s.saved = gen
	s.mu.Unlock()
	s.log.Debug("saved store", zap.Int("entries", len(snapshot)))
	return nil
}

// Close releases the medium without saving. Calling Close more than once
// is safe.
func (s *Store) Close() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dirty := s.gen != s.saved
	s.mu.Unlock()

	if dirty {
		s.log.Debug("closing store with unsaved changes")
	}
	return s.medium.Close()
}

func copyEntries(in map[string]Value) map[string]Value {
	out := make(map[string]Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Compile-time check that Store implements Settings.
var _ Settings = (*Store)(nil)
