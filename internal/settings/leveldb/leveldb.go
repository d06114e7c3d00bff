// Package leveldb implements settings.Medium on a LevelDB database.
// Entries live under a key prefix, so one database can hold several
// independent stores.
package leveldb

import (
	"context"
	"fmt"

	"settings-lite/internal/settings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// DefaultPrefix is prepended to every key unless WithPrefix says otherwise.
const DefaultPrefix = "settings/"

// Medium stores settings in a LevelDB database.
type Medium struct {
	db     *leveldb.DB
	prefix []byte
}

// Option configures a Medium.
type Option func(*Medium)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(m *Medium) { m.prefix = []byte(prefix) }
}

// Open opens or creates the LevelDB database in dir.
func Open(dir string, opts ...Option) (*Medium, error) {
	m := &Medium{prefix: []byte(DefaultPrefix)}
	for _, o := range opts {
		o(m)
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}
	m.db = db
	return m, nil
}

// Load reads every key under the prefix.
func (m *Medium) Load(ctx context.Context) (map[string]settings.Value, error) {
	out := make(map[string]settings.Value)
	iter := m.db.NewIterator(util.BytesPrefix(m.prefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key()[len(m.prefix):])
		var v settings.Value
		if err := v.UnmarshalBinary(iter.Value()); err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out[key] = v
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating leveldb: %w", err)
	}
	return out, nil
}

// Save replaces everything under the prefix with one synced batch.
func (m *Medium) Save(ctx context.Context, entries map[string]settings.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)

	iter := m.db.NewIterator(util.BytesPrefix(m.prefix), nil)
	for iter.Next() {
		if _, ok := entries[string(iter.Key()[len(m.prefix):])]; !ok {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterating leveldb: %w", err)
	}

	for k, v := range entries {
		raw, err := v.MarshalBinary()
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		batch.Put(m.key(k), raw)
	}

	return m.db.Write(batch, &opt.WriteOptions{Sync: true})
}

func (m *Medium) key(k string) []byte {
	out := make([]byte, 0, len(m.prefix)+len(k))
	out = append(out, m.prefix...)
	return append(out, k...)
}

// Close closes the database.
func (m *Medium) Close() error {
	return m.db.Close()
}

// Compile-time check that Medium implements settings.Medium.
var _ settings.Medium = (*Medium)(nil)
