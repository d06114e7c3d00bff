// Package bolt implements settings.Medium as a bucket in a bbolt database.
// Each entry is one key in the bucket, encoded with Value.MarshalBinary.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settings-lite/internal/settings"

	bolt "go.etcd.io/bbolt"
)

// DefaultBucket holds entries unless WithBucket says otherwise.
const DefaultBucket = "settings"

// ErrLocked is returned by Open when another process holds the database.
var ErrLocked = errors.New("bolt database is locked by another process")

// Medium stores settings in one bbolt bucket.
type Medium struct {
	db      *bolt.DB
	bucket  []byte
	timeout time.Duration
}

// Option configures a Medium.
type Option func(*Medium)

// WithBucket sets the bucket name, letting several stores share one file.
func WithBucket(name string) Option {
	return func(m *Medium) { m.bucket = []byte(name) }
}

// WithLockTimeout sets how long Open waits for the file lock. The
// default is one second.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Medium) { m.timeout = d }
}

// Open creates or opens a bbolt database at path.
func Open(path string, opts ...Option) (*Medium, error) {
	m := &Medium{bucket: []byte(DefaultBucket), timeout: time.Second}
	for _, opt := range opts {
		opt(m)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: m.timeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	m.db = db
	return m, nil
}

// Load reads every entry in the bucket. A missing bucket loads as empty.
func (m *Medium) Load(ctx context.Context) (map[string]settings.Value, error) {
	out := make(map[string]settings.Value)
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, raw []byte) error {
			var v settings.Value
			if err := v.UnmarshalBinary(raw); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			out[string(k)] = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save replaces the bucket contents in a single transaction.
func (m *Medium) Save(ctx context.Context, entries map[string]settings.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(m.bucket) != nil {
			if err := tx.DeleteBucket(m.bucket); err != nil {
				return fmt.Errorf("clearing bucket: %w", err)
			}
		}
		b, err := tx.CreateBucket(m.bucket)
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		for k, v := range entries {
			raw, err := v.MarshalBinary()
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			if err := b.Put([]byte(k), raw); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		return nil
	})
}

// Close closes the database.
func (m *Medium) Close() error {
	return m.db.Close()
}

// Compile-time check that Medium implements settings.Medium.
var _ settings.Medium = (*Medium)(nil)
