// Package file implements settings.Medium as a single document on disk.
//
// The document format follows the file extension: .yaml/.yml, .json or
// .toml. Each entry keeps its kind next to its canonical text so that
// "80" the string and 80 the integer stay distinct:
//
//	version: 1
//	settings:
//	  audio.volume: {kind: int, value: "80"}
//	  profile: {kind: object, codec: json, value: '{"level":3}'}
//
// A Medium holds an exclusive flock on <path>.lock for its lifetime, so
// two processes cannot own the same file at once. Saves go through a
// temporary file and rename.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"settings-lite/internal/atomicfile"
	"settings-lite/internal/settings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrLocked is returned by New when another Medium owns the file.
var ErrLocked = errors.New("settings file is locked by another process")

// Format is a document encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	TOML Format = "toml"
)

// FormatFor picks the format from the extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	case ".toml":
		return TOML, nil
	}
	return "", fmt.Errorf("cannot infer settings format from %q (use .yaml, .json or .toml)", path)
}

// Medium is a settings document on disk.
type Medium struct {
	path   string
	format Format
	perm   os.FileMode
	lock   *os.File
}

// Option configures a Medium.
type Option func(*Medium)

// WithFormat overrides the format inferred from the extension.
func WithFormat(f Format) Option {
	return func(m *Medium) { m.format = f }
}

// WithPerm sets the permission bits for newly written documents. The
// default is 0600.
func WithPerm(perm os.FileMode) Option {
	return func(m *Medium) { m.perm = perm }
}

// New binds a Medium to path and takes its lock. The file itself is
// created by the first Save.
func New(path string, opts ...Option) (*Medium, error) {
	m := &Medium{path: path, perm: 0600}
	for _, opt := range opts {
		opt(m)
	}
	if m.format == "" {
		f, err := FormatFor(path)
		if err != nil {
			return nil, err
		}
		m.format = f
	}
	switch m.format {
	case YAML, JSON, TOML:
	default:
		return nil, fmt.Errorf("unknown settings format %q", m.format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}
	f, err := os.OpenFile(m.lockPath(), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening settings lock: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("acquiring settings lock: %w", err)
	}
	m.lock = f
	return m, nil
}

// Path returns the document path.
func (m *Medium) Path() string { return m.path }

// Format returns the document format.
func (m *Medium) Format() Format { return m.format }

func (m *Medium) lockPath() string {
	return m.path + ".lock"
}

// Load reads the document. A missing or empty file loads as empty.
func (m *Medium) Load(ctx context.Context) (map[string]settings.Value, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]settings.Value{}, nil
		}
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]settings.Value{}, nil
	}

	doc, err := m.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", settings.ErrCorrupt, m.path, err)
	}
	entries, err := doc.Entries()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	return entries, nil
}

// Save encodes entries and atomically replaces the document.
func (m *Medium) Save(ctx context.Context, entries map[string]settings.Value) error {
	if m.lock == nil {
		return settings.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := settings.CheckKeys(entries); err != nil {
		return err
	}
	raw, err := m.encode(settings.NewDocument(entries))
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return atomicfile.Write(m.path, raw, m.perm)
}

// Close releases the lock.
func (m *Medium) Close() error {
	if m.lock == nil {
		return nil
	}
	syscall.Flock(int(m.lock.Fd()), syscall.LOCK_UN)
	err := m.lock.Close()
	m.lock = nil
	return err
}

func (m *Medium) decode(raw []byte) (settings.Document, error) {
	var doc settings.Document
	switch m.format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return doc, err
		}
		var extra yaml.Node
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			return doc, errors.New("unexpected second YAML document")
		}
		return doc, nil
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return doc, err
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			return doc, errors.New("unexpected data after JSON document")
		}
		return doc, nil
	default:
		md, err := toml.Decode(string(raw), &doc)
		if err != nil {
			return doc, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return doc, fmt.Errorf("unknown keys %v", undecoded)
		}
		return doc, nil
	}
}

func (m *Medium) encode(doc settings.Document) ([]byte, error) {
	switch m.format {
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case JSON:
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(raw, '\n'), nil
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// Compile-time check that Medium implements settings.Medium.
var _ settings.Medium = (*Medium)(nil)
