// Package defaults implements settings.Medium on a macOS user defaults
// domain, driven through the defaults(1) tool.
//
// Load runs "defaults export <domain> -" and Save runs
// "defaults import <domain> -", so a Save replaces the whole domain in a
// single step. Scalars map to native plist types; objects are stored as a
// dictionary holding the codec name and the encoded text.
package defaults

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"settings-lite/internal/settings"

	"howett.net/plist"
)

// Keys of the dictionary that wraps an object entry.
const (
	objectCodecKey = "settings.codec"
	objectDataKey  = "settings.object"
)

// Runner executes a command with stdin and returns its stdout.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w, output: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Medium stores settings in one defaults domain.
type Medium struct {
	domain string
	run    Runner
}

// Option configures a Medium.
type Option func(*Medium)

// WithRunner replaces the command runner. Used by tests.
func WithRunner(r Runner) Option {
	return func(m *Medium) { m.run = r }
}

// New binds a Medium to domain, for example "com.example.game".
func New(domain string, opts ...Option) (*Medium, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, fmt.Errorf("defaults domain is required")
	}
	m := &Medium{domain: domain, run: ExecRunner}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Domain returns the defaults domain.
func (m *Medium) Domain() string { return m.domain }

// Load exports the domain. A domain that was never written loads as empty.
func (m *Medium) Load(ctx context.Context) (map[string]settings.Value, error) {
	out, err := m.run(ctx, nil, "defaults", "export", m.domain, "-")
	if err != nil {
		return nil, fmt.Errorf("exporting defaults domain %s: %w", m.domain, err)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return map[string]settings.Value{}, nil
	}

	var raw map[string]any
	if _, err := plist.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing defaults domain %s: %v", settings.ErrCorrupt, m.domain, err)
	}

	entries := make(map[string]settings.Value, len(raw))
	for k, pv := range raw {
		v, err := fromPlist(pv)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		entries[k] = v
	}
	return entries, nil
}

// Save imports entries as the complete content of the domain.
func (m *Medium) Save(ctx context.Context, entries map[string]settings.Value) error {
	if err := settings.CheckKeys(entries); err != nil {
		return err
	}
	raw := make(map[string]any, len(entries))
	for k, v := range entries {
		pv, err := toPlist(v)
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		raw[k] = pv
	}
	data, err := plist.Marshal(raw, plist.XMLFormat)
	if err != nil {
		return fmt.Errorf("encoding plist: %w", err)
	}
	if _, err := m.run(ctx, data, "defaults", "import", m.domain, "-"); err != nil {
		return fmt.Errorf("importing defaults domain %s: %w", m.domain, err)
	}
	return nil
}

// Close is a no-op; defaults(1) holds no resources between calls.
func (m *Medium) Close() error { return nil }

func toPlist(v settings.Value) (any, error) {
	switch v.Kind() {
	case settings.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case settings.KindInt:
		i, _ := v.AsInt()
		return i, nil
	case settings.KindFloat:
		f, _ := v.AsFloat()
		return f, nil
	case settings.KindString:
		// XML cannot carry every string; those go in as <data>.
		if s := v.Text(); !settings.TextSafe(s) {
			return []byte(s), nil
		}
		return v.Text(), nil
	case settings.KindObject:
		codec, data, _ := v.Object()
		if !settings.TextSafe(string(data)) {
			return map[string]any{objectCodecKey: codec, objectDataKey: data}, nil
		}
		return map[string]any{objectCodecKey: codec, objectDataKey: string(data)}, nil
	}
	return nil, fmt.Errorf("cannot store %s value", v.Kind())
}

func fromPlist(pv any) (settings.Value, error) {
	switch x := pv.(type) {
	case bool:
		return settings.BoolValue(x), nil
	case int64:
		return settings.IntValue(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return settings.Value{}, fmt.Errorf("%w: integer %d overflows int64", settings.ErrCorrupt, x)
		}
		return settings.IntValue(int64(x)), nil
	case int:
		return settings.IntValue(int64(x)), nil
	case float64:
		return settings.FloatValue(x), nil
	case float32:
		return settings.FloatValue(float64(x)), nil
	case string:
		return settings.StringValue(x), nil
	case []byte:
		return settings.StringValue(string(x)), nil
	case map[string]any:
		codec, _ := x[objectCodecKey].(string)
		var data []byte
		switch d := x[objectDataKey].(type) {
		case string:
			data = []byte(d)
		case []byte:
			data = d
		}
		if codec == "" || data == nil || len(x) != 2 {
			return settings.Value{}, fmt.Errorf("%w: dictionary is not a stored object", settings.ErrCorrupt)
		}
		return settings.ObjectValue(codec, data), nil
	}
	return settings.Value{}, fmt.Errorf("%w: unsupported plist type %T", settings.ErrCorrupt, pv)
}

// Compile-time check that Medium implements settings.Medium.
var _ settings.Medium = (*Medium)(nil)
