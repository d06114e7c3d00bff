// Package backend turns a Config into an open settings store.
package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"settings-lite/internal/codec"
	"settings-lite/internal/config"
	"settings-lite/internal/logging"
	"settings-lite/internal/settings"
	"settings-lite/internal/settings/bolt"
	"settings-lite/internal/settings/defaults"
	"settings-lite/internal/settings/file"
	"settings-lite/internal/settings/leveldb"
	"settings-lite/internal/settings/memory"
	"settings-lite/internal/settings/remote"
	"settings-lite/internal/settings/sealed"
	"settings-lite/internal/settings/sqlite"

	"go.uber.org/zap"
)

var log = logging.For("backend")

// OpenMedium opens the medium cfg selects. Relative paths resolve against
// configDir. A passphrase wraps the medium in the sealed decorator.
func OpenMedium(cfg config.Config, configDir string) (settings.Medium, error) {
	m, err := openRaw(cfg, configDir)
	if err != nil {
		return nil, err
	}
	if cfg.Passphrase == "" {
		return m, nil
	}
	s, err := sealed.New(m, cfg.Passphrase)
	if err != nil {
		m.Close()
		return nil, err
	}
	return s, nil
}

func openRaw(cfg config.Config, configDir string) (settings.Medium, error) {
	path := cfg.StoragePath(configDir)
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	switch cfg.Backend {
	case "file":
		return file.New(path)
	case "bolt":
		return bolt.Open(path)
	case "sqlite":
		return sqlite.Open(path)
	case "leveldb":
		return leveldb.Open(path)
	case "defaults":
		return defaults.New(cfg.Defaults.Domain)
	case "remote":
		var opts []remote.Option
		if cfg.Remote.Token != "" {
			opts = append(opts, remote.WithToken(cfg.Remote.Token))
		}
		if cfg.Remote.CAFile != "" || cfg.Remote.CertFile != "" {
			opts = append(opts, remote.WithTLS(
				config.ExpandHome(cfg.Remote.CAFile),
				config.ExpandHome(cfg.Remote.CertFile),
				config.ExpandHome(cfg.Remote.KeyFile)))
		}
		return remote.New(cfg.Remote.URL, opts...)
	case "memory":
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Open opens the medium and loads it into a Store using the configured codec.
func Open(ctx context.Context, cfg config.Config, configDir string) (*settings.Store, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	m, err := OpenMedium(cfg, configDir)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Backend, err)
	}
	store, err := settings.OpenContext(ctx, m, settings.WithCodec(c))
	if err != nil {
		m.Close()
		return nil, err
	}
	log.Debug("opened backend",
		zap.String("backend", cfg.Backend),
		zap.String("location", Describe(cfg, configDir)),
		zap.Bool("sealed", cfg.Passphrase != ""))
	return store, nil
}

// Describe returns a human-readable location for the configured backend.
func Describe(cfg config.Config, configDir string) string {
	var loc string
	switch cfg.Backend {
	case "defaults":
		loc = "defaults domain " + cfg.Defaults.Domain
	case "remote":
		loc = cfg.Remote.URL
	case "memory":
		loc = "in-process memory"
	default:
		loc = cfg.StoragePath(configDir)
	}
	if cfg.Passphrase != "" {
		loc += " (sealed)"
	}
	return cfg.Backend + ": " + loc
}
