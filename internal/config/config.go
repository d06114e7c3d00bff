// Package config handles settings-lite configuration loading and defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"settings-lite/internal/atomicfile"

	"gopkg.in/yaml.v3"
)

// Config represents the contents of .settings/config.yaml.
type Config struct {
	// Backend selects the medium: file, bolt, sqlite, leveldb, defaults,
	// remote or memory.
	Backend string `yaml:"backend"`
	// Path is the backend's file or directory. Relative paths resolve
	// against the config directory; empty selects DefaultPath(Backend).
	Path  string `yaml:"path,omitempty"`
	Codec string `yaml:"codec"`
	// Passphrase, when set, wraps the backend in the sealed medium.
	// Prefer SETTINGS_PASSPHRASE over writing it here.
	Passphrase string `yaml:"passphrase,omitempty"`

	Defaults DefaultsConfig `yaml:"defaults,omitempty"`
	Remote   RemoteConfig   `yaml:"remote,omitempty"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultsConfig configures the macOS user defaults backend.
type DefaultsConfig struct {
	Domain string `yaml:"domain,omitempty"`
}

// RemoteConfig configures the remote backend.
type RemoteConfig struct {
	URL      string `yaml:"url,omitempty"`
	Token    string `yaml:"token,omitempty"`
	CAFile   string `yaml:"ca_file,omitempty"`
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
}

type ServerConfig struct {
	Listen         string    `yaml:"listen"`
	Token          string    `yaml:"token,omitempty"`
	MaxConnections int       `yaml:"max_connections"`
	TLS            TLSConfig `yaml:"tls,omitempty"`
}

type TLSConfig struct {
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
	CAFile   string `yaml:"ca_file,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultDomain is the user defaults domain used when none is configured.
const DefaultDomain = "dev.settings-lite"

// Default returns the default configuration.
func Default() Config {
	return Config{
		Backend: "file",
		Codec:   "json",
		Defaults: DefaultsConfig{
			Domain: DefaultDomain,
		},
		Server: ServerConfig{
			Listen:         "127.0.0.1:7411",
			MaxConnections: 64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the file name a backend stores to when Path is unset.
func DefaultPath(backend string) string {
	switch backend {
	case "file":
		return "store.yaml"
	case "bolt":
		return "settings.db"
	case "sqlite":
		return "settings.sqlite"
	case "leveldb":
		return "settings.ldb"
	}
	return ""
}

// StoragePath resolves the backend path against configDir.
func (c Config) StoragePath(configDir string) string {
	p := c.Path
	if p == "" {
		p = DefaultPath(c.Backend)
	}
	if p == "" {
		return ""
	}
	p = ExpandHome(p)
	if !filepath.IsAbs(p) && configDir != "" {
		p = filepath.Join(configDir, p)
	}
	return p
}

// CheckStoragePath fails when the backend would store its data in
// configFile itself.
func (c Config) CheckStoragePath(configDir, configFile string) error {
	p := c.StoragePath(configDir)
	if p == "" || configFile == "" {
		return nil
	}
	a, errA := filepath.Abs(p)
	b, errB := filepath.Abs(configFile)
	same := errA == nil && errB == nil && a == b
	if !same {
		fa, errA := os.Stat(p)
		fb, errB := os.Stat(configFile)
		same = errA == nil && errB == nil && os.SameFile(fa, fb)
	}
	if same {
		return fmt.Errorf("%s backend path %s is the config file; set path to another file", c.Backend, p)
	}
	return nil
}

// Load reads config.yaml from path and applies defaults for missing fields.
// Unknown keys are rejected so typos surface instead of being ignored.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Defaults.Domain == "" {
		cfg.Defaults.Domain = DefaultDomain
	}

	return cfg, nil
}

// Write writes the provided configuration to path, creating its directory.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := atomicfile.Write(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	return Write(path, Default())
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
