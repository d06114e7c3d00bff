package config

import (
	"os"
	"strconv"
)

// Environment variable names for settings-lite configuration.
const (
	EnvConfig     = "SETTINGS_CONFIG"     // Path to config.yaml
	EnvBackend    = "SETTINGS_BACKEND"    // Override backend
	EnvPath       = "SETTINGS_PATH"       // Override backend path
	EnvCodec      = "SETTINGS_CODEC"      // Override object codec
	EnvPassphrase = "SETTINGS_PASSPHRASE" // Enable the sealed medium
	EnvRemoteURL  = "SETTINGS_REMOTE_URL" // Override remote.url
	EnvToken      = "SETTINGS_TOKEN"      // Bearer token for both remote and server
	EnvLogLevel   = "SETTINGS_LOG_LEVEL"  // Override log.level
	EnvJSON       = "SETTINGS_JSON"       // Enable JSON output ("1" or "true")
)

// ApplyEnvOverrides overrides cfg fields from SETTINGS_* env vars.
// These overrides are not persisted to the config file.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv(EnvPath); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv(EnvCodec); v != "" {
		cfg.Codec = v
	}
	if v := os.Getenv(EnvPassphrase); v != "" {
		cfg.Passphrase = v
	}
	if v := os.Getenv(EnvRemoteURL); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Remote.Token = v
		cfg.Server.Token = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// EnvBool reports whether the named env var is set to a true value.
func EnvBool(name string) bool {
	b, _ := strconv.ParseBool(os.Getenv(name))
	return b
}
