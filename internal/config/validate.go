package config

import (
	"fmt"
	"strings"
)

// validValues maps enumerated fields to their allowed values.
var validValues = map[string][]string{
	"backend":    {"file", "bolt", "sqlite", "leveldb", "defaults", "remote", "memory"},
	"codec":      {"json", "yaml", "toml", "protojson"},
	"log.level":  {"debug", "info", "warn", "error"},
	"log.format": {"console", "json"},
}

// Validate checks cfg and returns an error describing every invalid
// value found, or nil if all values are valid.
func Validate(cfg Config) error {
	var errs []string

	check := func(key, val string) {
		if allowed := validValues[key]; !contains(allowed, val) {
			errs = append(errs, fmt.Sprintf(
				"%s: invalid value %q (allowed: %s)",
				key, val, strings.Join(allowed, ", ")))
		}
	}
	check("backend", cfg.Backend)
	check("codec", cfg.Codec)
	check("log.level", cfg.Log.Level)
	check("log.format", cfg.Log.Format)

	switch cfg.Backend {
	case "remote":
		if cfg.Remote.URL == "" {
			errs = append(errs, "remote.url: required when backend is remote")
		}
		if (cfg.Remote.CertFile == "") != (cfg.Remote.KeyFile == "") {
			errs = append(errs, "remote: cert_file and key_file must be set together")
		}
	case "defaults":
		if cfg.Defaults.Domain == "" {
			errs = append(errs, "defaults.domain: required when backend is defaults")
		}
	}

	if cfg.Server.Listen == "" {
		errs = append(errs, "server.listen: must not be empty")
	}
	if cfg.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Sprintf(
			"server.max_connections: must not be negative, got %d", cfg.Server.MaxConnections))
	}
	if (cfg.Server.TLS.CertFile == "") != (cfg.Server.TLS.KeyFile == "") {
		errs = append(errs, "server.tls: cert_file and key_file must be set together")
	}
	if cfg.Server.TLS.CAFile != "" && cfg.Server.TLS.CertFile == "" {
		errs = append(errs, "server.tls.ca_file: requires cert_file and key_file")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
