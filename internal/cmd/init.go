package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"settings-lite/internal/backend"
	"settings-lite/internal/config"

	"github.com/spf13/cobra"
)

// newInitCmd creates the init command.
// Note: init doesn't use provider.Get since it creates the config.
func newInitCmd(provider *AppProvider) *cobra.Command {
	var (
		force bool
		codec string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a settings configuration",
		Long: `Create .settings/config.yaml in the current directory (or at --config)
and initialize the selected backend.

Examples:
  settings init
  settings init --backend sqlite
  settings init --backend file --path prefs.toml --codec yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(provider, force, codec)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	cmd.Flags().StringVar(&codec, "codec", "", "Object codec (json, yaml, toml, protojson)")

	return cmd
}

func runInit(provider *AppProvider, force bool, codec string) error {
	out := provider.Out
	if out == nil {
		out = os.Stdout
	}

	// Path resolution: --config > SETTINGS_CONFIG > CWD
	var configFile string
	paths, err := config.ResolvePaths(provider.ConfigPath)
	if err != nil {
		return err
	}
	if paths.Explicit {
		configFile = paths.ConfigFile
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		configFile = filepath.Join(cwd, config.DirName, "config.yaml")
	}
	configDir := filepath.Dir(configFile)

	if _, err := os.Stat(configFile); err == nil {
		if !force {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", configFile)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfg := config.Default()
	if provider.Backend != "" {
		cfg.Backend = provider.Backend
	}
	if provider.StoragePath != "" {
		cfg.Path = provider.StoragePath
	}
	if codec != "" {
		cfg.Codec = codec
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := cfg.CheckStoragePath(configDir, configFile); err != nil {
		return err
	}
	if err := config.Write(configFile, cfg); err != nil {
		return err
	}

	// Opening the backend creates its storage and surfaces problems now
	// rather than on first use.
	config.ApplyEnvOverrides(&cfg)
	store, err := backend.Open(context.Background(), cfg, configDir)
	if err != nil {
		return fmt.Errorf("initializing backend: %w", err)
	}
	if err := store.Close(); err != nil {
		return err
	}

	location := backend.Describe(cfg, configDir)
	if provider.JSONOutput {
		return json.NewEncoder(out).Encode(map[string]string{
			"config":  configFile,
			"backend": location,
		})
	}
	fmt.Fprintf(out, "Initialized settings at %s\n", configFile)
	fmt.Fprintf(out, "  storage: %s\n", location)
	return nil
}
