package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"settings-lite/internal/backend"
	"settings-lite/internal/config"
	"settings-lite/internal/logging"

	"github.com/spf13/cobra"
)

// AppProvider lazily initializes the App on first use.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	// Config captured from flags before Execute()
	ConfigPath  string
	Backend     string
	StoragePath string
	JSONOutput  bool
	Out         io.Writer
	Err         io.Writer
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

// NewTestProvider creates a provider pre-initialized with the given App.
// Used for testing commands with a test App.
func NewTestProvider(app *App) *AppProvider {
	return &AppProvider{
		app: app,
		Out: app.Out,
		Err: app.Err,
	}
}

// Close releases the store if one was opened. Unsaved changes are dropped;
// every mutating command saves before returning.
func (p *AppProvider) Close() error {
	if p.app == nil || p.app.Store == nil {
		return nil
	}
	return p.app.Store.Close()
}

// LoadConfig resolves and loads configuration, then applies env vars and
// flags in that order.
func (p *AppProvider) LoadConfig() (config.Config, config.Paths, error) {
	paths, err := config.ResolvePaths(p.ConfigPath)
	if err != nil {
		return config.Config{}, config.Paths{}, err
	}

	cfg := config.Default()
	switch {
	case paths.Found:
		if cfg, err = config.Load(paths.ConfigFile); err != nil {
			return config.Config{}, config.Paths{}, fmt.Errorf("%s: %w", paths.ConfigFile, err)
		}
	case paths.Explicit:
		return config.Config{}, config.Paths{}, fmt.Errorf("config not found at %s (run `settings init`)", paths.ConfigFile)
	}

	config.ApplyEnvOverrides(&cfg)
	if p.Backend != "" {
		cfg.Backend = p.Backend
	}
	if p.StoragePath != "" {
		// Flag paths are relative to the working directory, not the config dir.
		abs, err := filepath.Abs(config.ExpandHome(p.StoragePath))
		if err != nil {
			return config.Config{}, config.Paths{}, fmt.Errorf("resolving path: %w", err)
		}
		cfg.Path = abs
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, config.Paths{}, err
	}
	if err := cfg.CheckStoragePath(paths.ConfigDir, paths.ConfigFile); err != nil {
		return config.Config{}, config.Paths{}, err
	}
	return cfg, paths, nil
}

func (p *AppProvider) init() (*App, error) {
	cfg, paths, err := p.LoadConfig()
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	store, err := backend.Open(context.Background(), cfg, paths.ConfigDir)
	if err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}

	return &App{
		Store:  store,
		Config: cfg,
		Paths:  paths,
		Out:    out,
		Err:    errOut,
		JSON:   p.JSONOutput || config.EnvBool(config.EnvJSON),
	}, nil
}

// Execute runs the CLI.
func Execute() error {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}
	defer provider.Close()

	rootCmd := newRootCmd(provider)
	return rootCmd.Execute()
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "settings",
		Short: "Typed key/value settings with pluggable storage",
		Long: `settings reads and writes typed settings (bool, int, float, string and
structured objects) in a store backed by a file, an embedded database,
the macOS user defaults system or a remote settings server.

Every command that changes settings saves them before returning.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags - these populate the provider config
	rootCmd.PersistentFlags().StringVar(&provider.ConfigPath, "config", "", "Path to config.yaml (default: search from cwd)")
	rootCmd.PersistentFlags().StringVar(&provider.Backend, "backend", "", "Override the configured backend")
	rootCmd.PersistentFlags().StringVar(&provider.StoragePath, "path", "", "Override the backend file or directory")
	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(newInitCmd(provider))
	rootCmd.AddCommand(newGetCmd(provider))
	rootCmd.AddCommand(newSetCmd(provider))
	rootCmd.AddCommand(newUnsetCmd(provider))
	rootCmd.AddCommand(newClearCmd(provider))
	rootCmd.AddCommand(newListCmd(provider))
	rootCmd.AddCommand(newCopyCmd(provider))
	rootCmd.AddCommand(newDoctorCmd(provider))
	rootCmd.AddCommand(newServeCmd(provider))
	rootCmd.AddCommand(newMCPCmd(provider))
	rootCmd.AddCommand(newVersionCmd(provider))

	return rootCmd
}
