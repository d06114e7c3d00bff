package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-project configuration directory.
const DirName = ".settings"

// Paths captures resolved locations for config.
type Paths struct {
	ConfigDir  string // directory holding config.yaml; relative backend paths resolve here
	ConfigFile string // path to config.yaml
	Found      bool   // ConfigFile exists
	Explicit   bool   // chosen by --config or SETTINGS_CONFIG
}

// ResolvePaths locates config.yaml.
// Discovery order: flagPath > SETTINGS_CONFIG > walk up from CWD for
// .settings/config.yaml (stopping at git root) > $XDG_CONFIG_HOME/settings-lite.
// When nothing is found the result points at .settings/config.yaml in
// CWD with Found false, which is where `settings init` writes.
func ResolvePaths(flagPath string) (Paths, error) {
	// 1. --config flag, then SETTINGS_CONFIG
	explicit := flagPath
	if explicit == "" {
		explicit = os.Getenv(EnvConfig)
	}
	if explicit != "" {
		return resolveExplicit(ExpandHome(explicit))
	}

	// 2. Walk up from CWD, stopping at git root
	cwd, err := os.Getwd()
	if err != nil {
		return Paths{}, fmt.Errorf("cannot get current directory: %w", err)
	}
	configDir, found, err := findConfigUpward(cwd)
	if err != nil {
		return Paths{}, err
	}
	if found {
		return buildPaths(configDir, true), nil
	}

	// 3. User-level config
	if dir := userConfigDir(); dir != "" {
		if exists, err := fileExists(filepath.Join(dir, "config.yaml")); err != nil {
			return Paths{}, err
		} else if exists {
			return buildPaths(dir, true), nil
		}
	}

	return buildPaths(filepath.Join(cwd, DirName), false), nil
}

func resolveExplicit(path string) (Paths, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Paths{}, fmt.Errorf("resolving path: %w", err)
	}
	exists, err := fileExists(abs)
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		ConfigDir:  filepath.Dir(abs),
		ConfigFile: abs,
		Found:      exists,
		Explicit:   true,
	}, nil
}

func buildPaths(configDir string, found bool) Paths {
	return Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, "config.yaml"),
		Found:      found,
	}
}

// findConfigUpward walks from start toward the filesystem root looking for
// .settings/config.yaml. It stops at the git repository root (if inside a
// git repo) to avoid escaping the repo boundary.
func findConfigUpward(start string) (string, bool, error) {
	gitRoot := FindGitRoot(start)

	dir := start
	for {
		configDir := filepath.Join(dir, DirName)
		exists, err := fileExists(filepath.Join(configDir, "config.yaml"))
		if err != nil {
			return "", false, err
		}
		if exists {
			return configDir, true, nil
		}

		if gitRoot != "" && dir == gitRoot {
			return "", false, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// FindGitRoot returns the git repository root for the given directory,
// or "" if not in a git repo. .git may be a directory or a worktree file.
func FindGitRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func userConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "settings-lite")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "settings-lite")
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking config: %w", err)
}
