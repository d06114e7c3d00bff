// Package cmd implements the settings command-line interface.
package cmd

import (
	"fmt"
	"io"
	"os"

	"settings-lite/internal/backend"
	"settings-lite/internal/config"
	"settings-lite/internal/settings"

	"golang.org/x/term"
)

// App holds application state shared across commands.
type App struct {
	Store  *settings.Store
	Config config.Config
	Paths  config.Paths
	Out    io.Writer
	Err    io.Writer
	JSON   bool // output in JSON format
}

// Location describes where the store lives, for messages.
func (a *App) Location() string {
	return backend.Describe(a.Config, a.Paths.ConfigDir)
}

// save flushes the store, naming the backend in the error.
func (a *App) save() error {
	if err := a.Store.Save(); err != nil {
		return fmt.Errorf("saving to %s: %w", a.Location(), err)
	}
	return nil
}

// SuccessColor returns the string wrapped in green ANSI codes if stdout is a terminal,
// otherwise returns the string unchanged.
func (a *App) SuccessColor(s string) string {
	if f, ok := a.Out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "\033[32m" + s + "\033[0m"
	}
	return s
}

// WarnColor returns the string wrapped in orange ANSI codes if stdout is a terminal,
// otherwise returns the string unchanged.
func (a *App) WarnColor(s string) string {
	if f, ok := a.Out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "\033[38;5;214m" + s + "\033[0m"
	}
	return s
}
