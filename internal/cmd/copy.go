package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"settings-lite/internal/backend"
	"settings-lite/internal/config"

	"github.com/spf13/cobra"
)

// newCopyCmd creates the copy command.
func newCopyCmd(provider *AppProvider) *cobra.Command {
	var (
		toBackend    string
		toPath       string
		toPassphrase string
	)

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy every setting to another backend",
		Long: `Copy every setting from the configured backend to another one, replacing
whatever the destination held. Object entries keep their codec.

The destination inherits the configuration (remote URL, defaults domain,
codec) except for the flags given here. It is not sealed unless
--to-passphrase is set.

Examples:
  settings copy --to-backend sqlite --to-path backup.sqlite
  settings copy --to-backend file --to-path settings.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			dst := app.Config
			dst.Backend = toBackend
			dst.Path = ""
			dst.Passphrase = toPassphrase
			if toPath != "" {
				abs, err := filepath.Abs(config.ExpandHome(toPath))
				if err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
				dst.Path = abs
			}
			if err := config.Validate(dst); err != nil {
				return err
			}
			if dst.Backend == app.Config.Backend && dst.StoragePath(app.Paths.ConfigDir) == app.Config.StoragePath(app.Paths.ConfigDir) && dst.Backend != "remote" && dst.Backend != "defaults" {
				return fmt.Errorf("source and destination are the same: %s", app.Location())
			}

			target, err := backend.Open(cmd.Context(), dst, app.Paths.ConfigDir)
			if err != nil {
				return err
			}
			defer target.Close()

			entries := app.Store.Entries()
			target.Replace(entries)
			if err := target.SaveContext(cmd.Context()); err != nil {
				return fmt.Errorf("saving to %s: %w", backend.Describe(dst, app.Paths.ConfigDir), err)
			}

			to := backend.Describe(dst, app.Paths.ConfigDir)
			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"from":   app.Location(),
					"to":     to,
					"copied": len(entries),
				})
			}
			fmt.Fprintf(app.Out, "Copied %d settings to %s\n", len(entries), to)
			return nil
		},
	}

	cmd.Flags().StringVar(&toBackend, "to-backend", "", "Destination backend")
	cmd.Flags().StringVar(&toPath, "to-path", "", "Destination file or directory")
	cmd.Flags().StringVar(&toPassphrase, "to-passphrase", "", "Seal the destination with this passphrase")
	cmd.MarkFlagRequired("to-backend")

	return cmd
}
