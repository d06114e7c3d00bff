package cmd

import (
	"encoding/json"
	"fmt"

	"settings-lite/internal/settings"

	"github.com/spf13/cobra"
)

// newListCmd creates the list command.
func newListCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all settings",
		Long: `List all settings with their kinds.

Entries are sorted alphabetically by key. With --json the output is a
settings document, the same layout the file backend and the HTTP API use.

Examples:
  settings list
  settings list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			entries := app.Store.Entries()
			if app.JSON {
				return json.NewEncoder(app.Out).Encode(settings.NewDocument(entries))
			}

			if len(entries) == 0 {
				fmt.Fprintln(app.Out, "No settings")
				return nil
			}
			for _, k := range app.Store.Keys() {
				v := entries[k]
				kind := v.Kind().String()
				if codec, _, ok := v.Object(); ok {
					kind += ", " + codec
				}
				fmt.Fprintf(app.Out, "%s = %s (%s)\n", k, v.Text(), kind)
			}
			return nil
		},
	}

	return cmd
}
