package cmd

import (
	"encoding/json"
	"fmt"

	"settings-lite/internal/settings"

	"github.com/spf13/cobra"
)

// newSetCmd creates the set command.
func newSetCmd(provider *AppProvider) *cobra.Command {
	var kindName string

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a setting",
		Long: `Set a key to a value of the given kind and save.

A key holds one value; setting it again replaces the value even if the
kind differs. Objects are given as text in the configured codec.

Examples:
  settings set audio.volume 80 --kind int
  settings set audio.muted true --kind bool
  settings set user.name Alice
  settings set profile '{"level":3,"xp":120}' --kind object`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			kind, err := settings.ParseKind(kindName)
			if err != nil {
				return err
			}
			key := args[0]
			v, err := settings.ParseText(kind, args[1], app.Store.Codec())
			if err != nil {
				return err
			}

			app.Store.Put(key, v)
			if err := app.save(); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(GetResult{
					Key:   key,
					Value: v.Text(),
					Kind:  v.Kind().String(),
					Set:   true,
				})
			}
			fmt.Fprintf(app.Out, "Set %s = %s\n", key, v.Text())
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "string", "Value kind: bool, int, float, string or object")

	return cmd
}

// newUnsetCmd creates the unset command.
func newUnsetCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a setting",
		Long: `Remove a key and save. Removing a key that is not set succeeds.

Examples:
  settings unset audio.volume`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			key := args[0]
			existed := app.Store.HasKey(key)
			app.Store.RemoveKey(key)
			if err := app.save(); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"key":     key,
					"removed": existed,
				})
			}
			if existed {
				fmt.Fprintf(app.Out, "Unset %s\n", key)
			} else {
				fmt.Fprintf(app.Out, "%s (not set)\n", key)
			}
			return nil
		},
	}

	return cmd
}

// newClearCmd creates the clear command.
func newClearCmd(provider *AppProvider) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every setting",
		Long: `Remove every key and save. Requires --force.

Examples:
  settings clear --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("refusing to remove %d settings from %s without --force", app.Store.Len(), app.Location())
			}

			n := app.Store.Len()
			app.Store.RemoveAllKeys()
			if err := app.save(); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]int{"removed": n})
			}
			fmt.Fprintf(app.Out, "%s %d settings\n", app.SuccessColor("Removed"), n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm removing every setting")

	return cmd
}
