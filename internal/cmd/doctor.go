package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"settings-lite/internal/atomicfile"

	"github.com/spf13/cobra"
)

// DoctorResult represents the output of the doctor command.
type DoctorResult struct {
	Location string   `json:"location"`
	Entries  int      `json:"entries"`
	Problems []string `json:"problems"`
	Fixed    bool     `json:"fixed"`
}

// newDoctorCmd creates the doctor command.
func newDoctorCmd(provider *AppProvider) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the store for problems",
		Long: `Check the configured store for problems.

Opening the store already verifies the config and that the stored data
decodes. Doctor additionally checks for:
- Object entries written with a codec other than the configured one
- Leftover temporary files from an interrupted save (file backend)

--fix removes leftover temporary files. Entries are never changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			problems, err := diagnose(app, fix)
			if err != nil {
				return fmt.Errorf("doctor failed: %w", err)
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(DoctorResult{
					Location: app.Location(),
					Entries:  app.Store.Len(),
					Problems: problems,
					Fixed:    fix,
				})
			}

			fmt.Fprintf(app.Out, "%s (%d settings)\n", app.Location(), app.Store.Len())
			if len(problems) == 0 {
				fmt.Fprintln(app.Out, app.SuccessColor("No problems found."))
				return nil
			}

			if fix {
				fmt.Fprintf(app.Out, "Checked %d problems:\n", len(problems))
			} else {
				fmt.Fprintf(app.Out, "Found %d problems:\n", len(problems))
			}
			for _, problem := range problems {
				fmt.Fprintf(app.Out, "  - %s\n", app.WarnColor(problem))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Fix problems where possible (default is check only)")

	return cmd
}

func diagnose(app *App, fix bool) ([]string, error) {
	var problems []string

	want := app.Store.Codec().Name()
	entries := app.Store.Entries()
	for _, k := range app.Store.Keys() {
		if codec, _, ok := entries[k].Object(); ok && codec != want {
			problems = append(problems, fmt.Sprintf(
				"%s: object written with codec %s, store reads %s", k, codec, want))
		}
	}

	if app.Config.Backend == "file" {
		path := app.Config.StoragePath(app.Paths.ConfigDir)
		temps, err := atomicfile.FindTemp(path)
		if err != nil {
			return nil, err
		}
		if len(temps) > 0 {
			msg := fmt.Sprintf("%d leftover temporary files: %s", len(temps), strings.Join(temps, ", "))
			if fix {
				if _, err := atomicfile.CleanupTemp(path); err != nil {
					return nil, err
				}
				msg += " (removed)"
			}
			problems = append(problems, msg)
		}
	}

	return problems, nil
}
