package cmd

import (
	"encoding/json"
	"fmt"

	"settings-lite/internal/settings"

	"github.com/spf13/cobra"
)

// GetResult is the JSON output of get.
type GetResult struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Kind  string `json:"kind,omitempty"`
	Set   bool   `json:"set"`
}

// newGetCmd creates the get command.
func newGetCmd(provider *AppProvider) *cobra.Command {
	var (
		kindName string
		def      string
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a setting",
		Long: `Get the value of a setting.

Without --kind the stored value is printed as is. With --kind the value is
read as that type, converting where the stored value allows it (for
example an int read as float). A value that cannot be converted is an
error.

Prints "key (not set)" if the key is missing and no --default is given.

Examples:
  settings get audio.volume
  settings get audio.volume --kind float
  settings get audio.muted --kind bool --default false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			key := args[0]
			hasDef := cmd.Flags().Changed("default")
			result := GetResult{Key: key}

			if kindName == "" {
				result, err = readRaw(app.Store, key, def, hasDef)
			} else {
				var kind settings.Kind
				if kind, err = settings.ParseKind(kindName); err != nil {
					return err
				}
				result, err = readTyped(app.Store, key, kind, def, hasDef)
			}
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(result)
			}
			if result.Set || hasDef {
				fmt.Fprintln(app.Out, result.Value)
			} else {
				fmt.Fprintf(app.Out, "%s (not set)\n", key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "", "Read as bool, int, float, string or object")
	cmd.Flags().StringVar(&def, "default", "", "Value to print when the key is missing")

	return cmd
}

func readRaw(s *settings.Store, key, def string, hasDef bool) (GetResult, error) {
	v, ok := s.Lookup(key)
	if !ok {
		if hasDef {
			return GetResult{Key: key, Value: def}, nil
		}
		return GetResult{Key: key}, nil
	}
	return GetResult{Key: key, Value: v.Text(), Kind: v.Kind().String(), Set: true}, nil
}

// readTyped reads key as kind. A scalar default is parsed as kind up front so a
// malformed default fails even when the key is set.
func readTyped(s *settings.Store, key string, kind settings.Kind, def string, hasDef bool) (GetResult, error) {
	result := GetResult{Key: key, Kind: kind.String(), Set: s.HasKey(key)}

	if !hasDef || kind == settings.KindObject {
		if !result.Set {
			if hasDef {
				result.Value = def
			}
			return result, nil
		}
		text, err := s.GetText(key, kind)
		if err != nil {
			return result, err
		}
		result.Value = text
		return result, nil
	}

	dv, err := settings.ParseText(kind, def, s.Codec())
	if err != nil {
		return result, fmt.Errorf("--default: %w", err)
	}
	var got settings.Value
	switch kind {
	case settings.KindBool:
		d, _ := dv.AsBool()
		b, err := s.GetBoolOr(key, d)
		if err != nil {
			return result, err
		}
		got = settings.BoolValue(b)
	case settings.KindInt:
		d, _ := dv.AsInt()
		i, err := s.GetIntOr(key, d)
		if err != nil {
			return result, err
		}
		got = settings.IntValue(i)
	case settings.KindFloat:
		d, _ := dv.AsFloat()
		f, err := s.GetFloatOr(key, d)
		if err != nil {
			return result, err
		}
		got = settings.FloatValue(f)
	default:
		str, err := s.GetStringOr(key, def)
		if err != nil {
			return result, err
		}
		got = settings.StringValue(str)
	}
	result.Value = got.Text()
	return result, nil
}
