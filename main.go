// settings is the CLI for settings-lite, a typed key/value settings store.
package main

import (
	"fmt"
	"os"

	"settings-lite/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
