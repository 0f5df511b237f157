// Command herdctl is the CLI entrypoint for the multi-agent fleet
// supervisor: it starts the long-running supervisor process and issues
// read-only and control commands against it (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/jholhewres/herdctl/cmd/herdctl/commands"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(commands.ExitCodeFor(err))
	}
}
