// Package commands implements the herdctl CLI's subcommands using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/herdctl/internal/config"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "herdctl",
		Short:   "Fleet supervisor for multi-agent scheduled jobs",
		Version: version,
		Long: `herdctl supervises a fleet of scheduled agents: it runs each agent's
interval/cron schedules, streams their execution through a pluggable
runtime, and persists every job and message to an append-only state
store.

Examples:
  herdctl run --config fleet.yaml
  herdctl status --config fleet.yaml
  herdctl jobs --agent reviewer --config fleet.yaml
  herdctl trigger reviewer --wait --config fleet.yaml`,
	}

	root.PersistentFlags().StringP("config", "c", "fleet.yaml", "path to the fleet config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newJobsCmd(),
		newLogsCmd(),
		newTriggerCmd(),
		newCancelCmd(),
		newStopCmd(),
	)

	return root
}

func loadFleetConfig(cmd *cobra.Command) (*config.Fleet, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	fleet, err := config.Load(path)
	if err != nil {
		return nil, &ExitError{Code: 1, Err: err}
	}
	return fleet, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
