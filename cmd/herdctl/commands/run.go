package commands

import (
	"context"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the fleet supervisor in the foreground",
		Long: `Start the supervisor: writes the pid file, begins polling every
configured agent's schedules, and blocks until a termination signal
arrives.`,
		RunE: runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadFleetConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	mgr := buildManager(cfg, logger)

	if err := mgr.Run(context.Background(), cfg.Agents); err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}
