package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/herdctl/internal/executor"
)

func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job, escalating to forced termination after a timeout",
		Args:  cobra.ExactArgs(1),
		RunE:  runCancel,
	}
	cmd.Flags().Duration("timeout", 30*time.Second, "how long to wait for graceful termination before escalating")
	return cmd
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadFleetConfig(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	mgr := buildManager(cfg, newLogger(cmd))

	result, err := mgr.CancelJob(args[0], timeout)
	if err != nil && err != executor.ErrJobNotRunning {
		return &ExitError{Code: 1, Err: err}
	}
	printf("%s\n", result)
	if result == executor.TerminationGraceful || result == executor.TerminationForced || result == executor.TerminationAlreadyStopped {
		return nil
	}
	return &ExitError{Code: 1, Err: err}
}
