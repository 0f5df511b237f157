package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/herdctl/internal/fleet"
	"github.com/jholhewres/herdctl/internal/state"
)

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Signal a running supervisor process to shut down gracefully",
		Args:  cobra.NoArgs,
		RunE:  runStop,
	}
	cmd.Flags().Duration("timeout", 30*time.Second, "how long to wait before escalating to SIGKILL")
	return cmd
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadFleetConfig(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	store := state.New(cfg.StateDir)

	if err := fleet.StopExternal(store.PIDPath(), timeout); err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	printf("stopped\n")
	return nil
}
