package commands

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show fleet and per-agent schedule status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadFleetConfig(cmd)
	if err != nil {
		return err
	}
	mgr := buildManager(cfg, newLogger(cmd))

	status, err := mgr.Status(cfg.Agents)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	printf("fleet started %s\n", humanize.Time(status.StartedAt))
	for _, agent := range cfg.Agents {
		view := status.Agents[agent.Name]
		printf("%s: running=%d\n", agent.Name, view.RunningJobs)
		for name, st := range view.Schedules {
			lastRun := "never"
			if st.LastRunAt != nil {
				lastRun = humanize.Time(*st.LastRunAt)
			}
			printf("  %s: status=%s last_run=%s last_error=%q\n", name, st.Status, lastRun, st.LastError)
		}
	}
	return nil
}
