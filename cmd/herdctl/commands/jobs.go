package commands

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recorded jobs, most recent first",
		RunE:  runJobs,
	}
	cmd.Flags().String("agent", "", "restrict to one agent (default: all agents)")
	return cmd
}

func runJobs(cmd *cobra.Command, _ []string) error {
	cfg, err := loadFleetConfig(cmd)
	if err != nil {
		return err
	}
	agent, _ := cmd.Flags().GetString("agent")
	mgr := buildManager(cfg, newLogger(cmd))

	jobs, err := mgr.Jobs(agent)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	for _, j := range jobs {
		duration := "running"
		if j.DurationSecs != nil {
			duration = time.Duration(*j.DurationSecs * float64(time.Second)).Round(time.Millisecond).String()
		}
		printf("%s\t%s\t%s\t%s\tstarted %s\ttook %s\n", j.ID, j.Agent, j.Status, j.ExitReason, humanize.Time(j.StartedAt), duration)
	}
	return nil
}
