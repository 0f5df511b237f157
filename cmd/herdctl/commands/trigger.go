package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jholhewres/herdctl/internal/executor"
	"github.com/jholhewres/herdctl/internal/model"
)

func newTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger <agent>",
		Short: "Run an agent immediately, outside its schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrigger,
	}
	cmd.Flags().String("prompt", "", "prompt override (default: the agent's configured prompt)")
	cmd.Flags().Bool("wait", false, "block until the job finishes and exit with its effective success code")
	cmd.Flags().String("resume", "", "caller-supplied session id to resume")
	return cmd
}

func runTrigger(cmd *cobra.Command, args []string) error {
	cfg, err := loadFleetConfig(cmd)
	if err != nil {
		return err
	}
	agentName := args[0]
	var agent *model.Agent
	for _, a := range cfg.Agents {
		if a.Name == agentName {
			agent = a
			break
		}
	}
	if agent == nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("no such agent %q", agentName)}
	}

	prompt, _ := cmd.Flags().GetString("prompt")
	if prompt == "" {
		prompt = agent.Prompt
	}
	wait, _ := cmd.Flags().GetBool("wait")
	resume, _ := cmd.Flags().GetString("resume")

	mgr := buildManager(cfg, newLogger(cmd))
	exec := mgr.Executor()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	type result struct {
		job *model.Job
		err error
	}
	done := make(chan result, 1)
	go func() {
		job, err := exec.Run(ctx, executor.RunOptions{
			Agent:           agent,
			Prompt:          prompt,
			Trigger:         model.TriggerManual,
			ResumeSessionID: resume,
		})
		done <- result{job, err}
	}()

	select {
	case <-sigCh:
		cancel()
		<-done
		return &ExitError{Code: exitInterrupted}
	case r := <-done:
		cancel()
		if r.err != nil {
			return &ExitError{Code: 1, Err: r.err}
		}
		printf("%s\t%s\t%s\n", r.job.ID, r.job.Status, r.job.ExitReason)
		if !wait {
			return nil
		}
		if r.job.ExitReason != model.ExitSuccess {
			return &ExitError{Code: 1}
		}
		return nil
	}
}
