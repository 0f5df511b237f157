package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/herdctl/internal/model"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Print a job's message log",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogs,
	}
	cmd.Flags().String("agent", "", "agent the job belongs to (required)")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadFleetConfig(cmd)
	if err != nil {
		return err
	}
	agent, _ := cmd.Flags().GetString("agent")
	if agent == "" {
		return &ExitError{Code: 1, Err: errMissingAgentFlag}
	}
	mgr := buildManager(cfg, newLogger(cmd))

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var interrupted bool
	messages, err := mgr.JobLog(agent, args[0], func(_ []byte, _ error) {})
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	// A human at a terminal gets a compact one-line-per-message rendering;
	// a pipe or redirect gets the raw JSON record for downstream tooling to
	// consume (golang.org/x/term detects which, the way the teacher's
	// process output writer does for its own colorized/plain split).
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	for _, msg := range messages {
		select {
		case <-ctx.Done():
			interrupted = true
		default:
		}
		if interrupted {
			break
		}
		if interactive {
			printf("%s\n", formatMessageLine(msg))
			continue
		}
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		printf("%s\n", data)
	}

	if interrupted {
		return &ExitError{Code: exitInterrupted}
	}
	return nil
}

func formatMessageLine(msg model.Message) string {
	ts := msg.Timestamp.Format("15:04:05")
	switch msg.Type {
	case model.MessageAssistant:
		return fmt.Sprintf("[%s] assistant: %s", ts, msg.Summary)
	case model.MessageToolUse:
		return fmt.Sprintf("[%s] tool_use: %s", ts, msg.ToolName)
	case model.MessageToolResult:
		status := "ok"
		if !msg.Success {
			status = "error: " + msg.ErrText
		}
		return fmt.Sprintf("[%s] tool_result: %s", ts, status)
	case model.MessageError:
		return fmt.Sprintf("[%s] error: %s", ts, msg.ErrorMessage)
	default:
		return fmt.Sprintf("[%s] %s: %s", ts, msg.Type, msg.Content)
	}
}
