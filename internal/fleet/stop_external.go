package fleet

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/jholhewres/herdctl/internal/state"
)

// ErrNotRunning is returned by StopExternal when no live supervisor process
// is recorded at the pid file.
var ErrNotRunning = fmt.Errorf("fleet: no running supervisor found")

// pollInterval is how often StopExternal checks whether the signalled
// process has exited.
const pollInterval = 100 * time.Millisecond

// StopExternal asks a separately-running supervisor process (identified by
// its pid file) to shut down: it sends the graceful termination signal and
// waits up to timeout for the process to exit, escalating to SIGKILL if it
// has not (spec.md §6's control-signal contract, exercised from outside the
// process rather than via the in-process signal.Notify path in Run).
func StopExternal(pidPath string, timeout time.Duration) error {
	pid, ok, err := state.ReadPID(pidPath)
	if err != nil {
		return err
	}
	if !ok || !state.ProcessAlive(pid) {
		_ = state.RemovePID(pidPath)
		return ErrNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("fleet: locating process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("fleet: sending SIGTERM to %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !state.ProcessAlive(pid) {
			return nil
		}
		time.Sleep(pollInterval)
	}

	if !state.ProcessAlive(pid) {
		return nil
	}
	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("fleet: sending SIGKILL to %d: %w", pid, err)
	}
	return nil
}
