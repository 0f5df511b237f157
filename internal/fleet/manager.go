// Package fleet implements the Fleet Manager facade (spec.md §4.9): a thin
// composition of the State Store, Scheduler, and Job Executor for the
// external CLI. It owns the PID file, the supervisor's graceful-shutdown
// signal handling, and the read-only status/job/log views.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jholhewres/herdctl/internal/executor"
	"github.com/jholhewres/herdctl/internal/model"
	"github.com/jholhewres/herdctl/internal/scheduler"
	"github.com/jholhewres/herdctl/internal/state"
)

// ErrAlreadyRunning is returned by Run when the pid file names a process
// that is still alive.
var ErrAlreadyRunning = errors.New("fleet: supervisor already running")

// Manager composes the supervisor's three core components for the CLI.
type Manager struct {
	store     *state.Store
	scheduler *scheduler.Scheduler
	executor  *executor.Executor
	logger    *slog.Logger

	startedAt time.Time

	mu       sync.Mutex
	stopping bool
}

// New constructs a Manager over an already-wired Store/Scheduler/Executor.
func New(store *state.Store, sched *scheduler.Scheduler, exec *executor.Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, scheduler: sched, executor: exec, logger: logger}
}

// Run writes the PID file, starts the scheduler against agents, and blocks
// until a termination signal arrives or ctx is cancelled — then performs a
// graceful shutdown. A second termination signal received while already
// stopping is ignored (spec.md §6).
func (m *Manager) Run(ctx context.Context, agents []*model.Agent) error {
	if pid, ok, _ := state.ReadPID(m.store.PIDPath()); ok && state.ProcessAlive(pid) {
		return ErrAlreadyRunning
	}
	if err := state.WritePID(m.store.PIDPath(), os.Getpid()); err != nil {
		return fmt.Errorf("fleet: writing pid file: %w", err)
	}
	defer func() {
		if err := state.RemovePID(m.store.PIDPath()); err != nil {
			m.logger.Error("failed to remove pid file", "error", err)
		}
	}()

	m.startedAt = time.Now()
	m.scheduler.SetAgents(agents)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.scheduler.Start(runCtx)

	m.logger.Info("fleet manager started", "pid", os.Getpid(), "agents", len(agents))

	select {
	case <-sigCh:
		m.logger.Info("termination signal received, shutting down")
	case <-ctx.Done():
		m.logger.Info("context cancelled, shutting down")
	}

	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()

	// A second signal while already stopping is a no-op: keep draining the
	// channel so signal.Notify doesn't block the sender, but do not act on it.
	go func() {
		for range sigCh {
		}
	}()

	cancel()
	return m.scheduler.Stop()
}

// SetAgents hot-swaps the running supervisor's agent set (spec.md §4.8).
func (m *Manager) SetAgents(agents []*model.Agent) {
	m.scheduler.SetAgents(agents)
}

// Executor exposes the underlying Job Executor for callers that need to run
// a one-off job outside the schedule loop (e.g. the CLI's `trigger`
// command).
func (m *Manager) Executor() *executor.Executor {
	return m.executor
}

// CancelJob requests termination of a running job, escalating from graceful
// to forced if it outlives timeout (spec.md §5).
func (m *Manager) CancelJob(jobID string, timeout time.Duration) (executor.TerminationType, error) {
	return m.executor.CancelJob(jobID, timeout)
}
