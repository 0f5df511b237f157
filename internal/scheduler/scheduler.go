package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jholhewres/herdctl/internal/executor"
	"github.com/jholhewres/herdctl/internal/model"
	"github.com/jholhewres/herdctl/internal/state"
)

// ShutdownTimeoutError reports that Stop's deadline elapsed with jobs still
// running; the scheduler stops polling regardless, but callers can surface
// this as a degraded shutdown rather than a clean one.
type ShutdownTimeoutError struct {
	StillRunning int
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("scheduler: shutdown timed out with %d job(s) still running", e.StillRunning)
}

// PollInterval is how often the Scheduler re-evaluates every schedule.
const PollInterval = 5 * time.Second

// DefaultShutdownTimeout bounds how long Stop waits for in-flight jobs.
const DefaultShutdownTimeout = 30 * time.Second

// Scheduler polls every agent's driven schedules and, when one is due,
// hands it to the Job Executor in its own goroutine — guarding against
// duplicate concurrent fires and absorbing a single job's panic so it
// cannot take the rest of the fleet down with it (spec.md §4.8).
type Scheduler struct {
	store  *state.Store
	exec   *executor.Executor
	logger *slog.Logger

	mu      sync.Mutex
	agents  map[string]*model.Agent
	running map[string]int // agent name -> count of in-flight jobs
	active  map[string]bool // "agent/schedule" -> currently running

	shutdownTimeout time.Duration
	pollInterval    time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New constructs a Scheduler. Agents are registered via SetAgents before or
// after Start; Start begins polling immediately with whatever is set.
func New(store *state.Store, exec *executor.Executor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:           store,
		exec:            exec,
		logger:          logger,
		agents:          make(map[string]*model.Agent),
		running:         make(map[string]int),
		active:          make(map[string]bool),
		shutdownTimeout: DefaultShutdownTimeout,
		pollInterval:    PollInterval,
	}
}

// SetPollInterval overrides the default poll interval; intended for tests
// that need the loop to tick faster than production's 5 seconds.
func (s *Scheduler) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

// SetShutdownTimeout overrides the default shutdown timeout.
func (s *Scheduler) SetShutdownTimeout(d time.Duration) {
	s.shutdownTimeout = d
}

// SetAgents hot-swaps the full set of agents the scheduler evaluates,
// without needing a restart (spec.md §4.8).
func (s *Scheduler) SetAgents(agents []*model.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]*model.Agent, len(agents))
	for _, a := range agents {
		next[a.Name] = a
	}
	s.agents = next
}

// Start begins the polling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.stopCh)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler poll loop stopping")
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce evaluates every driven schedule of every registered agent and
// fires whichever ones are due.
func (s *Scheduler) pollOnce(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	agents := make([]*model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	s.mu.Unlock()

	for _, agent := range agents {
		for _, sched := range agent.Schedules {
			if !sched.Driven() {
				continue
			}
			s.evaluate(ctx, now, agent, sched)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context, now time.Time, agent *model.Agent, sched model.Schedule) {
	st, err := s.store.LoadSchedule(agent.Name, sched.Name)
	if err != nil {
		s.logger.Error("failed to load schedule state", "agent", agent.Name, "schedule", sched.Name, "error", err)
		return
	}

	key := agent.Name + "/" + sched.Name
	s.mu.Lock()
	running := s.running[agent.Name]
	runningForSchedule := 0
	if s.active[key] {
		runningForSchedule = 1
	}
	s.mu.Unlock()

	result := Check(now, agent.Name, sched, st, running, runningForSchedule, agent.EffectiveMaxConcurrent())
	if !result.Due {
		if result.Skip != SkipNotDue {
			s.logger.Debug("schedule skipped", "agent", agent.Name, "schedule", sched.Name, "reason", result.Skip)
		}
		return
	}

	s.mu.Lock()
	s.running[agent.Name]++
	s.active[key] = true
	s.mu.Unlock()

	st.LastRunAt = &now
	st.Status = model.ScheduleRunning
	if err := s.store.SaveSchedule(st); err != nil {
		s.logger.Error("failed to persist schedule run state", "agent", agent.Name, "schedule", sched.Name, "error", err)
	}

	s.wg.Add(1)
	go s.fire(ctx, agent, sched, key)
}

// fire runs one schedule's job, recovering from any panic so a single bad
// job can never take the poll loop down with it (grounded in the teacher's
// executeJob deferred recover()).
func (s *Scheduler) fire(ctx context.Context, agent *model.Agent, sched model.Schedule, key string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running[agent.Name]--
		delete(s.active, key)
		s.mu.Unlock()

		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "agent", agent.Name, "schedule", sched.Name, "panic", r)
			s.recordFailure(agent.Name, sched.Name, fmt.Sprintf("panic: %v", r))
		}
	}()

	job, err := s.exec.Run(ctx, executorRunOptions(agent, sched))
	st, loadErr := s.store.LoadSchedule(agent.Name, sched.Name)
	if loadErr != nil {
		s.logger.Error("failed to reload schedule state after run", "agent", agent.Name, "schedule", sched.Name, "error", loadErr)
		return
	}
	st.Status = model.ScheduleIdle
	if err != nil {
		st.LastError = err.Error()
		s.logger.Error("scheduled job failed to execute", "agent", agent.Name, "schedule", sched.Name, "error", err)
	} else if job.Status == model.JobFailed {
		st.LastError = job.Error
	} else {
		st.LastError = ""
	}
	if saveErr := s.store.SaveSchedule(st); saveErr != nil {
		s.logger.Error("failed to persist schedule state after run", "agent", agent.Name, "schedule", sched.Name, "error", saveErr)
	}
}

func (s *Scheduler) recordFailure(agentName, scheduleName, errText string) {
	st, err := s.store.LoadSchedule(agentName, scheduleName)
	if err != nil {
		return
	}
	st.Status = model.ScheduleIdle
	st.LastError = errText
	_ = s.store.SaveSchedule(st)
}

func executorRunOptions(agent *model.Agent, sched model.Schedule) executor.RunOptions {
	return executor.RunOptions{
		Agent:    agent,
		Prompt:   sched.Prompt,
		Trigger:  model.TriggerSchedule,
		Schedule: sched.Name,
		Labels:   sched.Labels,
	}
}

// Stop halts the poll loop and waits up to the shutdown timeout for
// in-flight jobs to finish, returning a *ShutdownTimeoutError if they do
// not (spec.md §4.8).
func (s *Scheduler) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stopCh != nil {
		<-s.stopCh
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped cleanly")
		return nil
	case <-time.After(s.shutdownTimeout):
		s.mu.Lock()
		stillRunning := 0
		for _, n := range s.running {
			stillRunning += n
		}
		s.mu.Unlock()
		s.logger.Warn("scheduler shutdown timed out", "still_running", stillRunning)
		return &ShutdownTimeoutError{StillRunning: stillRunning}
	}
}
