// Package executor implements the Job Executor (spec.md §4.6): the single
// state machine that takes one request to run an agent and carries it
// through creation, session resolution, streaming execution, and
// finalization, writing every step to the State Store so a crash mid-job
// leaves a readable, if incomplete, record rather than silence.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jholhewres/herdctl/internal/message"
	"github.com/jholhewres/herdctl/internal/model"
	"github.com/jholhewres/herdctl/internal/runtime"
	"github.com/jholhewres/herdctl/internal/state"
)

// TerminationType reports how a cancelled job actually stopped (spec.md §5).
type TerminationType string

const (
	TerminationGraceful       TerminationType = "graceful"
	TerminationForced         TerminationType = "forced"
	TerminationAlreadyStopped TerminationType = "already_stopped"
)

// ErrJobNotRunning is returned by CancelJob when the job id is not currently
// tracked as in-flight.
var ErrJobNotRunning = errors.New("executor: job is not running")

type runningJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// RunOptions describes one job the Executor is asked to run.
type RunOptions struct {
	Agent           *model.Agent
	Prompt          string
	Trigger         model.TriggerType
	Schedule        string
	Labels          []string
	ResumeSessionID string // caller-supplied override; empty defers to persisted/fresh
	ForkFrom        string // non-empty marks this job as a fork (spec.md §4.6 open question)
}

// Executor runs jobs against a Runtime obtained from a Factory, persisting
// state through a Store. It owns every Job record exclusively — no other
// component may mutate a Job once the Executor has created it.
type Executor struct {
	store   *state.Store
	factory *runtime.Factory
	cOpts   runtime.ContainerOptions
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	active map[string]*runningJob
}

// New constructs an Executor.
func New(store *state.Store, factory *runtime.Factory, cOpts runtime.ContainerOptions, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:   store,
		factory: factory,
		cOpts:   cOpts,
		logger:  logger,
		now:     time.Now,
		active:  make(map[string]*runningJob),
	}
}

// Run executes opts end to end, returning the finalized Job record. Run
// itself never returns an error for an agent-side failure — that is
// recorded on the Job's Status/ExitReason/Error fields — only for a
// supervisor-level failure to even create or persist the job.
func (e *Executor) Run(ctx context.Context, opts RunOptions) (*model.Job, error) {
	now := e.now()
	job := &model.Job{
		ID:          NewJobID(now),
		Agent:       opts.Agent.Name,
		Schedule:    opts.Schedule,
		TriggerType: opts.Trigger,
		Status:      model.JobPending,
		StartedAt:   now,
		Prompt:      opts.Prompt,
		OutputPath:  "", // derived from store layout; not surfaced as a separate path
		ForkedFrom:  opts.ForkFrom,
		Labels:      opts.Labels,
	}
	if opts.ForkFrom != "" {
		job.TriggerType = model.TriggerFork
	}

	if err := e.store.SaveJob(job); err != nil {
		return nil, fmt.Errorf("executor: creating job %s: %w", job.ID, err)
	}

	resumeID, expired, err := resolveSession(e.store, opts.Agent, opts.ResumeSessionID, now)
	if err != nil {
		return nil, fmt.Errorf("executor: resolving session for %s: %w", job.ID, err)
	}
	if expired {
		e.appendSystemMessage(job, now, "session_expired", "session expired locally; starting a fresh session")
	}

	job.Status = model.JobRunning
	job.SessionID = resumeID
	if err := e.store.SaveJob(job); err != nil {
		return nil, fmt.Errorf("executor: marking job %s running: %w", job.ID, err)
	}

	e.logger.Info("job started", "job_id", job.ID, "agent", job.Agent, "trigger", job.TriggerType)

	runCtx, cancel := context.WithCancel(ctx)
	rj := &runningJob{cancel: cancel, done: make(chan struct{})}
	e.mu.Lock()
	e.active[job.ID] = rj
	e.mu.Unlock()
	defer func() {
		close(rj.done)
		e.mu.Lock()
		delete(e.active, job.ID)
		e.mu.Unlock()
		cancel()
	}()

	sessionID, summary, runErr := e.execute(runCtx, job, opts, resumeID)

	// One-shot server-side session-expiry retry: the resumed session no
	// longer exists upstream, so retry once against a fresh session instead
	// of failing a job outright over bookkeeping drift.
	if runErr != nil && resumeID != "" && message.IsSessionExpiry(runErr.Error()) {
		if err := e.store.DeleteSession(opts.Agent.Name); err != nil {
			e.logger.Error("failed to clear expired session", "agent", opts.Agent.Name, "error", err)
		}
		e.appendSystemMessage(job, e.now(), "session_retry", "Retrying with fresh session")
		e.logger.Warn("session expired, retrying with a fresh session", "job_id", job.ID)
		sessionID, summary, runErr = e.execute(runCtx, job, opts, "")
	}

	e.finalize(job, sessionID, summary, runErr)

	if err := e.store.SaveJob(job); err != nil {
		return job, fmt.Errorf("executor: finalizing job %s: %w", job.ID, err)
	}

	if sessionID != "" {
		mode := model.SessionAutonomous
		if opts.Trigger == model.TriggerManual {
			mode = model.SessionInteractive
		}
		if err := upsertSession(e.store, opts.Agent.Name, sessionID, e.now(), mode); err != nil {
			e.logger.Error("failed to persist session record", "agent", opts.Agent.Name, "error", err)
		}
	}

	return job, nil
}

// appendSystemMessage writes a supervisor-originated system message to the
// job's output log, the same log the Message Processor writes to, so an
// operator tailing the job sees why a session was dropped or retried
// (spec.md §4.6 steps 2 and 6).
func (e *Executor) appendSystemMessage(job *model.Job, at time.Time, subtype, content string) {
	msg := model.Message{Type: model.MessageSystem, Timestamp: at, Subtype: subtype, Content: content}
	if err := e.store.AppendJobMessage(job.Agent, job.ID, msg); err != nil {
		e.logger.Error("failed to append system message", "job_id", job.ID, "subtype", subtype, "error", err)
	}
}

// execute streams one attempt against the resolved Runtime, processing and
// persisting every message, and returns the session id observed (if any),
// the latest assistant summary, and the terminal error (nil on success).
func (e *Executor) execute(ctx context.Context, job *model.Job, opts RunOptions, resumeID string) (sessionID, summary string, runErr error) {
	rt := e.factory.ForAgent(opts.Agent, e.cOpts)

	req := runtime.Request{
		Prompt:              opts.Prompt,
		Agent:               opts.Agent,
		ResumeSessionID:     resumeID,
		Fork:                opts.ForkFrom != "",
		InjectedToolServers: opts.Agent.InjectedToolServs,
	}

	rawOut, errCh := rt.Stream(ctx, req)
	for raw := range rawOut {
		msg := message.Process(raw)
		if msg.SessionID != "" {
			sessionID = msg.SessionID
		}
		if msg.Summary != "" {
			summary = msg.Summary
		}
		if err := e.store.AppendJobMessage(job.Agent, job.ID, msg); err != nil {
			e.logger.Error("failed to append job message", "job_id", job.ID, "error", err)
		}
	}
	runErr = <-errCh
	return sessionID, summary, runErr
}

// finalize classifies the terminal state of job given the outcome of its
// last execute attempt (spec.md §4.6 step 7).
func (e *Executor) finalize(job *model.Job, sessionID, summary string, runErr error) {
	finished := e.now()
	job.FinishedAt = &finished
	duration := finished.Sub(job.StartedAt).Seconds()
	job.DurationSecs = &duration

	if sessionID != "" {
		job.SessionID = sessionID
	}
	if summary != "" {
		job.Summary = summary
	}

	if runErr == nil {
		job.Status = model.JobCompleted
		job.ExitReason = model.ExitSuccess
		return
	}

	job.Error = runErr.Error()
	recoverable := message.IsRecoverable(runErr.Error())
	job.ErrorRecoverable = &recoverable

	if extErr, ok := runErr.(*runtime.ExternalError); ok && extErr.Kind == "CANCELLED" {
		job.Status = model.JobCancelled
		job.ExitReason = model.ExitCancelled
		return
	}

	job.Status = model.JobFailed
	job.ExitReason = message.ClassifyExitReason(false, runErr.Error())
}

// CancelJob signals jobID's cancellation token and waits up to timeout for
// it to reach a terminal status, escalating the reported outcome from
// graceful to forced if the deadline passes first (spec.md §5). The
// underlying Runtime implementations (ExternalRuntime, ContainerRunner) tie
// process/container lifetime directly to ctx, so cancellation here always
// reaches the child process or container; "forced" only reports that the
// job outlived the caller's patience, not that a second signal was sent.
func (e *Executor) CancelJob(jobID string, timeout time.Duration) (TerminationType, error) {
	e.mu.Lock()
	rj, ok := e.active[jobID]
	e.mu.Unlock()
	if !ok {
		return TerminationAlreadyStopped, ErrJobNotRunning
	}

	select {
	case <-rj.done:
		return TerminationAlreadyStopped, nil
	default:
	}

	rj.cancel()

	select {
	case <-rj.done:
		return TerminationGraceful, nil
	case <-time.After(timeout):
		return TerminationForced, nil
	}
}
