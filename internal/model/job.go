package model

import (
	"regexp"
	"time"
)

// JobStatus is the lifecycle state of a Job. Transitions form the DAG
// pending -> running -> (completed | failed | cancelled), per spec.md §3.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// TriggerType identifies what caused a Job to be created.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerSchedule TriggerType = "schedule"
	TriggerWebhook  TriggerType = "webhook"
	TriggerChat     TriggerType = "chat"
	TriggerFork     TriggerType = "fork"
)

// ExitReason classifies why a Job reached a terminal status.
type ExitReason string

const (
	ExitSuccess      ExitReason = "success"
	ExitEndTurn      ExitReason = "end_turn"
	ExitStopSequence ExitReason = "stop_sequence"
	ExitMaxTurns     ExitReason = "max_turns"
	ExitTimeout      ExitReason = "timeout"
	ExitInterrupt    ExitReason = "interrupt"
	ExitError        ExitReason = "error"
	ExitCancelled    ExitReason = "cancelled"
	ExitNone         ExitReason = ""
)

// JobIDPattern is the format job ids must match, per spec.md §6.
var JobIDPattern = regexp.MustCompile(`^job-\d{4}-\d{2}-\d{2}-[a-z0-9]+$`)

// Job is the persisted record of one execution. Jobs are owned exclusively
// by the Job Executor; no other component mutates a Job (spec.md §3).
type Job struct {
	ID             string      `yaml:"id" json:"id"`
	Agent          string      `yaml:"agent" json:"agent"`
	Schedule       string      `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	TriggerType    TriggerType `yaml:"trigger_type" json:"trigger_type"`
	Status         JobStatus   `yaml:"status" json:"status"`
	ExitReason     ExitReason  `yaml:"exit_reason,omitempty" json:"exit_reason,omitempty"`
	SessionID      string      `yaml:"session_id,omitempty" json:"session_id,omitempty"`
	ForkedFrom     string      `yaml:"forked_from,omitempty" json:"forked_from,omitempty"`
	StartedAt      time.Time   `yaml:"started_at" json:"started_at"`
	FinishedAt     *time.Time  `yaml:"finished_at,omitempty" json:"finished_at,omitempty"`
	DurationSecs   *float64    `yaml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	Prompt         string      `yaml:"prompt" json:"prompt"`
	Summary        string      `yaml:"summary,omitempty" json:"summary,omitempty"`
	OutputPath     string      `yaml:"output_path" json:"output_path"`
	Error          string      `yaml:"error,omitempty" json:"error,omitempty"`
	ErrorRecoverable *bool     `yaml:"error_recoverable,omitempty" json:"error_recoverable,omitempty"`
	Labels         []string    `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Terminal reports whether the job has reached one of its terminal states.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// SessionRecord tracks the multi-turn conversation identity for one agent.
type SessionRecord struct {
	AgentName  string      `yaml:"agent_name" json:"agent_name"`
	SessionID  string      `yaml:"session_id" json:"session_id"`
	CreatedAt  time.Time   `yaml:"created_at" json:"created_at"`
	LastUsedAt time.Time   `yaml:"last_used_at" json:"last_used_at"`
	JobCount   int         `yaml:"job_count" json:"job_count"`
	Mode       SessionMode `yaml:"mode" json:"mode"`
}

// LocallyValid reports whether the session is still usable as a resume
// target, per spec.md §3: `now - last_used_at <= timeout`.
func (s *SessionRecord) LocallyValid(now time.Time, timeout time.Duration) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.LastUsedAt) <= timeout
}

// FleetState is the top-level, Fleet-Manager-owned status snapshot.
type FleetState struct {
	StartedAt time.Time                `yaml:"started_at" json:"started_at"`
	Agents    map[string]AgentFleetView `yaml:"agents,omitempty" json:"agents,omitempty"`
}

// AgentFleetView is the per-agent slice of FleetState, derived from Job and
// ScheduleState data rather than stored independently.
type AgentFleetView struct {
	RunningJobs int                       `yaml:"running_jobs" json:"running_jobs"`
	Schedules   map[string]ScheduleState  `yaml:"schedules,omitempty" json:"schedules,omitempty"`
}
