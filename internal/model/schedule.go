package model

import "time"

// ScheduleType is the variant tag of a Schedule's trigger rule.
type ScheduleType string

const (
	ScheduleInterval ScheduleType = "interval"
	ScheduleCron     ScheduleType = "cron"
	ScheduleWebhook  ScheduleType = "webhook"
	ScheduleChat     ScheduleType = "chat"
)

// ScheduleStatus is the persisted run status of a (agent, schedule) pair.
type ScheduleStatus string

const (
	ScheduleIdle     ScheduleStatus = "idle"
	ScheduleRunning  ScheduleStatus = "running"
	ScheduleDisabled ScheduleStatus = "disabled"
)

// WorkSourceRef points at an external queue a schedule draws work items from.
// The work source itself lives outside the core (spec.md glossary); this is
// just enough to carry a reference through to the Schedule Runner.
type WorkSourceRef struct {
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Ref  string `yaml:"ref,omitempty" json:"ref,omitempty"`
}

// Schedule is a named trigger rule owned by an Agent.
type Schedule struct {
	Name     string        `yaml:"name" json:"name"`
	Type     ScheduleType  `yaml:"type" json:"type"`
	Interval string        `yaml:"interval,omitempty" json:"interval,omitempty"`
	Cron     string        `yaml:"cron,omitempty" json:"cron,omitempty"`
	Jitter   int           `yaml:"jitter_percent,omitempty" json:"jitter_percent,omitempty"`
	Prompt   string        `yaml:"prompt" json:"prompt"`
	WorkSrc  *WorkSourceRef `yaml:"work_source,omitempty" json:"work_source,omitempty"`

	// Stagger enables the deterministic top-of-hour jitter described in
	// SPEC_FULL.md §3 (grounded in the teacher's resolveStableCronOffset).
	// Off unless set to true in the schedule's config; has no effect on
	// interval schedules, which already carry Jitter.
	Stagger bool `yaml:"stagger,omitempty" json:"stagger,omitempty"`

	// Labels are free-form tags carried onto every Job this schedule creates.
	Labels []string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Driven reports whether the scheduler loop evaluates this schedule at all;
// webhook/chat schedules are inert to the scheduler (spec.md §3).
func (s Schedule) Driven() bool {
	return s.Type == ScheduleInterval || s.Type == ScheduleCron
}

// ScheduleState is the persisted run status of one (agent, schedule) pair.
type ScheduleState struct {
	Agent      string     `yaml:"agent" json:"agent"`
	Schedule   string     `yaml:"schedule" json:"schedule"`
	Status     ScheduleStatus `yaml:"status" json:"status"`
	LastRunAt  *time.Time `yaml:"last_run_at,omitempty" json:"last_run_at,omitempty"`
	NextRunAt  *time.Time `yaml:"next_run_at,omitempty" json:"next_run_at,omitempty"`
	LastError  string     `yaml:"last_error,omitempty" json:"last_error,omitempty"`
}
