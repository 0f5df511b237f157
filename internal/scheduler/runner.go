// Package scheduler implements the Schedule Runner and Scheduler
// (spec.md §4.7/§4.8): a polling loop that decides, for every (agent,
// schedule) pair, whether it is due and — if so — hands it to the Job
// Executor, guarding against duplicate concurrent fires, over-eager
// re-fires on the same second, and a shutdown that outlives its timeout.
package scheduler

import (
	"time"

	"github.com/jholhewres/herdctl/internal/model"
	"github.com/jholhewres/herdctl/internal/trigger"
)

// SkipReason enumerates why a due-check declined to fire a schedule.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipNotDue          SkipReason = "not_due"
	SkipAlreadyRunning  SkipReason = "already_running"
	SkipConcurrencyCap  SkipReason = "concurrency_capped"
	SkipTooRecent       SkipReason = "too_recent"
	SkipDisabled        SkipReason = "disabled"
	SkipNotDriven       SkipReason = "not_driven"
)

// minRefireInterval is the spin-loop guard: a schedule that last fired less
// than this long ago is skipped even if its own trigger says it is due
// again, the way the teacher's minJobInterval absorbs a cron tick landing
// on the same second as the schedule's own next-run boundary.
const minRefireInterval = 2 * time.Second

// CheckResult is the outcome of evaluating one (agent, schedule) pair.
type CheckResult struct {
	Agent     string
	Schedule  string
	Due       bool
	Skip      SkipReason
	NextRunAt time.Time
}

// Check decides whether sched is due to fire right now, given its
// persisted run state and how many instances of this agent are already
// running (for the agent-level concurrency cap).
func Check(now time.Time, agentName string, sched model.Schedule, st *model.ScheduleState, running, runningForSchedule, maxConcurrent int) CheckResult {
	res := CheckResult{Agent: agentName, Schedule: sched.Name}

	if !sched.Driven() {
		res.Skip = SkipNotDriven
		return res
	}
	if st.Status == model.ScheduleDisabled {
		res.Skip = SkipDisabled
		return res
	}
	if runningForSchedule > 0 {
		res.Skip = SkipAlreadyRunning
		return res
	}
	if maxConcurrent > 0 && running >= maxConcurrent {
		res.Skip = SkipConcurrencyCap
		return res
	}
	if st.LastRunAt != nil && now.Sub(*st.LastRunAt) < minRefireInterval {
		res.Skip = SkipTooRecent
		return res
	}

	next, due, err := nextRun(now, sched, st)
	if err != nil {
		res.Skip = SkipNotDue
		return res
	}
	res.NextRunAt = next
	if !due {
		res.Skip = SkipNotDue
		return res
	}

	res.Due = true
	return res
}

// nextRun computes the next fire time for sched and whether it is due at
// now, dispatching on schedule type and applying stagger where configured.
func nextRun(now time.Time, sched model.Schedule, st *model.ScheduleState) (time.Time, bool, error) {
	var last time.Time
	if st.LastRunAt != nil {
		last = *st.LastRunAt
	}

	switch sched.Type {
	case model.ScheduleInterval:
		d, err := trigger.ParseInterval(sched.Interval)
		if err != nil {
			return time.Time{}, false, err
		}
		next := trigger.NextIntervalTrigger(now, last, d, sched.Jitter)
		return next, !next.After(now), nil

	case model.ScheduleCron:
		after := last
		if after.IsZero() {
			// Never run before: treat "now minus a tick" as the baseline so a
			// schedule due exactly at startup fires instead of waiting a
			// full period.
			after = now.Add(-time.Second)
		}
		next, err := trigger.NextCronTrigger(sched.Cron, after)
		if err != nil {
			return time.Time{}, false, err
		}
		stagger := trigger.ResolveStagger(sched.Name, sched.Cron, sched.Stagger)
		next = next.Add(stagger)
		return next, !next.After(now), nil

	default:
		return time.Time{}, false, nil
	}
}
