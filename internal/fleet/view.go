package fleet

import (
	"github.com/jholhewres/herdctl/internal/model"
)

// Status builds the read-only fleet status view by consulting persisted job
// and schedule state for agents (spec.md §4.9c). It does not require the
// supervisor to be running: a stopped fleet's last-known state is still
// readable.
func (m *Manager) Status(agents []*model.Agent) (*model.FleetState, error) {
	view := &model.FleetState{
		StartedAt: m.startedAt,
		Agents:    make(map[string]model.AgentFleetView, len(agents)),
	}

	for _, agent := range agents {
		jobs, err := m.store.ListJobs(agent.Name)
		if err != nil {
			return nil, err
		}
		running := 0
		for _, j := range jobs {
			if j.Status == model.JobRunning {
				running++
			}
		}

		schedules := make(map[string]model.ScheduleState, len(agent.Schedules))
		for _, sched := range agent.Schedules {
			st, err := m.store.LoadSchedule(agent.Name, sched.Name)
			if err != nil {
				return nil, err
			}
			schedules[sched.Name] = *st
		}

		view.Agents[agent.Name] = model.AgentFleetView{
			RunningJobs: running,
			Schedules:   schedules,
		}
	}

	return view, nil
}

// Jobs returns every recorded job for agent, most recent first. agent == ""
// lists across all agents.
func (m *Manager) Jobs(agent string) ([]*model.Job, error) {
	return m.store.ListJobs(agent)
}

// JobDetail returns one job's record, or ok=false if it has never been
// created.
func (m *Manager) JobDetail(agent, jobID string) (*model.Job, bool, error) {
	return m.store.LoadJob(agent, jobID)
}

// JobLog returns the full decoded message log for a job, tolerating
// malformed trailing lines left by a crash mid-write.
func (m *Manager) JobLog(agent, jobID string, onBadLine func([]byte, error)) ([]model.Message, error) {
	return m.store.ReadJobLog(agent, jobID, onBadLine)
}
