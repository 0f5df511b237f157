package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jholhewres/herdctl/internal/model"
)

// readDirTolerant lists dir's entries, returning an empty slice (not an
// error) when dir does not exist yet — no jobs/schedules recorded is a
// valid, common starting state.
func readDirTolerant(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &jobDirError{dir: dir, err: err}
	}
	return entries, nil
}

// Store is the on-disk layout root for the fleet supervisor's state: one
// directory tree under which jobs, schedule state, sessions, and the pid
// file all live as individually atomic files (spec.md §4.1).
type Store struct {
	root string
}

// New returns a Store rooted at dir. It does not create dir; the first
// write does (Write/AppendLine create parent directories as needed).
func New(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) path(parts ...string) string {
	all := append([]string{s.root}, parts...)
	return filepath.Join(all...)
}

// PIDPath is the herdctl.pid artifact path (spec.md §6).
func (s *Store) PIDPath() string { return s.path("herdctl.pid") }

func (s *Store) jobPath(agent, jobID string) string {
	return s.path("jobs", agent, jobID+".json")
}

func (s *Store) jobLogPath(agent, jobID string) string {
	return s.path("jobs", agent, jobID+".jsonl")
}

func (s *Store) schedulePath(agent, schedule string) string {
	return s.path("schedules", agent, schedule+".json")
}

func (s *Store) sessionPath(agent string) string {
	return s.path("sessions", agent+".json")
}

// SaveJob persists job's metadata record (not its log) atomically.
func (s *Store) SaveJob(job *model.Job) error {
	return WriteJSON(s.jobPath(job.Agent, job.ID), job)
}

// LoadJob returns the metadata record for agent/jobID, or ok=false if it has
// never been created.
func (s *Store) LoadJob(agent, jobID string) (*model.Job, bool, error) {
	job, ok, err := ReadJSON[model.Job](s.jobPath(agent, jobID))
	if err != nil || !ok {
		return nil, ok, err
	}
	return &job, true, nil
}

// ListJobs returns every job recorded for agent, most recently started
// first. agent == "" lists across all agents.
func (s *Store) ListJobs(agent string) ([]*model.Job, error) {
	var dirs []string
	if agent != "" {
		dirs = []string{s.path("jobs", agent)}
	} else {
		entries, err := listDirs(s.path("jobs"))
		if err != nil {
			return nil, err
		}
		dirs = entries
	}

	var jobs []*model.Job
	for _, dir := range dirs {
		files, err := listJSONFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			job, ok, err := ReadJSON[model.Job](f)
			if err != nil {
				return nil, err
			}
			if ok {
				j := job
				jobs = append(jobs, &j)
			}
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs, nil
}

// AppendJobMessage appends one processed message to a job's output log.
func (s *Store) AppendJobMessage(agent, jobID string, msg model.Message) error {
	return AppendJSON(s.jobLogPath(agent, jobID), msg)
}

// ReadJobLog decodes a job's full output log, tolerating malformed trailing
// lines left by a crash mid-write.
func (s *Store) ReadJobLog(agent, jobID string, onBadLine func([]byte, error)) ([]model.Message, error) {
	return ReadJSONLines[model.Message](s.jobLogPath(agent, jobID), onBadLine)
}

// SaveSchedule persists the run-state record for one (agent, schedule) pair.
func (s *Store) SaveSchedule(st *model.ScheduleState) error {
	return WriteJSON(s.schedulePath(st.Agent, st.Schedule), st)
}

// LoadSchedule returns the run-state record for (agent, schedule), or a
// freshly-idle record if none has been recorded yet.
func (s *Store) LoadSchedule(agent, schedule string) (*model.ScheduleState, error) {
	st, ok, err := ReadJSON[model.ScheduleState](s.schedulePath(agent, schedule))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &model.ScheduleState{Agent: agent, Schedule: schedule, Status: model.ScheduleIdle}, nil
	}
	return &st, nil
}

// SaveSession persists an agent's current session record.
func (s *Store) SaveSession(sess *model.SessionRecord) error {
	return WriteJSON(s.sessionPath(sess.AgentName), sess)
}

// LoadSession returns the persisted session for agent, or ok=false if none
// has been created.
func (s *Store) LoadSession(agent string) (*model.SessionRecord, bool, error) {
	sess, ok, err := ReadJSON[model.SessionRecord](s.sessionPath(agent))
	if err != nil || !ok {
		return nil, ok, err
	}
	return &sess, true, nil
}

// DeleteSession removes a persisted session record, tolerating absence.
func (s *Store) DeleteSession(agent string) error {
	return Remove(s.sessionPath(agent))
}

func listDirs(root string) ([]string, error) {
	entries, err := readDirTolerant(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs, nil
}

func listJSONFiles(dir string) ([]string, error) {
	entries, err := readDirTolerant(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".json" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// jobDirError wraps a directory listing failure with enough context to
// diagnose which agent's job directory triggered it.
type jobDirError struct {
	dir string
	err error
}

func (e *jobDirError) Error() string {
	return fmt.Sprintf("state: list %s: %v", e.dir, e.err)
}
func (e *jobDirError) Unwrap() error { return e.err }
