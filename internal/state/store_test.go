package state

import (
	"testing"
	"time"

	"github.com/jholhewres/herdctl/internal/model"
)

func TestStoreSaveLoadJob(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	job := &model.Job{
		ID:        "job-2026-07-31-abc123",
		Agent:     "reviewer",
		Status:    model.JobRunning,
		StartedAt: time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC),
		Prompt:    "review the open PRs",
	}

	if err := s.SaveJob(job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, ok, err := s.LoadJob("reviewer", job.ID)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if !ok {
		t.Fatalf("LoadJob: expected ok=true")
	}
	if got.ID != job.ID || got.Status != model.JobRunning {
		t.Fatalf("LoadJob: got %+v", got)
	}
}

func TestStoreListJobsOrdersMostRecentFirst(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	base := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"job-a", "job-b", "job-c"} {
		job := &model.Job{
			ID:        id,
			Agent:     "reviewer",
			Status:    model.JobCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveJob(job); err != nil {
			t.Fatalf("SaveJob(%s): %v", id, err)
		}
	}

	jobs, err := s.ListJobs("reviewer")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	if jobs[0].ID != "job-c" || jobs[2].ID != "job-a" {
		t.Fatalf("unexpected order: %v, %v, %v", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}
}

func TestStoreListJobsEmptyWhenNoneRecorded(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	jobs, err := s.ListJobs("nobody")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0", len(jobs))
	}
}

func TestStoreJobLogAppendAndRead(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	msg1 := model.Message{Type: model.MessageSystem, Subtype: "init", SessionID: "sess-1"}
	msg2 := model.Message{Type: model.MessageAssistant, Content: "done"}

	if err := s.AppendJobMessage("reviewer", "job-1", msg1); err != nil {
		t.Fatalf("AppendJobMessage 1: %v", err)
	}
	if err := s.AppendJobMessage("reviewer", "job-1", msg2); err != nil {
		t.Fatalf("AppendJobMessage 2: %v", err)
	}

	msgs, err := s.ReadJobLog("reviewer", "job-1", nil)
	if err != nil {
		t.Fatalf("ReadJobLog: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].SessionID != "sess-1" || msgs[1].Content != "done" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestStoreScheduleDefaultsToIdle(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	st, err := s.LoadSchedule("reviewer", "nightly")
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if st.Status != model.ScheduleIdle {
		t.Fatalf("got status %q, want idle", st.Status)
	}
}

func TestStoreSessionRoundTrip(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	sess := &model.SessionRecord{
		AgentName: "reviewer",
		SessionID: "sess-abc",
		JobCount:  3,
		Mode:      model.SessionAutonomous,
	}
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, ok, err := s.LoadSession("reviewer")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if !ok || got.SessionID != "sess-abc" || got.JobCount != 3 {
		t.Fatalf("LoadSession: got %+v, ok=%v", got, ok)
	}

	if err := s.DeleteSession("reviewer"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	_, ok, err = s.LoadSession("reviewer")
	if err != nil {
		t.Fatalf("LoadSession after delete: %v", err)
	}
	if ok {
		t.Fatalf("LoadSession: expected ok=false after delete")
	}
}
