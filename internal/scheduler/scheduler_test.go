package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jholhewres/herdctl/internal/executor"
	"github.com/jholhewres/herdctl/internal/model"
	"github.com/jholhewres/herdctl/internal/runtime"
	"github.com/jholhewres/herdctl/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerFiresIntervalScheduleAndCompletesJob(t *testing.T) {
	t.Parallel()

	var runs int64
	backend := func(ctx context.Context, req runtime.Request) (<-chan any, <-chan error) {
		atomic.AddInt64(&runs, 1)
		out := make(chan any, 1)
		errCh := make(chan error, 1)
		out <- map[string]any{"type": "system", "subtype": "init", "session_id": "sess"}
		close(out)
		errCh <- nil
		close(errCh)
		return out, errCh
	}

	store := state.New(t.TempDir())
	direct := runtime.NewDirectRuntime(backend)
	factory := runtime.NewFactory(direct, direct)
	exec := executor.New(store, factory, runtime.ContainerOptions{}, discardLogger())

	sched := New(store, exec, discardLogger())
	sched.SetPollInterval(20 * time.Millisecond)

	agent := &model.Agent{
		Name:    "poller",
		Runtime: model.RuntimeDirect,
		Schedules: []model.Schedule{
			{Name: "frequent", Type: model.ScheduleInterval, Interval: "1s"},
		},
	}
	sched.SetAgents([]*model.Agent{agent})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&runs) == 0 {
		select {
		case <-deadline:
			t.Fatalf("schedule never fired within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	jobs, err := store.ListJobs("poller")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) == 0 {
		t.Fatalf("expected at least one persisted job")
	}
	if jobs[0].Status != model.JobCompleted {
		t.Fatalf("got job status %q, want completed", jobs[0].Status)
	}
}

func TestSchedulerRecoversFromPanickingJob(t *testing.T) {
	t.Parallel()

	backend := func(ctx context.Context, req runtime.Request) (<-chan any, <-chan error) {
		panic("boom")
	}

	store := state.New(t.TempDir())
	direct := runtime.NewDirectRuntime(backend)
	factory := runtime.NewFactory(direct, direct)
	exec := executor.New(store, factory, runtime.ContainerOptions{}, discardLogger())

	sched := New(store, exec, discardLogger())
	sched.SetPollInterval(20 * time.Millisecond)

	agent := &model.Agent{
		Name:    "flaky",
		Runtime: model.RuntimeDirect,
		Schedules: []model.Schedule{
			{Name: "panics", Type: model.ScheduleInterval, Interval: "1s"},
		},
	}
	sched.SetAgents([]*model.Agent{agent})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	// Give the poll loop a few ticks to trigger and recover from the panic.
	time.Sleep(200 * time.Millisecond)

	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v (scheduler should survive a panicking job)", err)
	}

	st, err := store.LoadSchedule("flaky", "panics")
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if st.Status != model.ScheduleIdle {
		t.Fatalf("got schedule status %q after recovery, want idle", st.Status)
	}
	if st.LastError == "" {
		t.Fatalf("expected recovered panic to be recorded as LastError")
	}
}

func TestSchedulerSetAgentsHotSwap(t *testing.T) {
	t.Parallel()

	store := state.New(t.TempDir())
	direct := runtime.NewDirectRuntime(func(ctx context.Context, req runtime.Request) (<-chan any, <-chan error) {
		out := make(chan any)
		errCh := make(chan error, 1)
		close(out)
		errCh <- nil
		close(errCh)
		return out, errCh
	})
	factory := runtime.NewFactory(direct, direct)
	exec := executor.New(store, factory, runtime.ContainerOptions{}, discardLogger())

	sched := New(store, exec, discardLogger())
	if len(sched.agents) != 0 {
		t.Fatalf("expected no agents registered initially")
	}

	agentA := &model.Agent{Name: "a"}
	agentB := &model.Agent{Name: "b"}
	sched.SetAgents([]*model.Agent{agentA})
	if _, ok := sched.agents["a"]; !ok {
		t.Fatalf("expected agent a to be registered")
	}

	sched.SetAgents([]*model.Agent{agentB})
	if _, ok := sched.agents["a"]; ok {
		t.Fatalf("expected agent a to be dropped after hot swap")
	}
	if _, ok := sched.agents["b"]; !ok {
		t.Fatalf("expected agent b to be registered after hot swap")
	}
}

func TestSchedulerStopTimesOutOnSlowJob(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	backend := func(ctx context.Context, req runtime.Request) (<-chan any, <-chan error) {
		out := make(chan any)
		errCh := make(chan error, 1)
		go func() {
			<-release
			close(out)
			errCh <- nil
			close(errCh)
		}()
		return out, errCh
	}

	store := state.New(t.TempDir())
	direct := runtime.NewDirectRuntime(backend)
	factory := runtime.NewFactory(direct, direct)
	exec := executor.New(store, factory, runtime.ContainerOptions{}, discardLogger())

	sched := New(store, exec, discardLogger())
	sched.SetPollInterval(10 * time.Millisecond)
	sched.SetShutdownTimeout(50 * time.Millisecond)

	agent := &model.Agent{
		Name:    "slow",
		Runtime: model.RuntimeDirect,
		Schedules: []model.Schedule{
			{Name: "slow-job", Type: model.ScheduleInterval, Interval: "1s"},
		},
	}
	sched.SetAgents([]*model.Agent{agent})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	time.Sleep(50 * time.Millisecond)

	err := sched.Stop()
	close(release)

	var timeoutErr *ShutdownTimeoutError
	if err == nil {
		t.Fatalf("expected a shutdown timeout error")
	}
	if !errorsAs(err, &timeoutErr) {
		t.Fatalf("got error %v, want *ShutdownTimeoutError", err)
	}
	if timeoutErr.StillRunning < 1 {
		t.Fatalf("got StillRunning=%d, want >= 1", timeoutErr.StillRunning)
	}
}

func errorsAs(err error, target **ShutdownTimeoutError) bool {
	e, ok := err.(*ShutdownTimeoutError)
	if !ok {
		return false
	}
	*target = e
	return true
}
