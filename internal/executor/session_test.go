package executor

import (
	"testing"
	"time"

	"github.com/jholhewres/herdctl/internal/model"
	"github.com/jholhewres/herdctl/internal/state"
)

func TestResolveSessionNoRecordPassesCallerIDThrough(t *testing.T) {
	t.Parallel()

	store := state.New(t.TempDir())
	agent := &model.Agent{Name: "reviewer"}

	id, expired, err := resolveSession(store, agent, "caller-supplied", time.Now())
	if err != nil {
		t.Fatalf("resolveSession: %v", err)
	}
	if expired {
		t.Fatalf("expected expired=false with no persisted record")
	}
	if id != "caller-supplied" {
		t.Fatalf("got id %q, want caller-supplied passed through verbatim", id)
	}
}

func TestResolveSessionCallerIDDiffersFromRecordPassesThrough(t *testing.T) {
	t.Parallel()

	store := state.New(t.TempDir())
	agent := &model.Agent{Name: "reviewer", SessionTimeout: time.Hour}
	now := time.Now()
	if err := store.SaveSession(&model.SessionRecord{AgentName: "reviewer", SessionID: "persisted", LastUsedAt: now}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	id, expired, err := resolveSession(store, agent, "different-caller-id", now)
	if err != nil {
		t.Fatalf("resolveSession: %v", err)
	}
	if expired {
		t.Fatalf("expected expired=false")
	}
	if id != "different-caller-id" {
		t.Fatalf("got id %q, want the caller's id to win", id)
	}
	sess, ok, err := store.LoadSession("reviewer")
	if err != nil || !ok {
		t.Fatalf("expected persisted record to survive untouched, ok=%v err=%v", ok, err)
	}
	if sess.SessionID != "persisted" {
		t.Fatalf("persisted record mutated unexpectedly: %+v", sess)
	}
}

func TestResolveSessionMatchingExpiredClearsAndWithholds(t *testing.T) {
	t.Parallel()

	store := state.New(t.TempDir())
	agent := &model.Agent{Name: "reviewer", SessionTimeout: time.Minute}
	now := time.Now()
	stale := now.Add(-time.Hour)
	if err := store.SaveSession(&model.SessionRecord{AgentName: "reviewer", SessionID: "sess-1", LastUsedAt: stale}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	id, expired, err := resolveSession(store, agent, "sess-1", now)
	if err != nil {
		t.Fatalf("resolveSession: %v", err)
	}
	if !expired {
		t.Fatalf("expected expired=true for a session past its timeout")
	}
	if id != "" {
		t.Fatalf("got id %q, want empty (no resume on expiry)", id)
	}
	if _, ok, err := store.LoadSession("reviewer"); err != nil || ok {
		t.Fatalf("expected the expired record to be cleared, ok=%v err=%v", ok, err)
	}
}

func TestResolveSessionImplicitExpiredClearsAndWithholds(t *testing.T) {
	t.Parallel()

	store := state.New(t.TempDir())
	agent := &model.Agent{Name: "reviewer", SessionTimeout: time.Minute}
	now := time.Now()
	stale := now.Add(-time.Hour)
	if err := store.SaveSession(&model.SessionRecord{AgentName: "reviewer", SessionID: "sess-1", LastUsedAt: stale}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	id, expired, err := resolveSession(store, agent, "", now)
	if err != nil {
		t.Fatalf("resolveSession: %v", err)
	}
	if !expired {
		t.Fatalf("expected expired=true")
	}
	if id != "" {
		t.Fatalf("got id %q, want empty", id)
	}
	if _, ok, _ := store.LoadSession("reviewer"); ok {
		t.Fatalf("expected the expired record to be cleared")
	}
}

func TestResolveSessionValidRefreshesLastUsedAt(t *testing.T) {
	t.Parallel()

	store := state.New(t.TempDir())
	agent := &model.Agent{Name: "reviewer", SessionTimeout: time.Hour}
	created := time.Now().Add(-time.Minute)
	if err := store.SaveSession(&model.SessionRecord{AgentName: "reviewer", SessionID: "sess-1", CreatedAt: created, LastUsedAt: created}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	now := time.Now()
	id, expired, err := resolveSession(store, agent, "", now)
	if err != nil {
		t.Fatalf("resolveSession: %v", err)
	}
	if expired || id != "sess-1" {
		t.Fatalf("got id=%q expired=%v, want sess-1/false", id, expired)
	}

	sess, ok, err := store.LoadSession("reviewer")
	if err != nil || !ok {
		t.Fatalf("LoadSession: ok=%v err=%v", ok, err)
	}
	if !sess.LastUsedAt.Equal(now) {
		t.Fatalf("got last_used_at %v, want refreshed to %v", sess.LastUsedAt, now)
	}
	if !sess.CreatedAt.Equal(created) {
		t.Fatalf("created_at should not change on refresh: got %v, want %v", sess.CreatedAt, created)
	}
}
