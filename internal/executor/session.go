package executor

import (
	"time"

	"github.com/jholhewres/herdctl/internal/model"
	"github.com/jholhewres/herdctl/internal/state"
)

// resolveSession implements the precedence spec.md §4.6 step 2 assigns to
// choosing which session a job resumes:
//   - No agent-level record on disk: a caller-supplied id passes through
//     verbatim (it came from an external per-thread session manager).
//   - A record exists but its id differs from the caller-supplied one: the
//     caller's id still passes through verbatim — the caller knows what it
//     is doing.
//   - The caller-supplied id equals the record's id (or no id was
//     supplied and the record is used implicitly): check local validity.
//     If expired, the record is cleared and no id is returned to resume;
//     expired reports true so the caller can log the expiry. Otherwise
//     last_used_at is refreshed before the run starts.
//
// Forking is a pass-through: Fork only records provenance on the Job (see
// Run's ForkedFrom assignment) and still resumes whatever session id this
// function resolves — it never creates or mutates a second persisted
// session record of its own.
func resolveSession(store *state.Store, agent *model.Agent, callerSessionID string, now time.Time) (resumeID string, expired bool, err error) {
	sess, ok, err := store.LoadSession(agent.Name)
	if err != nil {
		return "", false, err
	}

	if callerSessionID != "" && (!ok || sess.SessionID != callerSessionID) {
		return callerSessionID, false, nil
	}

	if !ok {
		return "", false, nil
	}
	if !sess.LocallyValid(now, agent.EffectiveSessionTimeout()) {
		if err := store.DeleteSession(agent.Name); err != nil {
			return "", false, err
		}
		return "", true, nil
	}
	if err := touchSession(store, sess, now); err != nil {
		return "", false, err
	}
	return sess.SessionID, false, nil
}

// touchSession refreshes last_used_at on an already-resolved, locally valid
// session record, so a long-running job cannot retroactively expire the
// session it started under (spec.md §4.6 step 2).
func touchSession(store *state.Store, sess *model.SessionRecord, now time.Time) error {
	updated := *sess
	updated.LastUsedAt = now
	return store.SaveSession(&updated)
}

// upsertSession records that agent just ran under sessionID at now,
// creating the persisted record if it did not exist yet.
func upsertSession(store *state.Store, agentName, sessionID string, now time.Time, mode model.SessionMode) error {
	if sessionID == "" {
		return nil
	}
	existing, ok, err := store.LoadSession(agentName)
	if err != nil {
		return err
	}

	rec := &model.SessionRecord{
		AgentName:  agentName,
		SessionID:  sessionID,
		CreatedAt:  now,
		LastUsedAt: now,
		JobCount:   1,
		Mode:       mode,
	}
	if ok && existing.SessionID == sessionID {
		rec.CreatedAt = existing.CreatedAt
		rec.JobCount = existing.JobCount + 1
	}
	return store.SaveSession(rec)
}
