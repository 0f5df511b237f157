package trigger

import (
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// MaxStagger bounds the deterministic top-of-hour spread applied to cron
// schedules with Stagger enabled (SPEC_FULL.md §3).
const MaxStagger = 5 * time.Minute

// ResolveStableOffset returns a deterministic delay in [0, maxStagger)
// derived from id's hash, so the same schedule always staggers by the same
// amount while different schedules spread across the window instead of all
// firing at once — grounded in the teacher's resolveStableCronOffset.
func ResolveStableOffset(id string, maxStagger time.Duration) time.Duration {
	h := sha256.Sum256([]byte(id))
	n := binary.BigEndian.Uint32(h[:4])
	ms := int64(n) % maxStagger.Milliseconds()
	return time.Duration(ms) * time.Millisecond
}

// ResolveStagger returns the stagger delay for the schedule identified by id
// (the scheduler passes the schedule name, so schedules with the same name
// on different agents get the same delay): zero unless stagger is enabled and the cron expression fires on an hour
// boundary, per SPEC_FULL.md §3 (stagger has no effect on interval
// schedules, which already carry their own jitter).
func ResolveStagger(id, cronExpr string, staggerEnabled bool) time.Duration {
	if !staggerEnabled || cronExpr == "" || !IsTopOfHour(cronExpr) {
		return 0
	}
	return ResolveStableOffset(id, MaxStagger)
}
