// Package trigger implements the pure evaluators the Scheduler uses to
// decide when a Schedule is next due: interval-grammar parsing, jitter, and
// cron-expression evaluation (spec.md §4.3/§4.4). None of these functions
// touch a clock beyond the `now` they are handed, so they are deterministic
// and unit-testable the way the teacher's own nlp_schedule.go parser is.
package trigger

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"time"
)

// intervalPattern is the grammar spec.md §4.3 defines for interval
// schedules: a positive integer with no leading zero, followed by a unit.
var intervalPattern = regexp.MustCompile(`^[1-9][0-9]*(s|m|h|d)$`)

// IntervalParseError reports a Schedule.Interval value that does not match
// the interval grammar.
type IntervalParseError struct {
	Value string
}

func (e *IntervalParseError) Error() string {
	return fmt.Sprintf("trigger: invalid interval %q: want <positive-int><s|m|h|d>", e.Value)
}

var unitDurations = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseInterval converts a value like "30s", "5m", "2h", "1d" into a
// time.Duration, rejecting anything outside the grammar (leading zeros,
// zero magnitude, unknown unit, trailing garbage).
func ParseInterval(value string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, &IntervalParseError{Value: value}
	}
	unit := m[1]
	numPart := value[:len(value)-len(unit)]
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, &IntervalParseError{Value: value}
	}
	return time.Duration(n) * unitDurations[unit], nil
}

// NextIntervalTrigger returns the next fire time for an interval schedule
// last fired at lastRun (zero value if never), applying jitterPercent
// (0-100) as a uniform random delay added on top of interval (never
// subtracted; see applyJitter) and clamping the result so it
// never falls before now — a long-paused supervisor catching back up must
// not schedule a backlog of past-due fires (spec.md §4.3).
func NextIntervalTrigger(now, lastRun time.Time, interval time.Duration, jitterPercent int) time.Time {
	base := lastRun
	if base.IsZero() {
		base = now
	}
	next := base.Add(applyJitter(interval, jitterPercent))
	if next.Before(now) {
		return now
	}
	return next
}

// applyJitter adds up to jitterPercent% on top of d, uniformly distributed
// in [0, span] — jitter only ever delays a fire, never pulls it earlier,
// so a fleet of agents on the same interval spreads out instead of
// clustering at the same instant (spec.md §4.3).
func applyJitter(d time.Duration, jitterPercent int) time.Duration {
	if jitterPercent <= 0 {
		return d
	}
	if jitterPercent > 100 {
		jitterPercent = 100
	}
	span := float64(d) * float64(jitterPercent) / 100.0
	delta := rand.Float64() * span
	return d + time.Duration(delta)
}
