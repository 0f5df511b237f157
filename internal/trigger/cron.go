package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard five-field form plus the descriptor
// shorthands (@hourly, @daily, @weekly, @monthly, @yearly, @every), matching
// the parser options the teacher's scheduler constructs its cron.Cron with.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CronParseError reports an expression robfig/cron's parser rejected.
type CronParseError struct {
	Expr string
	Err  error
}

func (e *CronParseError) Error() string {
	return fmt.Sprintf("trigger: invalid cron expression %q: %v", e.Expr, e.Err)
}

func (e *CronParseError) Unwrap() error { return e.Err }

// ParseCron validates expr and returns its parsed schedule.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, &CronParseError{Expr: expr, Err: err}
	}
	return sched, nil
}

// NextCronTrigger returns the next fire time for expr strictly after after.
func NextCronTrigger(expr string, after time.Time) (time.Time, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

// IsTopOfHour reports whether a cron expression fires on an hour boundary
// (minute field pinned to 0, or one of the coarse descriptor shorthands),
// grounded in the teacher's isTopOfHourSchedule.
func IsTopOfHour(expr string) bool {
	s := strings.ToLower(strings.TrimSpace(expr))
	switch s {
	case "@hourly", "@daily", "@weekly", "@monthly", "@yearly", "@annually":
		return true
	}
	fields := strings.Fields(s)
	return len(fields) >= 5 && fields[0] == "0"
}
