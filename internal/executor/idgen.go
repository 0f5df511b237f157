package executor

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewJobID returns a job id of the form job-YYYY-MM-DD-<suffix>, matching
// model.JobIDPattern.
func NewJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "job-" + now.Format("2006-01-02") + "-" + suffix
}
