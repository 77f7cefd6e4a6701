package domain

import "time"

// Operator job states. Jobs move between queued and paused by user
// action; the runner additionally pauses a job when it exhausts its
// retries.
const (
	JobStatusQueued = "queued"
	JobStatusPaused = "paused"
)

// Bounds applied when jobs are created or edited.
const (
	JobMinIntervalHours = 1
	JobMaxIntervalHours = 168
	JobMaxRetriesCap    = 10
	JobDefaultRetries   = 2
	JobResultMaxLen     = 1000
)

// OperatorJob is a user-defined recurring automation job. Command is an
// opaque instruction string interpreted by the external executor; the
// scheduler never looks inside it.
type OperatorJob struct {
	ID          string `bson:"_id,omitempty" json:"id"`
	UserID      string `bson:"user_id" json:"user_id"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Command     string `bson:"command" json:"command"`
	Status      string `bson:"status" json:"status"`
	AutoRun     bool   `bson:"auto_run" json:"autoRun"`

	IntervalHours *int       `bson:"interval_hours,omitempty" json:"intervalHours,omitempty"`
	NextRunAt     *time.Time `bson:"next_run_at,omitempty" json:"nextRunAt,omitempty"`

	RunCount            int        `bson:"run_count" json:"runCount"`
	LastRunAt           *time.Time `bson:"last_run_at,omitempty" json:"lastRunAt,omitempty"`
	LastResult          string     `bson:"last_result,omitempty" json:"lastResult,omitempty"`
	LastError           string     `bson:"last_error,omitempty" json:"lastError,omitempty"`
	ConsecutiveFailures int        `bson:"consecutive_failures" json:"consecutiveFailures"`
	MaxRetries          int        `bson:"max_retries" json:"maxRetries"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsDue reports whether the job is eligible to run at now. The boundary
// is inclusive: nextRunAt == now is due.
func (j *OperatorJob) IsDue(now time.Time) bool {
	if j.Status == JobStatusPaused {
		return false
	}
	if !j.AutoRun && j.IntervalHours == nil {
		return false
	}
	if j.NextRunAt == nil {
		return false
	}
	return !j.NextRunAt.After(now)
}

// ClampIntervalHours normalizes a requested interval to the allowed
// range, returning nil for non-positive values (one-shot job).
func ClampIntervalHours(hours int) *int {
	if hours <= 0 {
		return nil
	}
	if hours < JobMinIntervalHours {
		hours = JobMinIntervalHours
	}
	if hours > JobMaxIntervalHours {
		hours = JobMaxIntervalHours
	}
	return &hours
}

// ClampMaxRetries normalizes a requested retry budget to 0..JobMaxRetriesCap.
func ClampMaxRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > JobMaxRetriesCap {
		return JobMaxRetriesCap
	}
	return n
}

// TruncateResult bounds stored run output to JobResultMaxLen characters.
func TruncateResult(s string) string {
	if len(s) > JobResultMaxLen {
		return s[:JobResultMaxLen]
	}
	return s
}
