// Package scheduler runs operator jobs: single executions on demand and
// periodic due scans. Scheduling state lives on the job documents; the
// scheduler itself is stateless.
package scheduler

import (
	"context"
	"time"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
	"github.com/labkit-dev/calsync/internal/executor"
	"github.com/labkit-dev/calsync/internal/metrics"
	"github.com/labkit-dev/calsync/log"
)

const (
	// Backoff after a failed run grows one hour per consecutive failure,
	// clamped to a day.
	maxBackoffHours = 24

	// A due scan runs at most this many jobs; the rest wait for the
	// next scan.
	maxJobsPerScan = 20
)

// Runner executes individual jobs and maintains their scheduling state.
type Runner struct {
	jobs   domain.OperatorJobRepository
	exec   executor.Executor
	logger log.Logger
	now    func() time.Time
}

func NewRunner(jobs domain.OperatorJobRepository, exec executor.Executor, logger log.Logger) *Runner {
	return &Runner{jobs: jobs, exec: exec, logger: logger, now: time.Now}
}

// RunJob executes one job immediately and persists the outcome. Paused
// jobs and jobs without a command are rejected before execution.
// RunCount increments on every attempt, success or not.
func (r *Runner) RunJob(ctx context.Context, userID, jobID string) (*domain.OperatorJob, error) {
	job, err := r.jobs.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == domain.JobStatusPaused {
		return nil, syncerrors.ErrJobPaused
	}
	if job.Command == "" {
		return nil, syncerrors.ErrJobCommandEmpty
	}

	now := r.now()
	res, execErr := r.exec.Execute(ctx, job.Command)

	job.RunCount++
	job.LastRunAt = &now
	metrics.IncJobRun()

	if execErr != nil {
		job.ConsecutiveFailures++
		job.LastError = domain.TruncateResult(execErr.Error())
		if res != nil {
			job.LastResult = domain.TruncateResult(res.Output)
		}
		metrics.IncJobFailed()

		if job.ConsecutiveFailures > job.MaxRetries {
			// Exhausted the retry budget: stop scheduling until a human
			// resumes the job.
			job.Status = domain.JobStatusPaused
			job.NextRunAt = nil
			r.logger.Warn(ctx, "job auto-paused after repeated failures", map[string]any{
				"user_id":              userID,
				"job_id":               jobID,
				"consecutive_failures": job.ConsecutiveFailures,
				"max_retries":          job.MaxRetries,
			})
		} else {
			next := now.Add(backoff(job.ConsecutiveFailures))
			job.NextRunAt = &next
		}
	} else {
		job.ConsecutiveFailures = 0
		job.LastError = ""
		job.LastResult = domain.TruncateResult(res.Output)
		if job.IntervalHours != nil {
			next := now.Add(time.Duration(*job.IntervalHours) * time.Hour)
			job.NextRunAt = &next
		} else {
			// One-shot job: done until somebody reschedules it.
			job.NextRunAt = nil
		}
	}

	if err := r.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	r.logger.Info(ctx, "job run finished", map[string]any{
		"user_id": userID,
		"job_id":  jobID,
		"success": execErr == nil,
	})
	return job, nil
}

// backoff is the failure retry delay: one hour per consecutive failure,
// clamped to [1h, 24h].
func backoff(consecutiveFailures int) time.Duration {
	hours := consecutiveFailures
	if hours < 1 {
		hours = 1
	}
	if hours > maxBackoffHours {
		hours = maxBackoffHours
	}
	return time.Duration(hours) * time.Hour
}
