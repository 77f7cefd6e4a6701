package scheduler

import (
	"context"
	"errors"

	"github.com/labkit-dev/calsync/domain"
	"github.com/labkit-dev/calsync/log"
)

// Scanner finds due jobs and runs them through the Runner.
type Scanner struct {
	jobs   domain.OperatorJobRepository
	runner *Runner
	logger log.Logger
}

func NewScanner(jobs domain.OperatorJobRepository, runner *Runner, logger log.Logger) *Scanner {
	return &Scanner{jobs: jobs, runner: runner, logger: logger}
}

// RunDue runs every due job for the user, capped at maxJobsPerScan per
// invocation. One failing job never blocks the rest of the scan; its
// failure lands in the per-job results.
func (s *Scanner) RunDue(ctx context.Context, userID string) (*domain.ScanResult, error) {
	all, err := s.jobs.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	now := s.runner.now()
	result := &domain.ScanResult{Scanned: len(all), Results: []domain.JobOutcome{}}

	for _, job := range all {
		if !job.IsDue(now) {
			continue
		}
		result.Due++
		if result.Ran+result.Failed >= maxJobsPerScan {
			continue
		}

		updated, err := s.runner.RunJob(ctx, userID, job.ID)
		outcome := domain.JobOutcome{JobID: job.ID, Name: job.Name}
		switch {
		case err != nil:
			// Run rejected or state write failed; the job itself never
			// executed.
			result.Failed++
			outcome.Error = err.Error()
		case updated.LastError != "":
			result.Failed++
			outcome.Error = updated.LastError
		default:
			result.Ran++
			outcome.Success = true
		}
		result.Results = append(result.Results, outcome)

		if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
			s.logger.Warn(ctx, "due job run failed", map[string]any{
				"user_id": userID,
				"job_id":  job.ID,
				"error":   err.Error(),
			})
		}
	}

	s.logger.Info(ctx, "due scan finished", map[string]any{
		"user_id": userID,
		"scanned": result.Scanned,
		"due":     result.Due,
		"ran":     result.Ran,
		"failed":  result.Failed,
	})
	return result, nil
}
