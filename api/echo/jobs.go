package echo

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
)

const jobListLimit = 100

type createJobRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Command       string `json:"command"`
	AutoRun       bool   `json:"autoRun"`
	IntervalHours int    `json:"intervalHours"`
	MaxRetries    *int   `json:"maxRetries"`
}

type updateJobRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Command       *string `json:"command"`
	Status        *string `json:"status"`
	AutoRun       *bool   `json:"autoRun"`
	IntervalHours *int    `json:"intervalHours"`
	MaxRetries    *int    `json:"maxRetries"`
}

func (a *API) ListJobsHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	jobs, err := a.jobs.ListByUser(c.Request().Context(), uid, jobListLimit)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if jobs == nil {
		jobs = []*domain.OperatorJob{}
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "jobs": jobs})
}

func (a *API) CreateJobHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req createJobRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "malformed request body")
	}
	if req.Name == "" {
		return errorJSON(c, http.StatusBadRequest, "name is required")
	}
	if req.Command == "" {
		return errorJSON(c, http.StatusBadRequest, "command is required")
	}

	maxRetries := domain.JobDefaultRetries
	if req.MaxRetries != nil {
		maxRetries = domain.ClampMaxRetries(*req.MaxRetries)
	}

	now := time.Now()
	job := &domain.OperatorJob{
		UserID:        uid,
		Name:          req.Name,
		Description:   req.Description,
		Command:       req.Command,
		Status:        domain.JobStatusQueued,
		AutoRun:       req.AutoRun,
		IntervalHours: domain.ClampIntervalHours(req.IntervalHours),
		MaxRetries:    maxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if job.AutoRun && job.IntervalHours != nil {
		next := now.Add(time.Duration(*job.IntervalHours) * time.Hour)
		job.NextRunAt = &next
	}

	if err := a.jobs.Create(c.Request().Context(), job); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]any{"success": true, "job": job})
}

func (a *API) UpdateJobHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req updateJobRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "malformed request body")
	}

	job, err := a.jobs.Get(c.Request().Context(), uid, c.Param("id"))
	if errors.Is(err, domain.ErrJobNotFound) {
		return errorJSON(c, http.StatusNotFound, "job not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	if req.Name != nil {
		job.Name = *req.Name
	}
	if req.Description != nil {
		job.Description = *req.Description
	}
	if req.Command != nil {
		job.Command = *req.Command
	}
	if req.AutoRun != nil {
		job.AutoRun = *req.AutoRun
	}
	if req.IntervalHours != nil {
		job.IntervalHours = domain.ClampIntervalHours(*req.IntervalHours)
	}
	if req.MaxRetries != nil {
		job.MaxRetries = domain.ClampMaxRetries(*req.MaxRetries)
	}
	if req.Status != nil {
		switch *req.Status {
		case domain.JobStatusPaused:
			job.Status = domain.JobStatusPaused
			job.NextRunAt = nil
		case domain.JobStatusQueued:
			// Resume: forget the failure streak and make the job due.
			job.Status = domain.JobStatusQueued
			job.ConsecutiveFailures = 0
			now := time.Now()
			job.NextRunAt = &now
		default:
			return errorJSON(c, http.StatusBadRequest, "status must be queued or paused")
		}
	}
	job.UpdatedAt = time.Now()

	if err := a.jobs.Update(c.Request().Context(), job); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "job": job})
}

func (a *API) DeleteJobHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	if _, err := a.jobs.Get(c.Request().Context(), uid, c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return errorJSON(c, http.StatusNotFound, "job not found")
		}
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if err := a.jobs.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (a *API) RunJobHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	job, err := a.runner.RunJob(c.Request().Context(), uid, c.Param("id"))
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return errorJSON(c, http.StatusNotFound, "job not found")
	case errors.Is(err, syncerrors.ErrJobPaused),
		errors.Is(err, syncerrors.ErrJobCommandEmpty):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "job": job})
}

func (a *API) RunDueHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	result, err := a.scanner.RunDue(c.Request().Context(), uid)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "result": result})
}
