package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"server/internal/domain"
)

type createJobRequest struct {
	Destination  string `json:"destination"`
	DurationDays int    `json:"durationDays"`
}

type createJobResponse struct {
	JobID string `json:"jobId"`
}

// CreateJob accepts an itinerary request and responds 202 with the job id.
// The response is sent as soon as the initial document write lands;
// generation continues in the background.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body: expected {destination, durationDays}")
		return
	}

	jobID, err := a.Jobs.Submit(r.Context(), req.Destination, req.DurationDays)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			a.error(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: job creation failed")
		a.error(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	a.json(w, http.StatusAccepted, createJobResponse{JobID: jobID})
}

// JobStatus returns the full snapshot for the jobId query parameter.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.URL.Query().Get("jobId"))
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "jobId query parameter is required")
		return
	}

	job, err := a.Jobs.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: status read failed")
		a.error(w, http.StatusInternalServerError, "failed to read job")
		return
	}

	a.json(w, http.StatusOK, job)
}
