package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/pitlab/internal/scheduler"
	"github.com/wonny/pitlab/pkg/logger"
)

// JobRunner is the slice of the scheduler the API talks to.
type JobRunner interface {
	Stats() map[string]scheduler.JobStats
	RunJob(name string) error
}

// JobHandler exposes scheduler state and manual triggers.
type JobHandler struct {
	runner JobRunner
	logger *logger.Logger
}

// NewJobHandler creates a job handler.
func NewJobHandler(runner JobRunner, log *logger.Logger) *JobHandler {
	return &JobHandler{runner: runner, logger: log}
}

// Stats returns run statistics for every registered job.
// GET /api/jobs
func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.runner.Stats())
}

// Trigger runs one job immediately.
// POST /api/jobs/{name}/run
func (h *JobHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.runner.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.WithField("job", name).Info("Job triggered manually")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"job":    name,
	})
}
