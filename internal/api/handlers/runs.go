package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/pitlab/internal/backtest"
	"github.com/wonny/pitlab/pkg/logger"
)

// RunStore is the slice of the backtest repository the API reads.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]backtest.RunMeta, error)
	LastCompleted(ctx context.Context, runID string) (time.Time, error)
}

// RunHandler serves backtest run status and results.
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type RunHandler struct {
	store  RunStore
	logger *logger.Logger
}

// NewRunHandler creates a run handler.
func NewRunHandler(store RunStore, log *logger.Logger) *RunHandler {
	return &RunHandler{store: store, logger: log}
}

// List returns recent runs, newest first. ?limit=N caps the page.
// GET /api/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetProgress returns the last fully completed period of one run, which is
// the resume point after an aborted run.
// GET /api/runs/{id}/progress
func (h *RunHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	last, err := h.store.LastCompleted(ctx, runID)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to load run progress")
		respondError(w, http.StatusInternalServerError, "Failed to load run progress")
		return
	}
	if last.IsZero() {
		respondError(w, http.StatusNotFound, "Run has no completed periods")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":         runID,
		"last_completed": last.Format("2006-01-02"),
	})
}
