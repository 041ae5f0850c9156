package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/logger"
)

// SnapshotStore is the slice of the snapshot repository the API reads.
type SnapshotStore interface {
	LatestDate(ctx context.Context) (time.Time, error)
	Dates(ctx context.Context, from, to time.Time) ([]time.Time, error)
	LoadDate(ctx context.Context, date time.Time) ([]contracts.PITSnapshot, error)
}

// SnapshotHandler serves PIT snapshot metadata and rows.
// ⭐ SSOT: 스냅샷 API 핸들러는 이 구조체에서만
type SnapshotHandler struct {
	store  SnapshotStore
	logger *logger.Logger
}

// NewSnapshotHandler creates a snapshot handler.
func NewSnapshotHandler(store SnapshotStore, log *logger.Logger) *SnapshotHandler {
	return &SnapshotHandler{store: store, logger: log}
}

// GetLatest returns the most recent snapshot's rows.
// GET /api/snapshots/latest
func (h *SnapshotHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := h.store.LatestDate(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve latest snapshot date")
		respondError(w, http.StatusNotFound, "No snapshots available")
		return
	}

	rows, err := h.store.LoadDate(ctx, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to load snapshot")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_date": date.Format("2006-01-02"),
		"rows":          rows,
	})
}

// ListDates returns snapshot dates inside ?from=YYYY-MM-DD&to=YYYY-MM-DD.
// GET /api/snapshots
func (h *SnapshotHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := parseDateParam(r, "from", time.Time{})
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid from date, want YYYY-MM-DD")
		return
	}
	to, err := parseDateParam(r, "to", time.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid to date, want YYYY-MM-DD")
		return
	}

	dates, err := h.store.Dates(ctx, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list snapshot dates")
		respondError(w, http.StatusInternalServerError, "Failed to list snapshot dates")
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"dates": out})
}

func parseDateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}
