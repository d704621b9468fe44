package handlers

import (
	"context"
	"errors"
	"net/http"

	"webtracker/internal/contextutil"
	"webtracker/internal/ingest"
)

// Reindexer runs the background rebuild of vector records.
type Reindexer interface {
	StartReindex(ctx context.Context) error
	ReindexStatus() (bool, *ingest.ReindexStats)
}

// ReindexHandler handles HTTP requests for triggering and inspecting reindexing.
type ReindexHandler struct {
	reindexer Reindexer
}

// NewReindexHandler creates a new ReindexHandler.
func NewReindexHandler(reindexer Reindexer) *ReindexHandler {
	return &ReindexHandler{reindexer: reindexer}
}

// ReindexResponse reports the state of the reindex job.
type ReindexResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message,omitempty"`
	Running bool                 `json:"running"`
	Stats   *ingest.ReindexStats `json:"stats,omitempty"`
}

// Start triggers a reindex and returns immediately with 202 Accepted.
// A job already in progress yields 409 Conflict.
func (h *ReindexHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	err := h.reindexer.StartReindex(ctx)
	if errors.Is(err, ingest.ErrReindexRunning) {
		running, stats := h.reindexer.ReindexStatus()
		writeJSON(ctx, w, http.StatusConflict, ReindexResponse{
			Status:  "running",
			Message: "A reindex is already in progress",
			Running: running,
			Stats:   stats,
		})
		return
	}
	if err != nil {
		handleError(ctx, w, err, "Failed to start reindex")
		return
	}

	logger.InfoContext(ctx, "reindex triggered via API")
	writeJSON(ctx, w, http.StatusAccepted, ReindexResponse{
		Status:  "accepted",
		Message: "Reindex started. Poll GET /api/reindex for progress.",
		Running: true,
	})
}

// Status reports whether a reindex is running and the latest stats.
func (h *ReindexHandler) Status(w http.ResponseWriter, r *http.Request) {
	running, stats := h.reindexer.ReindexStatus()
	status := "idle"
	if running {
		status = "running"
	}
	writeJSON(r.Context(), w, http.StatusOK, ReindexResponse{Status: status, Running: running, Stats: stats})
}
