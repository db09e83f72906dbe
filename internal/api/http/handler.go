package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

// StatusSource exposes the live state of a download run.
type StatusSource interface {
	Snapshot() domain.StatusResponse
}

// StatusHandler serves read-only run status.
type StatusHandler struct {
	source StatusSource
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler reading from source.
func NewStatusHandler(source StatusSource, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{source: source, logger: logger}
}

// GetStats handles GET /stats.
func (h *StatusHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "no run in progress")
		return
	}

	snap := h.source.Snapshot()
	h.logger.Debug("stats requested", "run_id", snap.RunID, "in_flight", snap.InFlight)

	writeJSON(w, http.StatusOK, snap)
}

// Health handles GET /health.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
