package handlers

import (
	"net/http"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/logging"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/metrics"
)

// SystemHandlers handles system metrics endpoints
type SystemHandlers struct {
	logger *logging.Logger
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(logger *logging.Logger) *SystemHandlers {
	return &SystemHandlers{logger: logger}
}

// GetSystemMetrics returns current host metrics
func (h *SystemHandlers) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	systemMetrics, err := metrics.CollectSystemMetrics(r.Context())
	if err != nil {
		h.logger.Error("Failed to collect system metrics", err, nil)
		WriteError(w, r, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, systemMetrics, http.StatusOK)
}
