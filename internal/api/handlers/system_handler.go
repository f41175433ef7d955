package handlers

import (
	"net/http"

	"github.com/fmorante/lexagenda-be/internal/monitoring"
)

// SystemHandler exposes operational diagnostics.
type SystemHandler struct {
	stats monitoring.StatProvider
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(stats monitoring.StatProvider) *SystemHandler {
	return &SystemHandler{stats: stats}
}

// GetStats returns the latest host stats sample.
func (h *SystemHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Latest())
}
