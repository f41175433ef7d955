package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fmorante/lexagenda-be/internal/services"
)

// SyncLogHandler handles HTTP requests for the sync audit trail.
type SyncLogHandler struct {
	service services.SyncLogServiceProvider
}

// NewSyncLogHandler creates a new SyncLogHandler.
func NewSyncLogHandler(service services.SyncLogServiceProvider) *SyncLogHandler {
	return &SyncLogHandler{service: service}
}

// GetRecent handles the request to get recent sync-log entries.
func (h *SyncLogHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := organizationFrom(r)
	if !ok {
		http.Error(w, "Missing organization", http.StatusUnauthorized)
		return
	}

	limitStr := r.URL.Query().Get("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20 // Default limit
	}

	entries, err := h.service.GetRecent(organizationID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve sync log")
		http.Error(w, "Failed to retrieve sync log", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
