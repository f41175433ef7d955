package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fmorante/lexagenda-be/internal/auth"
	"github.com/fmorante/lexagenda-be/internal/services"
)

// AgendaHandler handles HTTP requests for the aggregated agenda.
type AgendaHandler struct {
	service services.AgendaServiceProvider
}

// NewAgendaHandler creates a new AgendaHandler.
func NewAgendaHandler(service services.AgendaServiceProvider) *AgendaHandler {
	return &AgendaHandler{service: service}
}

// GetEvents returns the current merged agenda for the caller's organization.
// `?refresh=true` forces a fresh aggregation pass instead of the cached view.
func (h *AgendaHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := organizationFrom(r)
	if !ok {
		http.Error(w, "Missing organization", http.StatusUnauthorized)
		return
	}

	var (
		view services.AgendaView
		err  error
	)
	if r.URL.Query().Get("refresh") == "true" {
		view, err = h.service.Refresh(r.Context(), organizationID)
	} else {
		view, err = h.service.CurrentView(r.Context(), organizationID)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to load agenda")
		http.Error(w, "Failed to load agenda", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetDays returns the day index, optionally filtered to `?month=YYYY-MM`.
func (h *AgendaHandler) GetDays(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := organizationFrom(r)
	if !ok {
		http.Error(w, "Missing organization", http.StatusUnauthorized)
		return
	}

	view, err := h.service.CurrentView(r.Context(), organizationID)
	if err != nil {
		http.Error(w, "Failed to load agenda", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, view.Days.FilterMonth(r.URL.Query().Get("month")))
}

// Refresh runs an aggregation pass on demand.
func (h *AgendaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := organizationFrom(r)
	if !ok {
		http.Error(w, "Missing organization", http.StatusUnauthorized)
		return
	}

	view, err := h.service.Refresh(r.Context(), organizationID)
	if err != nil {
		http.Error(w, "Failed to refresh agenda", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Create adds a new local event.
func (h *AgendaHandler) Create(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := organizationFrom(r)
	if !ok {
		http.Error(w, "Missing organization", http.StatusUnauthorized)
		return
	}

	var input services.EventInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.service.CreateEvent(r.Context(), organizationID, input)
	if err != nil {
		writeServiceError(w, err, "Failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Update edits an event by id; edits to derived events are routed to their
// source entity by the service.
func (h *AgendaHandler) Update(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := organizationFrom(r)
	if !ok {
		http.Error(w, "Missing organization", http.StatusUnauthorized)
		return
	}
	eventID := chi.URLParam(r, "id")

	var input services.EventInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), organizationID, eventID, input)
	if err != nil {
		writeServiceError(w, err, "Failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete removes an event by id.
func (h *AgendaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := organizationFrom(r)
	if !ok {
		http.Error(w, "Missing organization", http.StatusUnauthorized)
		return
	}
	eventID := chi.URLParam(r, "id")

	if err := h.service.DeleteEvent(r.Context(), organizationID, eventID); err != nil {
		writeServiceError(w, err, "Failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var validationErr *services.ValidationError
	var persistErr *services.LocalPersistenceError

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrEventNotFound):
		http.Error(w, "Event not found", http.StatusNotFound)
	case errors.Is(err, services.ErrRemoteUnavailable):
		http.Error(w, "Remote store unavailable", http.StatusBadGateway)
	case errors.As(err, &persistErr):
		log.Error().Err(err).Msg("Local persistence failure")
		http.Error(w, "Local store unavailable", http.StatusInternalServerError)
	default:
		log.Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func organizationFrom(r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.OrganizationID == "" {
		return "", false
	}
	return claims.OrganizationID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
