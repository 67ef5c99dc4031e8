package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/auth"
	"github.com/sffxzzp/northbound-gather/internal/model"
)

// EventService is the service surface the event handler depends on. Tests
// inject a mock; production injects *service.EventService.
type EventService interface {
	Create(ctx context.Context, ownerUID string, req model.CreateEventRequest) (*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	Update(ctx context.Context, id, callerUID string, req model.UpdateEventRequest) (*model.Event, error)
	Delete(ctx context.Context, id, callerUID string) error
	List(ctx context.Context) ([]model.Event, error)
	Trending(ctx context.Context) ([]model.Event, error)
	ListHosted(ctx context.Context, uid string) ([]model.Event, error)
	ListJoined(ctx context.Context, uid string) ([]model.Event, error)
}

// EventHandler serves event CRUD and the query endpoints.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

// HandleCreate creates an event hosted by the authenticated user.
//
// HTTP: POST /api/events
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("sign in to host an event"))
		return
	}

	var req model.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	event, err := h.events.Create(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// HandleGet returns one event.
//
// HTTP: GET /api/events/{id}
func (h *EventHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HandleUpdate applies the host's edits to an event.
//
// HTTP: PUT /api/events/{id}
func (h *EventHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("sign in required"))
		return
	}

	var req model.UpdateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	event, err := h.events.Update(r.Context(), chi.URLParam(r, "id"), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HandleDelete removes an event.
//
// HTTP: DELETE /api/events/{id}
func (h *EventHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("sign in required"))
		return
	}

	if err := h.events.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleList returns all events, soonest date first.
//
// HTTP: GET /api/events
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleTrending returns the most recently created events.
//
// HTTP: GET /api/events/trending
func (h *EventHandler) HandleTrending(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Trending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleHosted returns the authenticated user's own events.
//
// HTTP: GET /api/events/hosted
func (h *EventHandler) HandleHosted(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	events, err := h.events.ListHosted(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleJoined returns the events the authenticated user attends.
//
// HTTP: GET /api/events/joined
func (h *EventHandler) HandleJoined(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	events, err := h.events.ListJoined(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
