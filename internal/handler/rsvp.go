package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/auth"
	"github.com/sffxzzp/northbound-gather/internal/model"
)

// RSVPService is the toggle surface the handler depends on.
type RSVPService interface {
	Toggle(ctx context.Context, eventID string, identity model.Attendee) (*model.Event, error)
}

// UserLookup fetches the caller's profile so the stored attendee entry is a
// snapshot of their current identity.
type UserLookup interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// RSVPHandler serves the attendance toggle endpoint.
type RSVPHandler struct {
	rsvps  RSVPService
	users  UserLookup
	logger *slog.Logger
}

func NewRSVPHandler(rsvps RSVPService, users UserLookup, logger *slog.Logger) *RSVPHandler {
	return &RSVPHandler{rsvps: rsvps, users: users, logger: logger}
}

// HandleToggle flips the caller's attendance on an event. Joining appends an
// identity snapshot and takes a spot; leaving releases one. The response is
// the committed event state.
//
// HTTP: POST /api/events/{id}/rsvp
func (h *RSVPHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("sign in to RSVP"))
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := h.rsvps.Toggle(r.Context(), chi.URLParam(r, "id"), user.Identity())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}
