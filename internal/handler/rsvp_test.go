package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/model"
)

type mockRSVPService struct {
	toggleFn func(eventID string, identity model.Attendee) (*model.Event, error)
}

func (m *mockRSVPService) Toggle(_ context.Context, eventID string, identity model.Attendee) (*model.Event, error) {
	return m.toggleFn(eventID, identity)
}

type mockUserLookup struct {
	getFn func(id string) (*model.User, error)
}

func (m *mockUserLookup) Get(_ context.Context, id string) (*model.User, error) {
	return m.getFn(id)
}

func newRSVPRouter(rsvps RSVPService, users UserLookup) *chi.Mux {
	h := NewRSVPHandler(rsvps, users, testHandlerLogger())
	r := chi.NewRouter()
	r.Post("/api/events/{id}/rsvp", h.HandleToggle)
	return r
}

func TestHandleToggle_RequiresAuth(t *testing.T) {
	router := newRSVPRouter(&mockRSVPService{}, &mockUserLookup{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events/ev-1/rsvp", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleToggle_PassesIdentitySnapshot(t *testing.T) {
	users := &mockUserLookup{
		getFn: func(id string) (*model.User, error) {
			return &model.User{ID: id, DisplayName: "Ada", PhotoURL: "https://example.com/a.png"}, nil
		},
	}
	rsvps := &mockRSVPService{
		toggleFn: func(eventID string, identity model.Attendee) (*model.Event, error) {
			assert.Equal(t, "ev-1", eventID)
			assert.Equal(t, model.Attendee{UID: "u1", DisplayName: "Ada", PhotoURL: "https://example.com/a.png"}, identity)
			return &model.Event{ID: eventID, Capacity: 5, SpotsRemaining: 4, Attendees: []model.Attendee{identity}}, nil
		},
	}
	router := newRSVPRouter(rsvps, users)

	req := httptest.NewRequest(http.MethodPost, "/api/events/ev-1/rsvp", nil)
	req = req.WithContext(contextWithUser(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got model.Event
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.SpotsRemaining)
	assert.Len(t, got.Attendees, 1)
}

func TestHandleToggle_EventFullMapsTo409(t *testing.T) {
	users := &mockUserLookup{
		getFn: func(id string) (*model.User, error) {
			return &model.User{ID: id, DisplayName: "Ada"}, nil
		},
	}
	rsvps := &mockRSVPService{
		toggleFn: func(eventID string, identity model.Attendee) (*model.Event, error) {
			return nil, apperror.EventFull(eventID)
		},
	}
	router := newRSVPRouter(rsvps, users)

	req := httptest.NewRequest(http.MethodPost, "/api/events/ev-1/rsvp", nil)
	req = req.WithContext(contextWithUser(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "event_full", errResp.Error)
}

func TestHandleToggle_ContentionMapsTo503(t *testing.T) {
	users := &mockUserLookup{
		getFn: func(id string) (*model.User, error) {
			return &model.User{ID: id, DisplayName: "Ada"}, nil
		},
	}
	rsvps := &mockRSVPService{
		toggleFn: func(eventID string, identity model.Attendee) (*model.Event, error) {
			return nil, apperror.Unavailable("rsvp")
		},
	}
	router := newRSVPRouter(rsvps, users)

	req := httptest.NewRequest(http.MethodPost, "/api/events/ev-1/rsvp", nil)
	req = req.WithContext(contextWithUser(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
