package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/auth"
	"github.com/sffxzzp/northbound-gather/internal/model"
)

// mockEventService returns canned values; each field backs one method.
type mockEventService struct {
	createFn func(ownerUID string, req model.CreateEventRequest) (*model.Event, error)
	getFn    func(id string) (*model.Event, error)
	updateFn func(id, callerUID string, req model.UpdateEventRequest) (*model.Event, error)
	deleteFn func(id, callerUID string) error
	listFn   func() ([]model.Event, error)
}

func (m *mockEventService) Create(_ context.Context, ownerUID string, req model.CreateEventRequest) (*model.Event, error) {
	return m.createFn(ownerUID, req)
}

func (m *mockEventService) Get(_ context.Context, id string) (*model.Event, error) {
	return m.getFn(id)
}

func (m *mockEventService) Update(_ context.Context, id, callerUID string, req model.UpdateEventRequest) (*model.Event, error) {
	return m.updateFn(id, callerUID, req)
}

func (m *mockEventService) Delete(_ context.Context, id, callerUID string) error {
	return m.deleteFn(id, callerUID)
}

func (m *mockEventService) List(_ context.Context) ([]model.Event, error) {
	return m.listFn()
}

func (m *mockEventService) Trending(_ context.Context) ([]model.Event, error) {
	return m.listFn()
}

func (m *mockEventService) ListHosted(_ context.Context, uid string) ([]model.Event, error) {
	return m.listFn()
}

func (m *mockEventService) ListJoined(_ context.Context, uid string) ([]model.Event, error) {
	return m.listFn()
}

func testHandlerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// contextWithUser simulates what RequireAuth does after validating a session.
func contextWithUser(ctx context.Context, uid string) context.Context {
	return auth.ContextWithUserID(ctx, uid)
}

// newEventRouter mounts the handler on a throwaway chi router so URL params
// resolve the same way they do in production.
func newEventRouter(svc EventService) *chi.Mux {
	h := NewEventHandler(svc, testHandlerLogger())
	r := chi.NewRouter()
	r.Get("/api/events", h.HandleList)
	r.Get("/api/events/{id}", h.HandleGet)
	r.Post("/api/events", h.HandleCreate)
	r.Put("/api/events/{id}", h.HandleUpdate)
	r.Delete("/api/events/{id}", h.HandleDelete)
	return r
}

func TestHandleGet_ReturnsEvent(t *testing.T) {
	svc := &mockEventService{
		getFn: func(id string) (*model.Event, error) {
			return &model.Event{ID: id, Title: "Night Paddle", Capacity: 6, SpotsRemaining: 6}, nil
		},
	}
	router := newEventRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/ev-1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var got model.Event
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ev-1", got.ID)
	assert.Equal(t, "Night Paddle", got.Title)
}

func TestHandleGet_NotFound(t *testing.T) {
	svc := &mockEventService{
		getFn: func(id string) (*model.Event, error) {
			return nil, apperror.NotFound("event", id)
		},
	}
	router := newEventRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "not_found", errResp.Error)
}

func TestHandleCreate_RequiresAuth(t *testing.T) {
	svc := &mockEventService{}
	router := newEventRouter(svc)

	body := bytes.NewBufferString(`{"title":"Hike","capacity":5}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events", body))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleCreate_InvalidJSON(t *testing.T) {
	svc := &mockEventService{}
	router := newEventRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewBufferString("{nope"))
	req = req.WithContext(contextWithUser(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreate_Success(t *testing.T) {
	svc := &mockEventService{
		createFn: func(ownerUID string, req model.CreateEventRequest) (*model.Event, error) {
			assert.Equal(t, "u1", ownerUID)
			return &model.Event{ID: "ev-new", Title: req.Title, Capacity: req.Capacity, SpotsRemaining: req.Capacity}, nil
		},
	}
	router := newEventRouter(svc)

	body := bytes.NewBufferString(`{"title":"Hike","capacity":5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/events", body)
	req = req.WithContext(contextWithUser(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var got model.Event
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ev-new", got.ID)
	assert.Equal(t, 5, got.SpotsRemaining)
}

func TestHandleUpdate_ForbiddenForNonOwner(t *testing.T) {
	svc := &mockEventService{
		updateFn: func(id, callerUID string, req model.UpdateEventRequest) (*model.Event, error) {
			return nil, apperror.Forbidden("only the event host can edit this event")
		},
	}
	router := newEventRouter(svc)

	body := bytes.NewBufferString(`{"title":"Hijacked"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/events/ev-1", body)
	req = req.WithContext(contextWithUser(req.Context(), "intruder"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleDelete_Success(t *testing.T) {
	deleted := ""
	svc := &mockEventService{
		deleteFn: func(id, callerUID string) error {
			deleted = id
			return nil
		},
	}
	router := newEventRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/events/ev-9", nil)
	req = req.WithContext(contextWithUser(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ev-9", deleted)
}

func TestHandleList_ReturnsEvents(t *testing.T) {
	svc := &mockEventService{
		listFn: func() ([]model.Event, error) {
			return []model.Event{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	router := newEventRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var got []model.Event
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}
