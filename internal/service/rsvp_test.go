package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/model"
	"github.com/sffxzzp/northbound-gather/internal/repository"
	"github.com/sffxzzp/northbound-gather/internal/watch"
)

// mockEventRepo is an in-memory EventRepository with the same versioned
// write semantics as the sqlite implementation. The mutex makes the
// compare-and-swap atomic, so concurrency tests exercise real write races.
type mockEventRepo struct {
	mu     sync.Mutex
	events map[string]*model.Event
	nextID int
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*model.Event)}
}

func (m *mockEventRepo) Create(_ context.Context, event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	event.ID = fmt.Sprintf("mock-%d", m.nextID)
	event.SpotsRemaining = event.Capacity
	event.Attendees = []model.Attendee{}
	event.Version = 1
	stored := cloneEvent(event)
	m.events[event.ID] = stored
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, apperror.NotFound("event", id)
	}
	return cloneEvent(event), nil
}

func (m *mockEventRepo) UpdateCAS(_ context.Context, event *model.Event, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.events[event.ID]
	if !ok {
		return apperror.NotFound("event", event.ID)
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	event.Version = expectedVersion + 1
	m.events[event.ID] = cloneEvent(event)
	return nil
}

func (m *mockEventRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return apperror.NotFound("event", id)
	}
	delete(m.events, id)
	return nil
}

func (m *mockEventRepo) List(_ context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		result = append(result, *cloneEvent(e))
	}
	return result, nil
}

func (m *mockEventRepo) Trending(_ context.Context, limit int) ([]model.Event, error) {
	events, _ := m.List(context.Background())
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, nil
}

func (m *mockEventRepo) ListByOwner(_ context.Context, uid string) ([]model.Event, error) {
	events, _ := m.List(context.Background())
	result := []model.Event{}
	for _, e := range events {
		if e.CreatedBy == uid {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEventRepo) ListByAttendee(_ context.Context, uid string) ([]model.Event, error) {
	events, _ := m.List(context.Background())
	result := []model.Event{}
	for _, e := range events {
		if e.HasAttendee(uid) {
			result = append(result, e)
		}
	}
	return result, nil
}

func cloneEvent(e *model.Event) *model.Event {
	clone := *e
	clone.Attendees = append([]model.Attendee{}, e.Attendees...)
	return &clone
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRSVPService(t *testing.T) (*RSVPService, *mockEventRepo) {
	t.Helper()
	repo := newMockEventRepo()
	svc := NewRSVPService(repo, watch.NewHub(), testLogger())
	return svc, repo
}

func seedEvent(t *testing.T, repo *mockEventRepo, capacity int) *model.Event {
	t.Helper()
	event := &model.Event{Title: "Ridge Hike", Capacity: capacity, CreatedBy: "host-1"}
	if err := repo.Create(context.Background(), event); err != nil {
		t.Fatalf("seeding event: %v", err)
	}
	return event
}

func attendee(uid string) model.Attendee {
	return model.Attendee{UID: uid, DisplayName: "User " + uid, PhotoURL: ""}
}

// checkInvariant asserts spotsRemaining always equals capacity minus the
// attendee count after a commit.
func checkInvariant(t *testing.T, e *model.Event) {
	t.Helper()
	assert.Equal(t, e.Capacity-len(e.Attendees), e.SpotsRemaining,
		"spotsRemaining must equal capacity - len(attendees)")
}

func TestToggle_JoinThenLeaveRoundTrip(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 5)
	ctx := context.Background()

	joined, err := svc.Toggle(ctx, event.ID, attendee("u1"))
	assert.NoError(t, err)
	assert.True(t, joined.HasAttendee("u1"))
	assert.Equal(t, 4, joined.SpotsRemaining)
	checkInvariant(t, joined)

	left, err := svc.Toggle(ctx, event.ID, attendee("u1"))
	assert.NoError(t, err)
	assert.False(t, left.HasAttendee("u1"))
	assert.Equal(t, 5, left.SpotsRemaining)
	checkInvariant(t, left)
}

func TestToggle_JoinStoresIdentitySnapshot(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 3)

	id := model.Attendee{UID: "u7", DisplayName: "Noor", PhotoURL: "https://example.com/n.png"}
	got, err := svc.Toggle(context.Background(), event.ID, id)
	assert.NoError(t, err)
	assert.Equal(t, []model.Attendee{id}, got.Attendees)
}

func TestToggle_RejectsJoinWhenFull(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 1)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, event.ID, attendee("u1"))
	assert.NoError(t, err)

	_, err = svc.Toggle(ctx, event.ID, attendee("u2"))
	assert.ErrorIs(t, err, apperror.ErrEventFull)

	// The failed join must not have written anything.
	stored, err := repo.GetByID(ctx, event.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, stored.SpotsRemaining)
	assert.Len(t, stored.Attendees, 1)
	checkInvariant(t, stored)
}

func TestToggle_LeaveAlwaysSucceedsWhenFull(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 1)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, event.ID, attendee("u1"))
	assert.NoError(t, err)

	// u1 can leave a full event.
	left, err := svc.Toggle(ctx, event.ID, attendee("u1"))
	assert.NoError(t, err)
	assert.Equal(t, 1, left.SpotsRemaining)
	assert.Empty(t, left.Attendees)
}

func TestToggle_NotIdempotent(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 5)
	ctx := context.Background()

	// Two toggles cancel out and return the caller to their starting state.
	_, err := svc.Toggle(ctx, event.ID, attendee("u1"))
	assert.NoError(t, err)
	final, err := svc.Toggle(ctx, event.ID, attendee("u1"))
	assert.NoError(t, err)

	assert.False(t, final.HasAttendee("u1"))
	assert.Equal(t, event.Capacity, final.SpotsRemaining)
}

func TestToggle_EmptyUID(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 5)

	_, err := svc.Toggle(context.Background(), event.ID, model.Attendee{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestToggle_EventNotFound(t *testing.T) {
	svc, _ := newTestRSVPService(t)

	_, err := svc.Toggle(context.Background(), "missing", attendee("u1"))
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestToggle_LeavePreservesAttendeeOrder(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 5)
	ctx := context.Background()

	for _, uid := range []string{"a", "b", "c"} {
		_, err := svc.Toggle(ctx, event.ID, attendee(uid))
		assert.NoError(t, err)
	}

	got, err := svc.Toggle(ctx, event.ID, attendee("b"))
	assert.NoError(t, err)

	uids := make([]string, len(got.Attendees))
	for i, a := range got.Attendees {
		uids[i] = a.UID
	}
	assert.Equal(t, []string{"a", "c"}, uids)
}

// TestToggle_ConcurrentJoinsLastSpot races many joiners over a single spot.
// Exactly one must win; the rest get the event-full error.
func TestToggle_ConcurrentJoinsLastSpot(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 1)

	const racers = 16
	var (
		start    = make(chan struct{})
		wg       sync.WaitGroup
		mu       sync.Mutex
		joined   int
		rejected int
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			_, err := svc.Toggle(context.Background(), event.ID, attendee(fmt.Sprintf("racer-%d", n)))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, apperror.ErrEventFull):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, joined, "exactly one racer should win the last spot")
	assert.Equal(t, racers-1, rejected)

	stored, err := repo.GetByID(context.Background(), event.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, stored.SpotsRemaining)
	assert.Len(t, stored.Attendees, 1)
	checkInvariant(t, stored)
}

// TestToggle_ConcurrentDistinctJoiners has room for everyone; all toggles
// must land despite write races.
func TestToggle_ConcurrentDistinctJoiners(t *testing.T) {
	svc, repo := newTestRSVPService(t)
	event := seedEvent(t, repo, 8)

	// Each lost race means another writer committed, so with 8 attempts
	// every one of 8 racers is guaranteed to land.
	const racers = 8
	var (
		start = make(chan struct{})
		wg    sync.WaitGroup
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			_, err := svc.Toggle(context.Background(), event.ID, attendee(fmt.Sprintf("u-%d", n)))
			assert.NoError(t, err)
		}(i)
	}

	close(start)
	wg.Wait()

	stored, err := repo.GetByID(context.Background(), event.ID)
	assert.NoError(t, err)
	assert.Len(t, stored.Attendees, racers)
	assert.Equal(t, 0, stored.SpotsRemaining)
	checkInvariant(t, stored)
}
