package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/model"
	"github.com/sffxzzp/northbound-gather/internal/repository"
	"github.com/sffxzzp/northbound-gather/internal/watch"
)

const (
	// maxWriteAttempts bounds the re-read/re-write loop under contention.
	maxWriteAttempts = 8
	// backoffBase spaces out retries; actual sleep is jittered up to
	// backoffBase * attempt.
	backoffBase = 2 * time.Millisecond
)

// RSVPService runs the attendance toggle, the one operation where concurrent
// writers routinely race over the same record.
type RSVPService struct {
	repo   repository.EventRepository
	hub    *watch.Hub
	logger *slog.Logger
}

func NewRSVPService(repo repository.EventRepository, hub *watch.Hub, logger *slog.Logger) *RSVPService {
	return &RSVPService{
		repo:   repo,
		hub:    hub,
		logger: logger,
	}
}

// Toggle flips the caller's attendance on an event.
//
// A current attendee leaves: their snapshot is removed and the spot is
// released, with no precondition. A non-attendee joins: their identity
// snapshot is appended and a spot is consumed, unless the event is full, in
// which case the call fails with an event-full error and no write happens.
//
// The decision is made against a fresh read each attempt and committed with a
// conditional write, so two racing joiners of a one-spot event resolve to
// exactly one member. Toggle is deliberately not idempotent: calling it twice
// returns the caller to their starting state.
func (s *RSVPService) Toggle(ctx context.Context, eventID string, identity model.Attendee) (*model.Event, error) {
	if identity.UID == "" {
		return nil, apperror.ValidationFailed("uid", "user id is required")
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		event, err := s.repo.GetByID(ctx, eventID)
		if err != nil {
			return nil, err
		}

		var action string
		if event.HasAttendee(identity.UID) {
			event.RemoveAttendee(identity.UID)
			event.SpotsRemaining++
			action = "left"
		} else {
			if event.IsFull() {
				return nil, apperror.EventFull(eventID)
			}
			event.Attendees = append(event.Attendees, identity)
			event.SpotsRemaining--
			action = "joined"
		}

		err = s.repo.UpdateCAS(ctx, event, event.Version)
		if err == nil {
			s.logger.Info("rsvp toggled",
				"event_id", eventID,
				"uid", identity.UID,
				"action", action,
				"spots_remaining", event.SpotsRemaining,
			)
			s.hub.Publish(watch.KindUpdated, event)
			return event, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("committing rsvp: %w", err)
		}

		s.logger.Debug("rsvp lost write race, retrying",
			"event_id", eventID,
			"uid", identity.UID,
			"attempt", attempt,
		)
		if err := sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}

	s.logger.Warn("rsvp gave up under contention", "event_id", eventID, "uid", identity.UID)
	return nil, apperror.Unavailable("rsvp")
}

// sleepBackoff waits a jittered interval proportional to the attempt number,
// or returns early when ctx is done.
func sleepBackoff(ctx context.Context, attempt int) error {
	d := time.Duration(rand.Int63n(int64(backoffBase) * int64(attempt)))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
