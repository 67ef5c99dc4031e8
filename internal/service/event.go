// Package service contains the business logic layer of the application.
//
// Handlers parse HTTP and delegate here; services validate, enforce
// ownership rules, and run the versioned write loops against the repository.
// Services return domain errors from the apperror package and never touch
// HTTP types.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/model"
	"github.com/sffxzzp/northbound-gather/internal/repository"
	"github.com/sffxzzp/northbound-gather/internal/watch"
)

const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 5000
	TrendingLimit        = 3
)

// EventService handles event lifecycle and queries.
type EventService struct {
	repo   repository.EventRepository
	hub    *watch.Hub
	logger *slog.Logger
}

func NewEventService(repo repository.EventRepository, hub *watch.Hub, logger *slog.Logger) *EventService {
	return &EventService{
		repo:   repo,
		hub:    hub,
		logger: logger,
	}
}

// Create validates and saves a new event owned by ownerUID. The attendee list
// starts empty and every spot is open.
func (s *EventService) Create(ctx context.Context, ownerUID string, req model.CreateEventRequest) (*model.Event, error) {
	if ownerUID == "" {
		return nil, apperror.Forbidden("sign in to host an event")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, apperror.ValidationFailed("title", "event title is required")
	}
	if len(req.Title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("event title must be at most %d characters", MaxTitleLength))
	}
	if len(req.Description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}
	if req.Capacity < 1 {
		return nil, apperror.ValidationFailed("capacity", "capacity must be at least 1")
	}

	event := &model.Event{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Date:        req.Date,
		Time:        req.Time,
		Location:    req.Location,
		Cost:        req.Cost,
		Capacity:    req.Capacity,
		CreatedBy:   ownerUID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	s.logger.Info("event created",
		"event_id", event.ID,
		"owner", ownerUID,
		"capacity", event.Capacity,
	)
	s.hub.Publish(watch.KindCreated, event)
	return event, nil
}

// Get returns a single event by id.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies an owner's edits through the conditional-write loop.
//
// When capacity changes, spotsRemaining is recomputed as
// newCapacity - len(attendees) inside the same committed write, so the count
// invariant holds against whatever attendee list is current at commit time.
// The result may be negative if capacity drops below the attendee count;
// that overbooked state is stored and served as-is.
func (s *EventService) Update(ctx context.Context, id, callerUID string, req model.UpdateEventRequest) (*model.Event, error) {
	if req.Capacity != nil && *req.Capacity < 1 {
		return nil, apperror.ValidationFailed("capacity", "capacity must be at least 1")
	}
	if title := strings.TrimSpace(req.Title); title != "" && len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("event title must be at most %d characters", MaxTitleLength))
	}

	var updated *model.Event
	err := s.withRetry(ctx, "update", func(ctx context.Context) error {
		event, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if event.CreatedBy != callerUID {
			return apperror.Forbidden("only the event host can edit this event")
		}

		applyEventEdits(event, req)
		if err := s.repo.UpdateCAS(ctx, event, event.Version); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event updated", "event_id", id, "owner", callerUID)
	s.hub.Publish(watch.KindUpdated, updated)
	return updated, nil
}

// Delete removes an event. Only the host may delete it.
func (s *EventService) Delete(ctx context.Context, id, callerUID string) error {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if event.CreatedBy != callerUID {
		return apperror.Forbidden("only the event host can delete this event")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("event deleted", "event_id", id, "owner", callerUID)
	s.hub.PublishDelete(id)
	return nil
}

// List returns all events ordered by date, soonest first.
func (s *EventService) List(ctx context.Context) ([]model.Event, error) {
	return s.repo.List(ctx)
}

// Trending returns the most recently created events, newest first.
func (s *EventService) Trending(ctx context.Context) ([]model.Event, error) {
	return s.repo.Trending(ctx, TrendingLimit)
}

// ListHosted returns the events created by uid.
func (s *EventService) ListHosted(ctx context.Context, uid string) ([]model.Event, error) {
	return s.repo.ListByOwner(ctx, uid)
}

// ListJoined returns the events uid currently attends.
func (s *EventService) ListJoined(ctx context.Context, uid string) ([]model.Event, error) {
	return s.repo.ListByAttendee(ctx, uid)
}

func applyEventEdits(event *model.Event, req model.UpdateEventRequest) {
	if title := strings.TrimSpace(req.Title); title != "" {
		event.Title = title
	}
	if req.Description != "" {
		event.Description = req.Description
	}
	if req.Category != "" {
		event.Category = req.Category
	}
	if req.Date != "" {
		event.Date = req.Date
	}
	if req.Time != "" {
		event.Time = req.Time
	}
	if req.Location != "" {
		event.Location = req.Location
	}
	if req.Cost != "" {
		event.Cost = req.Cost
	}
	if req.Capacity != nil {
		event.Capacity = *req.Capacity
		event.SpotsRemaining = event.Capacity - len(event.Attendees)
	}
}

// withRetry runs fn, re-running it with a fresh read whenever the conditional
// write loses to a concurrent writer. Terminal errors pass through untouched.
func (s *EventService) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}

		s.logger.Debug("version conflict, retrying", "op", op, "attempt", attempt)
		if err := sleepBackoff(ctx, attempt); err != nil {
			return err
		}
	}
	return apperror.Unavailable(op)
}
