package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/model"
	"github.com/sffxzzp/northbound-gather/internal/repository"
)

// compile-time check that *DB implements repository.EventRepository
var _ repository.EventRepository = (*DB)(nil)

const eventColumns = `id, title, description, category, date, time, location, cost,
	capacity, spots_remaining, attendees, created_by, version, created_at, updated_at`

// Create inserts a new event. The store assigns the opaque id, initializes
// the attendee set to empty, spots_remaining to capacity, and version to 1.
func (db *DB) Create(ctx context.Context, event *model.Event) error {
	event.ID = xid.New().String()
	event.Attendees = []model.Attendee{}
	event.SpotsRemaining = event.Capacity
	event.Version = 1

	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	attendees, err := json.Marshal(event.Attendees)
	if err != nil {
		return fmt.Errorf("sqlite: encoding attendees: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Title,
		event.Description,
		event.Category,
		event.Date,
		event.Time,
		event.Location,
		event.Cost,
		event.Capacity,
		event.SpotsRemaining,
		string(attendees),
		event.CreatedBy,
		event.Version,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating event: %w", err)
	}

	return nil
}

// GetByID returns the event including its version tag. The returned record
// is the consistency snapshot that UpdateCAS writes are keyed on.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)

	event, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("sqlite: getting event %s: %w", id, err)
	}

	return event, nil
}

// UpdateCAS commits every mutable field of event, conditioned on the stored
// version still matching expectedVersion. The attendee set and the
// spots_remaining counter land in the same statement, so a commit is either
// fully visible or not applied at all.
func (db *DB) UpdateCAS(ctx context.Context, event *model.Event, expectedVersion int64) error {
	attendees, err := json.Marshal(event.Attendees)
	if err != nil {
		return fmt.Errorf("sqlite: encoding attendees: %w", err)
	}

	event.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE events
		 SET title = ?, description = ?, category = ?, date = ?, time = ?,
		     location = ?, cost = ?, capacity = ?, spots_remaining = ?,
		     attendees = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		event.Title,
		event.Description,
		event.Category,
		event.Date,
		event.Time,
		event.Location,
		event.Cost,
		event.Capacity,
		event.SpotsRemaining,
		string(attendees),
		expectedVersion+1,
		event.UpdatedAt,
		event.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating event %s: %w", event.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the record is gone or a concurrent writer moved the version.
		// Disambiguate so NotFound is terminal and conflicts are retried.
		var exists int
		err := db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM events WHERE id = ?`, event.ID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("sqlite: checking event %s: %w", event.ID, err)
		}
		if exists == 0 {
			return apperror.NotFound("event", event.ID)
		}
		return repository.ErrVersionConflict
	}

	event.Version = expectedVersion + 1
	return nil
}

// Delete removes an event by id. RSVPs are embedded, so nothing cascades.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting event %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("event", id)
	}

	return nil
}

// List returns all events ordered by date ascending, the order the browse
// page displays them in.
func (db *DB) List(ctx context.Context) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date ASC, time ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// Trending returns the newest events by creation time, capped at limit.
func (db *DB) Trending(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 3
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing trending events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListByOwner returns events created by the given user.
func (db *DB) ListByOwner(ctx context.Context, uid string) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE created_by = ? ORDER BY date ASC, time ASC`,
		uid)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events by owner %s: %w", uid, err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListByAttendee returns events whose embedded attendee set contains uid.
// The attendee set is a JSON document rather than an indexed column, so this
// scans the collection and filters in Go.
func (db *DB) ListByAttendee(ctx context.Context, uid string) ([]model.Event, error) {
	events, err := db.List(ctx)
	if err != nil {
		return nil, err
	}

	joined := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.HasAttendee(uid) {
			joined = append(joined, e)
		}
	}
	return joined, nil
}

// scanner lets scanEvent work for both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*model.Event, error) {
	var e model.Event
	var attendees string

	err := s.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Category,
		&e.Date,
		&e.Time,
		&e.Location,
		&e.Cost,
		&e.Capacity,
		&e.SpotsRemaining,
		&attendees,
		&e.CreatedBy,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(attendees), &e.Attendees); err != nil {
		return nil, fmt.Errorf("decoding attendees for event %s: %w", e.ID, err)
	}
	if e.Attendees == nil {
		e.Attendees = []model.Attendee{}
	}

	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	events := make([]model.Event, 0, 16)

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		events = append(events, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}

	return events, nil
}
