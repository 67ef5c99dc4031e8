// Package repository declares the storage interfaces consumed by the service
// layer. The sqlite subpackage is the concrete implementation; tests inject
// in-memory mocks.
package repository

import (
	"context"
	"errors"

	"github.com/sffxzzp/northbound-gather/internal/model"
)

// ErrVersionConflict is returned by EventRepository.UpdateCAS when the stored
// record's version no longer matches the snapshot the caller read. The write
// is not applied; the caller must re-read and recompute before trying again.
var ErrVersionConflict = errors.New("event version conflict")

// EventRepository is the document-store contract for events.
//
// Mutations to a live event go through UpdateCAS, a conditional write keyed
// on the version read with GetByID. Create and Delete are point operations;
// RSVPs are embedded in the event record, so deletes need no cascade.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)

	// UpdateCAS writes every mutable field of event and bumps the stored
	// version, but only if the stored version still equals expectedVersion.
	// Returns ErrVersionConflict when a concurrent writer got there first,
	// and a NotFound error when the event no longer exists. On success,
	// event.Version is advanced to the committed value.
	UpdateCAS(ctx context.Context, event *model.Event, expectedVersion int64) error

	Delete(ctx context.Context, id string) error

	// Read projections for the query layer: List is date ascending,
	// Trending is newest first, ListByOwner matches createdBy, and
	// ListByAttendee scans embedded membership.
	List(ctx context.Context) ([]model.Event, error)
	Trending(ctx context.Context, limit int) ([]model.Event, error)
	ListByOwner(ctx context.Context, uid string) ([]model.Event, error)
	ListByAttendee(ctx context.Context, uid string) ([]model.Event, error)
}

// UserRepository handles account persistence for both sign-in paths.
type UserRepository interface {
	// UpsertGoogle creates the user on first Google login and refreshes
	// email/name/photo on subsequent logins, keyed on the Google subject.
	UpsertGoogle(ctx context.Context, user *model.User) error

	// CreateWithPassword inserts a password account; the email must be unused.
	CreateWithPassword(ctx context.Context, user *model.User) error

	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// UpdateProfile persists display name and photo URL edits. Attendee
	// snapshots already embedded in events are left untouched.
	UpdateProfile(ctx context.Context, user *model.User) error
}
