// Package model defines the data structures used throughout the application.
package model

import "time"

// Attendee is a snapshot of a user's identity taken at join time and embedded
// in the event record. It is a denormalized copy, not a reference: editing a
// profile later does not rewrite attendee entries already stored on events.
type Attendee struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Event represents a hosted adventure activity with a fixed capacity.
//
// SpotsRemaining is persisted redundantly for fast reads and must equal
// Capacity - len(Attendees) at every committed state. The two fields are only
// ever written together, through the versioned compare-and-swap path in the
// repository. Version is the snapshot tag that conditional writes are keyed
// on; it is internal and never serialized to clients.
type Event struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Date           string     `json:"date"` // YYYY-MM-DD, as submitted by the form
	Time           string     `json:"time"` // HH:MM
	Location       string     `json:"location"`
	Cost           string     `json:"cost"`
	Capacity       int        `json:"capacity"`
	SpotsRemaining int        `json:"spotsRemaining"`
	Attendees      []Attendee `json:"attendees"`
	CreatedBy      string     `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Version        int64      `json:"-"`
}

// HasAttendee reports whether uid is currently in the attendee set.
func (e *Event) HasAttendee(uid string) bool {
	for _, a := range e.Attendees {
		if a.UID == uid {
			return true
		}
	}
	return false
}

// RemoveAttendee deletes the entry with the given uid, preserving the
// insertion order of the remaining attendees. No-op when uid is not a member.
func (e *Event) RemoveAttendee(uid string) {
	for i, a := range e.Attendees {
		if a.UID == uid {
			e.Attendees = append(e.Attendees[:i], e.Attendees[i+1:]...)
			return
		}
	}
}

// IsFull reports whether no spots remain.
func (e *Event) IsFull() bool {
	return e.SpotsRemaining <= 0
}

// IsOverbooked reports the distinct state where an owner reduced capacity
// below the current attendee count. SpotsRemaining is negative here; it is
// surfaced to clients as-is, never clamped.
func (e *Event) IsOverbooked() bool {
	return e.SpotsRemaining < 0
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Cost        string `json:"cost"`
	Capacity    int    `json:"capacity"`
}

// UpdateEventRequest is the payload for editing an event. Empty strings mean
// "leave unchanged"; Capacity is a pointer so absence and an explicit value
// can be told apart.
type UpdateEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Cost        string `json:"cost"`
	Capacity    *int   `json:"capacity,omitempty"`
}
