// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Two sign-in paths exist: Google OAuth (GoogleID holds the stable "sub"
// claim) and email/password (PasswordHash holds the bcrypt hash). Both map to
// the same internal xid, so events always reference our own identifier space
// rather than a provider's.
type User struct {
	ID           string    `json:"id"          db:"id"`
	GoogleID     string    `json:"-"           db:"google_id"`
	Email        string    `json:"email"       db:"email"`
	DisplayName  string    `json:"displayName" db:"display_name"`
	PhotoURL     string    `json:"photoURL"    db:"photo_url"`
	PasswordHash string    `json:"-"           db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"   db:"updated_at"`
}

// Identity returns the attendee snapshot for this user as it is embedded in
// an event at join time.
func (u *User) Identity() Attendee {
	name := u.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	return Attendee{
		UID:         u.ID,
		DisplayName: name,
		PhotoURL:    u.PhotoURL,
	}
}
