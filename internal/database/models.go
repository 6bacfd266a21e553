package database

import "time"

// GuestGroup is the well-known group whose capabilities apply to anonymous callers.
const GuestGroup = "Guests"

// Person represents someone who can log in
type Person struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"` // Never include in JSON
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Group is a named collection of people and capabilities
type Group struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Capability is a named permission granted to groups
type Capability struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Session represents a logged-in person's server-side session
type Session struct {
	Session   string    `db:"session" json:"session"`
	PeopleID  int64     `db:"people_id" json:"people_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Active reports whether the session is still valid at now.
func (s *Session) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
