package interfaces

import (
	"context"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/database"
)

// AuthService checks credentials and manages server-side sessions.
type AuthService interface {
	dispatch.SessionTerminator

	// Authenticate returns the person for email when password matches, or an
	// Unauthorized error.
	Authenticate(ctx context.Context, email, password string) (*database.Person, error)
	// StartSession stores a new session for person and returns it.
	StartSession(ctx context.Context, person *database.Person) (*database.Session, error)
}
