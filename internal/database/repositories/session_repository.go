package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"access-portal/internal/database"

	"github.com/pkg/errors"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *database.Session) error {
	query := `
        INSERT INTO sessions (session, people_id, expires_at, created_at)
        VALUES ($1, $2, $3, $4)
    `
	_, err := r.db.ExecContext(ctx, query, session.Session, session.PeopleID,
		session.ExpiresAt.UTC(), session.CreatedAt.UTC())
	return wrap(err, "insert session")
}

// Get returns the session row; ErrNotFound when it does not exist.
func (r *SessionRepository) Get(ctx context.Context, sessionToken string) (*database.Session, error) {
	query := `
        SELECT session, people_id, expires_at, created_at
        FROM sessions
        WHERE session = $1
    `

	var s database.Session
	err := r.db.QueryRowContext(ctx, query, sessionToken).Scan(
		&s.Session, &s.PeopleID, &s.ExpiresAt, &s.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return nil, wrap(err, "query session")
	}

	return &s, nil
}

// Delete invalidates a session. Deleting an unknown session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, sessionToken string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session = $1`, sessionToken)
	if err != nil {
		return false, wrap(err, "delete session")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, wrap(err, "delete session")
	}
	return n > 0, nil
}

// DeleteExpired removes every session that expired before now and returns how many
// were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, wrap(err, "delete expired sessions")
	}
	n, err := result.RowsAffected()
	return n, wrap(err, "delete expired sessions")
}
