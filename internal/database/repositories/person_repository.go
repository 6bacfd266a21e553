package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"

	"access-portal/internal/database"

	"github.com/pkg/errors"
)

type PersonRepository struct {
	db *sql.DB
}

func NewPersonRepository(db *sql.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) Create(ctx context.Context, person *database.Person) error {
	query := `
        INSERT INTO people (email, password_hash, first_name, last_name)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	err := r.db.QueryRowContext(ctx, query, person.Email, person.PasswordHash,
		person.FirstName, person.LastName).Scan(&person.ID)
	return wrap(err, "insert person")
}

func (r *PersonRepository) GetByEmail(ctx context.Context, email string) (*database.Person, error) {
	query := `
        SELECT id, email, password_hash, first_name, last_name, created_at
        FROM people
        WHERE email = $1
    `
	return r.queryOne(ctx, query, email)
}

// GetBySession returns the person owning sessionToken.
func (r *PersonRepository) GetBySession(ctx context.Context, sessionToken string) (*database.Person, error) {
	query := `
        SELECT people.id, people.email, people.password_hash, people.first_name,
               people.last_name, people.created_at
        FROM people
        JOIN sessions ON sessions.people_id = people.id
        WHERE sessions.session = $1
    `
	return r.queryOne(ctx, query, sessionToken)
}

func (r *PersonRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*database.Person, error) {
	var p database.Person
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName, &p.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return nil, wrap(err, "query person")
	}
	return &p, nil
}
