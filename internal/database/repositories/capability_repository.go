package repositories

import (
	"context"
	"database/sql"
	"time"

	"access-portal/internal/database"
)

// CapabilityRepository answers which capabilities a caller holds. It never writes.
type CapabilityRepository struct {
	db  *sql.DB
	now func() time.Time
}

// CapabilityOption configures a CapabilityRepository.
type CapabilityOption func(*CapabilityRepository)

// WithCapabilityClock replaces time.Now when deciding whether a session is still active.
func WithCapabilityClock(now func() time.Time) CapabilityOption {
	return func(r *CapabilityRepository) {
		if now != nil {
			r.now = now
		}
	}
}

func NewCapabilityRepository(db *sql.DB, opts ...CapabilityOption) *CapabilityRepository {
	r := &CapabilityRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ForSession returns the distinct capability names granted to any group of the person
// owning sessionToken. An expired session grants nothing, swept or not.
func (r *CapabilityRepository) ForSession(ctx context.Context, sessionToken string) ([]string, error) {
	query := `
        SELECT DISTINCT capabilities.name
        FROM people_groups
        JOIN "groups" ON "groups".id = people_groups.group_id
        JOIN group_capabilities ON group_capabilities.group_id = "groups".id
        JOIN capabilities ON capabilities.id = group_capabilities.capabilities_id
        WHERE people_groups.people_id IN (
            SELECT people_id FROM sessions WHERE session = $1 AND expires_at > $2
        )
        ORDER BY capabilities.name
    `
	rows, err := r.db.QueryContext(ctx, query, sessionToken, r.now().UTC())
	if err != nil {
		return nil, wrap(err, "query session capabilities")
	}
	return scanNames(rows)
}

// ForGuest returns the distinct capability names of the Guests group.
func (r *CapabilityRepository) ForGuest(ctx context.Context) ([]string, error) {
	query := `
        SELECT DISTINCT capabilities.name
        FROM "groups"
        JOIN group_capabilities ON group_capabilities.group_id = "groups".id
        JOIN capabilities ON capabilities.id = group_capabilities.capabilities_id
        WHERE "groups".name = $1
        ORDER BY capabilities.name
    `
	rows, err := r.db.QueryContext(ctx, query, database.GuestGroup)
	if err != nil {
		return nil, wrap(err, "query guest capabilities")
	}
	return scanNames(rows)
}

func scanNames(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrap(err, "scan capability")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "iterate capabilities")
	}
	return names, nil
}
