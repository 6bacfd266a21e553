package repositories

import (
	"context"
	"database/sql"
)

// GroupRepository manages groups, their members and their capability grants. It backs
// the admin commands; request handling only reads through CapabilityRepository.
type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Ensure returns the id of the named group, creating it when missing.
func (r *GroupRepository) Ensure(ctx context.Context, name string) (int64, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO "groups" (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return 0, wrap(err, "insert group "+name)
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM "groups" WHERE name = $1`, name).Scan(&id)
	return id, wrap(err, "query group "+name)
}

// AddMember puts a person into a group.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, personID int64) error {
	query := `
        INSERT INTO people_groups (people_id, group_id)
        VALUES ($1, $2)
        ON CONFLICT (people_id, group_id) DO NOTHING
    `
	_, err := r.db.ExecContext(ctx, query, personID, groupID)
	return wrap(err, "add group member")
}

// Grant attaches a capability to a group, creating the capability when missing.
func (r *GroupRepository) Grant(ctx context.Context, groupID int64, capability string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err, "begin grant")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO capabilities (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, capability); err != nil {
		return wrap(err, "insert capability "+capability)
	}

	var capabilityID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM capabilities WHERE name = $1`, capability).Scan(&capabilityID); err != nil {
		return wrap(err, "query capability "+capability)
	}

	query := `
        INSERT INTO group_capabilities (group_id, capabilities_id)
        VALUES ($1, $2)
        ON CONFLICT (group_id, capabilities_id) DO NOTHING
    `
	if _, err := tx.ExecContext(ctx, query, groupID, capabilityID); err != nil {
		return wrap(err, "grant capability")
	}

	return wrap(tx.Commit(), "commit grant")
}
