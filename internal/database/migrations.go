package database

import (
	"database/sql"
	"fmt"
)

// RunMigrations creates the access-control schema. dialect is the configured database
// type ("sqlite" or "postgres").
func RunMigrations(db *sql.DB, dialect string) error {
	idColumn, err := idColumnFor(dialect)
	if err != nil {
		return err
	}

	migrations := []string{
		fmt.Sprintf(createPeopleTable, idColumn),
		fmt.Sprintf(createGroupsTable, idColumn),
		fmt.Sprintf(createCapabilitiesTable, idColumn),
		createPeopleGroupsTable,
		createGroupCapabilitiesTable,
		createSessionsTable,
		createSessionsIndex,
		createPeopleGroupsIndex,
		seedGuestGroup,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

func idColumnFor(dialect string) (string, error) {
	switch dialect {
	case "sqlite":
		return "id INTEGER PRIMARY KEY AUTOINCREMENT", nil
	case "postgres":
		return "id SERIAL PRIMARY KEY", nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", dialect)
	}
}

// "groups" is quoted throughout: it is a keyword in SQLite and PostgreSQL.
const createPeopleTable = `
CREATE TABLE IF NOT EXISTS people (
    %s,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createGroupsTable = `
CREATE TABLE IF NOT EXISTS "groups" (
    %s,
    name VARCHAR(100) UNIQUE NOT NULL
);`

const createCapabilitiesTable = `
CREATE TABLE IF NOT EXISTS capabilities (
    %s,
    name VARCHAR(100) UNIQUE NOT NULL
);`

const createPeopleGroupsTable = `
CREATE TABLE IF NOT EXISTS people_groups (
    people_id INTEGER NOT NULL REFERENCES people(id),
    group_id INTEGER NOT NULL REFERENCES "groups"(id),
    PRIMARY KEY (people_id, group_id)
);`

const createGroupCapabilitiesTable = `
CREATE TABLE IF NOT EXISTS group_capabilities (
    group_id INTEGER NOT NULL REFERENCES "groups"(id),
    capabilities_id INTEGER NOT NULL REFERENCES capabilities(id),
    PRIMARY KEY (group_id, capabilities_id)
);`

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
    session VARCHAR(255) PRIMARY KEY,
    people_id INTEGER NOT NULL REFERENCES people(id),
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createSessionsIndex = `CREATE INDEX IF NOT EXISTS idx_sessions_people ON sessions(people_id);`

const createPeopleGroupsIndex = `CREATE INDEX IF NOT EXISTS idx_people_groups_group ON people_groups(group_id);`

const seedGuestGroup = `INSERT INTO "groups" (name) VALUES ('Guests') ON CONFLICT (name) DO NOTHING;`
