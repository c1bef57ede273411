package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers and keeps ":memory:" databases
	// shared across queries.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema when it does not exist yet.
func (db *DB) RunMigrations() error {
	migration := `
-- Projects; the folder location is derived from status, never stored
CREATE TABLE IF NOT EXISTS projects (
    number TEXT PRIMARY KEY,
    year INTEGER NOT NULL CHECK(year BETWEEN 0 AND 99),
    country INTEGER NOT NULL CHECK(country BETWEEN 1 AND 999),
    seq INTEGER NOT NULL CHECK(seq BETWEEN 1 AND 99),
    name TEXT NOT NULL,
    short_name TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('Draft', 'RFP', 'Active', 'On Hold', 'Completed', 'Cancelled', 'Lost')),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (year, country, seq)
);
CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);

-- Proposals; project_number has no foreign key so that orphans surface in
-- the reconciliation report instead of failing imports
CREATE TABLE IF NOT EXISTS proposals (
    id TEXT PRIMARY KEY,
    project_number TEXT NOT NULL,
    title TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL CHECK(status IN ('Draft', 'Prepared', 'Active', 'Sent', 'Under Review',
        'Clarification', 'Negotiation', 'Awarded', 'Lost', 'Cancelled')),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_proposals_project ON proposals(project_number);

-- Status history (append-only)
CREATE TABLE IF NOT EXISTS status_history (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    entity_kind TEXT NOT NULL CHECK(entity_kind IN ('project', 'proposal')),
    entity_id TEXT NOT NULL,
    old_status TEXT NOT NULL,
    new_status TEXT NOT NULL,
    origin TEXT NOT NULL CHECK(origin IN ('direct', 'cascade')),
    triggered_kind TEXT,
    triggered_id TEXT,
    operation_id TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_entity ON status_history(entity_kind, entity_id);
CREATE INDEX IF NOT EXISTS idx_history_operation ON status_history(operation_id);

CREATE TRIGGER IF NOT EXISTS status_history_no_update BEFORE UPDATE ON status_history BEGIN
    SELECT RAISE(ABORT, 'status history is append-only');
END;

CREATE TRIGGER IF NOT EXISTS status_history_no_delete BEFORE DELETE ON status_history BEGIN
    SELECT RAISE(ABORT, 'status history is append-only');
END;
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
