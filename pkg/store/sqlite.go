package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// dsn enables foreign keys on every pooled connection so that run tables
// cascade on delete.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on"
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		input_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		report JSON
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_input_hash ON runs(input_hash);

	-- Clustered network snapshot of a cluster run
	CREATE TABLE IF NOT EXISTS topologies (
		run_id TEXT PRIMARY KEY REFERENCES runs(run_id) ON DELETE CASCADE,
		forks INTEGER NOT NULL,
		consumers INTEGER NOT NULL,
		pipes INTEGER NOT NULL,
		snapshot JSON NOT NULL
	);

	-- Summary table of a result run, one row per component
	CREATE TABLE IF NOT EXISTS summary_rows (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		component_id TEXT NOT NULL,
		component_type TEXT NOT NULL,
		input_1 REAL NOT NULL,
		input_2 REAL NOT NULL,
		output_1 REAL NOT NULL,
		output_2 REAL NOT NULL,
		capacity REAL NOT NULL,
		variable_costs REAL NOT NULL,
		periodical_costs REAL NOT NULL,
		investment REAL NOT NULL,
		max_investment TEXT NOT NULL,
		constraint_costs REAL NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	-- Flow report columns of a result run
	CREATE TABLE IF NOT EXISTS flow_columns (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		series JSON NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE TABLE IF NOT EXISTS totals (
		run_id TEXT PRIMARY KEY REFERENCES runs(run_id) ON DELETE CASCADE,
		periodical_costs REAL NOT NULL,
		variable_costs REAL NOT NULL,
		constraint_costs REAL NOT NULL,
		demand REAL NOT NULL
	);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create run tables: %w", err)
	}

	return nil
}
