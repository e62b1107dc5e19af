package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add lookup indices for run listing",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_stress_runs_started_at ON stress_runs(started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_stress_runs_status ON stress_runs(status);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_stress_runs_started_at;
			DROP INDEX IF EXISTS idx_stress_runs_status;
		`,
	},
	{
		Version: 2,
		Name:    "Add composite index for per-run result ordering",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_stress_results_run_elapsed ON stress_results(run_id, elapsed_ms);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_stress_results_run_elapsed;
		`,
	},
	{
		Version: 3,
		Name:    "Keep query projections with results",
		Up: `
			ALTER TABLE stress_results ADD COLUMN query TEXT;
			ALTER TABLE stress_results ADD COLUMN query_error TEXT;
		`,
		Down: `
			ALTER TABLE stress_results DROP COLUMN query;
			ALTER TABLE stress_results DROP COLUMN query_error;
		`,
	},
}

// InitSchema creates all tables required across all modules
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS stress_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scenario_name TEXT NOT NULL,
		mode TEXT NOT NULL,
		base_url TEXT NOT NULL,
		account TEXT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL,
		total_orders INTEGER DEFAULT 0,
		total_sent INTEGER DEFAULT 0,
		total_completed INTEGER DEFAULT 0,
		total_accepted INTEGER DEFAULT 0,
		total_rejected INTEGER DEFAULT 0,
		total_errors INTEGER DEFAULT 0,
		avg_duration_ms REAL DEFAULT 0,
		min_duration_ms INTEGER DEFAULT 0,
		max_duration_ms INTEGER DEFAULT 0,
		p50_duration_ms INTEGER DEFAULT 0,
		p95_duration_ms INTEGER DEFAULT 0,
		p99_duration_ms INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS stress_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		case_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		body TEXT,
		error_message TEXT,
		FOREIGN KEY (run_id) REFERENCES stress_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_stress_results_run_id ON stress_results(run_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
