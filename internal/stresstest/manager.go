package stresstest

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/orderstress/internal/migrations"
)

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("run not found")

// Manager handles run and result persistence
type Manager struct {
	db *sql.DB
}

// NewManager opens (or creates) the database at dbPath
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and every :memory: connection is a separate database
	db.SetMaxOpenConns(1)

	m := &Manager{db: db}

	// Run database migrations (includes schema initialization)
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return m, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateRun inserts a new run record and sets run.ID
func (m *Manager) CreateRun(run *Run) error {
	result, err := m.db.Exec(`
		INSERT INTO stress_runs
		(scenario_name, mode, base_url, account, started_at, status, total_orders)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ScenarioName, run.Mode, run.BaseURL, run.Account, run.StartedAt, run.Status, run.TotalOrders)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateRun updates a run record
func (m *Manager) UpdateRun(run *Run) error {
	_, err := m.db.Exec(`
		UPDATE stress_runs
		SET completed_at = ?, status = ?, total_sent = ?, total_completed = ?,
		    total_accepted = ?, total_rejected = ?, total_errors = ?,
		    avg_duration_ms = ?, min_duration_ms = ?, max_duration_ms = ?,
		    p50_duration_ms = ?, p95_duration_ms = ?, p99_duration_ms = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.TotalSent, run.TotalCompleted,
		run.TotalAccepted, run.TotalRejected, run.TotalErrors,
		run.AvgDurationMs, run.MinDurationMs, run.MaxDurationMs,
		run.P50DurationMs, run.P95DurationMs, run.P99DurationMs, run.ID)
	return err
}

const runColumns = `
	id, scenario_name, mode, base_url, COALESCE(account, ''), started_at, completed_at, status,
	total_orders, total_sent, total_completed, total_accepted, total_rejected, total_errors,
	COALESCE(avg_duration_ms, 0), COALESCE(min_duration_ms, 0), COALESCE(max_duration_ms, 0),
	COALESCE(p50_duration_ms, 0), COALESCE(p95_duration_ms, 0), COALESCE(p99_duration_ms, 0)`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.ScenarioName, &run.Mode, &run.BaseURL, &run.Account,
		&run.StartedAt, &completedAt, &run.Status,
		&run.TotalOrders, &run.TotalSent, &run.TotalCompleted,
		&run.TotalAccepted, &run.TotalRejected, &run.TotalErrors,
		&run.AvgDurationMs, &run.MinDurationMs, &run.MaxDurationMs,
		&run.P50DurationMs, &run.P95DurationMs, &run.P99DurationMs)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (m *Manager) GetRun(id int64) (*Run, error) {
	run, err := scanRun(m.db.QueryRow(`SELECT `+runColumns+` FROM stress_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs, newest first. limit <= 0 means all.
func (m *Manager) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM stress_runs ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and all its results
func (m *Manager) DeleteRun(id int64) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM stress_results WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	res, err := tx.Exec("DELETE FROM stress_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}

	return tx.Commit()
}

// SaveResultsBatch saves multiple results in a single transaction
func (m *Manager) SaveResultsBatch(results []*Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stress_results
		(run_id, seq, case_name, payload, timestamp, elapsed_ms, duration_ms, status_code, outcome, body, error_message, query, query_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		_, err := stmt.Exec(r.RunID, r.Seq, r.CaseName, r.Payload, r.Timestamp, r.ElapsedMs,
			r.DurationMs, r.StatusCode, string(r.Outcome), r.Body, r.Error, r.Query, r.QueryError)
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	return tx.Commit()
}

// GetResults retrieves all results for a run in arrival order
func (m *Manager) GetResults(runID int64) ([]*Result, error) {
	rows, err := m.db.Query(`
		SELECT run_id, seq, case_name, payload, timestamp, elapsed_ms, duration_ms, status_code,
		       outcome, COALESCE(body, ''), COALESCE(error_message, ''),
		       COALESCE(query, ''), COALESCE(query_error, '')
		FROM stress_results
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		r := &Result{}
		var outcome string
		err := rows.Scan(&r.RunID, &r.Seq, &r.CaseName, &r.Payload, &r.Timestamp, &r.ElapsedMs,
			&r.DurationMs, &r.StatusCode, &outcome, &r.Body, &r.Error, &r.Query, &r.QueryError)
		if err != nil {
			return nil, err
		}
		r.Outcome = Outcome(outcome)
		results = append(results, r)
	}
	return results, rows.Err()
}
