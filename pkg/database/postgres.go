package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trial-sponsor-tracker/pkg/config"
	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("not found")

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS trial_runs (
	id          UUID PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	filters     JSONB NOT NULL DEFAULT '{}',
	page_cap    INTEGER NOT NULL DEFAULT 0,
	pages       INTEGER NOT NULL DEFAULT 0,
	row_count   INTEGER NOT NULL DEFAULT 0,
	public_rows INTEGER NOT NULL DEFAULT 0,
	sponsors    INTEGER NOT NULL DEFAULT 0,
	stop_reason TEXT NOT NULL,
	last_error  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trial_rows (
	run_id          UUID NOT NULL REFERENCES trial_runs(id) ON DELETE CASCADE,
	row_index       INTEGER NOT NULL,
	nct_id          TEXT NOT NULL,
	sponsor         TEXT NOT NULL,
	ticker          TEXT,
	publicly_traded BOOLEAN NOT NULL,
	state           TEXT NOT NULL,
	phases          TEXT[],
	record          JSONB NOT NULL,
	resolution      JSONB NOT NULL,
	PRIMARY KEY (run_id, row_index)
);

CREATE INDEX IF NOT EXISTS trial_rows_ticker_idx ON trial_rows (ticker) WHERE ticker IS NOT NULL;
`

// Store persists run history and enriched rows
type Store struct {
	db *sql.DB
}

// NewStore creates a new database store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun inserts or updates a run summary
func (s *Store) SaveRun(ctx context.Context, run *types.RunReport) error {
	filters, err := json.Marshal(run.Filters)
	if err != nil {
		return fmt.Errorf("failed to encode filters: %w", err)
	}

	query := `
		INSERT INTO trial_runs (
			id, started_at, finished_at, filters, page_cap, pages,
			row_count, public_rows, sponsors, stop_reason, last_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			pages = EXCLUDED.pages,
			row_count = EXCLUDED.row_count,
			public_rows = EXCLUDED.public_rows,
			sponsors = EXCLUDED.sponsors,
			stop_reason = EXCLUDED.stop_reason,
			last_error = EXCLUDED.last_error
	`

	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, filters, run.PageCap, run.Pages,
		run.Rows, run.PublicRows, run.Sponsors, string(run.StopReason), run.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}
	return nil
}

// SaveRows stores the rows of a run in a single transaction
func (s *Store) SaveRows(ctx context.Context, runID string, rows []types.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trial_rows (
			run_id, row_index, nct_id, sponsor, ticker, publicly_traded,
			state, phases, record, resolution
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, row_index) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		record, err := json.Marshal(row.Record)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", row.Record.NCTID, err)
		}
		resolution, err := json.Marshal(row.Resolution)
		if err != nil {
			return fmt.Errorf("failed to encode resolution %s: %w", row.Record.NCTID, err)
		}

		_, err = stmt.ExecContext(ctx,
			runID, row.Index, row.Record.NCTID, row.Record.Sponsor, row.Resolution.Ticker,
			row.PubliclyTraded(), string(row.Resolution.State), pq.Array(row.Record.Phases.Values),
			record, resolution,
		)
		if err != nil {
			return fmt.Errorf("failed to store row %d: %w", row.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rows: %w", err)
	}
	return nil
}

const runColumns = `
	id, started_at, finished_at, filters, page_cap, pages,
	row_count, public_rows, sponsors, stop_reason, last_error
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*types.RunReport, error) {
	var (
		run        types.RunReport
		filters    []byte
		stopReason string
	)
	err := row.Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &filters, &run.PageCap, &run.Pages,
		&run.Rows, &run.PublicRows, &run.Sponsors, &stopReason, &run.LastError,
	)
	if err != nil {
		return nil, err
	}
	run.StopReason = types.StopReason(stopReason)
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &run.Filters); err != nil {
			return nil, fmt.Errorf("failed to decode filters of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.RunReport, error) {
	query := `SELECT ` + runColumns + ` FROM trial_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]types.RunReport, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns a run by id, or ErrNotFound
func (s *Store) GetRun(ctx context.Context, id string) (*types.RunReport, error) {
	query := `SELECT ` + runColumns + ` FROM trial_runs WHERE id = $1`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return run, nil
}

// GetRows returns a page of rows of a run in row order
func (s *Store) GetRows(ctx context.Context, runID string, limit, offset int) ([]types.Row, error) {
	query := `
		SELECT row_index, record, resolution
		FROM trial_rows
		WHERE run_id = $1
		ORDER BY row_index ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows of run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make([]types.Row, 0)
	for rows.Next() {
		var (
			row                types.Row
			record, resolution []byte
		)
		if err := rows.Scan(&row.Index, &record, &resolution); err != nil {
			return nil, fmt.Errorf("failed to scan trial row: %w", err)
		}
		if err := json.Unmarshal(record, &row.Record); err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", row.Index, err)
		}
		if err := json.Unmarshal(resolution, &row.Resolution); err != nil {
			return nil, fmt.Errorf("failed to decode resolution %d: %w", row.Index, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
