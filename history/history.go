// Package history keeps a log of scrape runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run summarises one scrape run.
type Run struct {
	ID          uuid.UUID `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source"`
	Competition string    `json:"competition"`
	Season      string    `json:"season"`
	TotalRows   int       `json:"total_rows"`
	Count       int       `json:"count"`
	// Diagnostics is set when debug artifacts were written for the run.
	Diagnostics bool `json:"diagnostics"`
}

// Store records runs in a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at dsn.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		source TEXT NOT NULL,
		competition TEXT NOT NULL,
		season TEXT NOT NULL,
		total_rows INTEGER NOT NULL DEFAULT 0,
		item_count INTEGER NOT NULL DEFAULT 0,
		diagnostics INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS runs_generated_at ON runs (generated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run. A nil ID is replaced with a fresh one and a zero
// GeneratedAt with the current time; both are written back to run.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.GeneratedAt.IsZero() {
		run.GeneratedAt = time.Now()
	}
	run.GeneratedAt = run.GeneratedAt.UTC().Truncate(time.Second)

	query := `
		INSERT INTO runs (run_id, generated_at, source, competition, season,
		                  total_rows, item_count, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID.String(), run.GeneratedAt.Format(time.RFC3339),
		run.Source, run.Competition, run.Season,
		run.TotalRows, run.Count, run.Diagnostics,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, generated_at, source, competition, season,
		       total_rows, item_count, diagnostics
		FROM runs
		ORDER BY generated_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var idStr, generatedAtStr string

		err := rows.Scan(
			&idStr, &generatedAtStr, &run.Source, &run.Competition, &run.Season,
			&run.TotalRows, &run.Count, &run.Diagnostics,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", idStr, err)
		}
		run.GeneratedAt, err = time.Parse(time.RFC3339, generatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("invalid run time %q: %w", generatedAtStr, err)
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	return runs, nil
}
