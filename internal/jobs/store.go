// Package jobs manages render job persistence backed by SQLite.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the render job collection.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts a job for the given URL unless one already exists, tagging it
// with the batch identifier. Re-importing the same URL is a no-op; the
// returned bool reports whether a row was inserted.
func (s *Store) Add(ctx context.Context, url, batch string) (bool, error) {
	if url == "" {
		return false, errors.New("url is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO render_jobs (url, batch, added_at) VALUES (?, ?, ?)
         ON CONFLICT(url) DO NOTHING`,
		url,
		batch,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetByID fetches a job by identifier, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Pending returns every record with no dispatch attempt yet, oldest first.
func (s *Store) Pending(ctx context.Context) ([]*Job, error) {
	return s.query(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE rendered_at IS NULL ORDER BY added_at, id`)
}

// List returns all job records, oldest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	return s.query(ctx, `SELECT `+jobColumns+` FROM render_jobs ORDER BY added_at, id`)
}

// SetResult records a successful attempt. Exactly one of SetResult or
// SetError is applied per dispatch attempt.
func (s *Store) SetResult(ctx context.Context, id int64, resultJSON string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs SET result_json = ?, error_message = NULL, rendered_at = ? WHERE id = ?`,
		resultJSON,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	return nil
}

// SetError records a failed attempt.
func (s *Store) SetError(ctx context.Context, id int64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs SET error_message = ?, result_json = NULL, rendered_at = ? WHERE id = ?`,
		message,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("set error: %w", err)
	}
	return nil
}

// Stats returns record counts per outcome.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT rendered_at IS NOT NULL, COALESCE(result_json, '') <> '', COUNT(1)
         FROM render_jobs GROUP BY 1, 2`,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var attempted, succeeded bool
		var count int
		if err := rows.Scan(&attempted, &succeeded, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch {
		case !attempted:
			stats.Pending += count
		case succeeded:
			stats.Succeeded += count
		default:
			stats.Failed += count
		}
	}
	return stats, rows.Err()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

const jobColumns = "id, url, batch, added_at, result_json, error_message, rendered_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          int64
		url         string
		batch       string
		addedRaw    string
		resultJSON  sql.NullString
		errorText   sql.NullString
		renderedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &url, &batch, &addedRaw, &resultJSON, &errorText, &renderedRaw); err != nil {
		return nil, err
	}

	job := &Job{
		ID:         id,
		URL:        url,
		Batch:      batch,
		ResultJSON: resultJSON.String,
		ErrorText:  errorText.String,
	}
	if added, err := time.Parse(time.RFC3339Nano, addedRaw); err == nil {
		job.AddedAt = added
	}
	if renderedRaw.Valid {
		if rendered, err := time.Parse(time.RFC3339Nano, renderedRaw.String); err == nil {
			job.RenderedAt = &rendered
		}
	}
	return job, nil
}
