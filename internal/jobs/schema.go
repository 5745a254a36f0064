package jobs

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS render_jobs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        url TEXT NOT NULL UNIQUE,
        batch TEXT NOT NULL,
        added_at TEXT NOT NULL,
        result_json TEXT,
        error_message TEXT,
        rendered_at TEXT
    )`,
	`CREATE INDEX IF NOT EXISTS idx_render_jobs_pending ON render_jobs (rendered_at) WHERE rendered_at IS NULL`,
}

func (s *Store) applyMigrations(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
