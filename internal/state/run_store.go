package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobSuccess  JobStatus = "success"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// JobRecord is one finished job of one pipeline run.
type JobRecord struct {
	RunID     string
	Job       string
	Image     string
	Status    JobStatus
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

type RunStore struct {
	db *DB
}

// NewRunStore creates the store and ensures the table exists.
func NewRunStore(ctx context.Context, database *DB) (*RunStore, error) {
	if database == nil {
		return nil, fmt.Errorf("run_store: nil database")
	}
	s := &RunStore{db: database}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenRunStore opens the state database at path and prepares the history
// table. Close releases the database.
func OpenRunStore(ctx context.Context, path string) (*RunStore, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	s, err := NewRunStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) ensureSchema(ctx context.Context) error {
	const createTable = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	job         TEXT NOT NULL,
	image       TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_run_id ON runs (run_id);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`
	if _, err := s.db.sql.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("run_store: ensure schema: %w", err)
	}
	return nil
}

// Record appends a job outcome.
func (s *RunStore) Record(ctx context.Context, rec JobRecord) error {
	const stmt = `
INSERT INTO runs (run_id, job, image, status, error, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	_, err := s.db.sql.ExecContext(ctx, stmt,
		rec.RunID, rec.Job, rec.Image, string(rec.Status), rec.Error,
		rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("run_store: record: %w", err)
	}
	return nil
}

// List returns the newest records first. limit <= 0 means no limit.
func (s *RunStore) List(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	const q = `
SELECT run_id, job, image, status, error, started_at, duration_ms
FROM runs
ORDER BY started_at DESC, id DESC
LIMIT ?
`
	rows, err := s.db.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("run_store: list: %w", err)
	}
	return scanRecords(rows)
}

// ListRun returns the jobs of one run in the order they started.
func (s *RunStore) ListRun(ctx context.Context, runID string) ([]JobRecord, error) {
	const q = `
SELECT run_id, job, image, status, error, started_at, duration_ms
FROM runs
WHERE run_id = ?
ORDER BY started_at, id
`
	rows, err := s.db.sql.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("run_store: list run: %w", err)
	}
	return scanRecords(rows)
}

// DeleteBefore drops records of jobs started before cutoff.
func (s *RunStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const stmt = `DELETE FROM runs WHERE started_at < ?`
	res, err := s.db.sql.ExecContext(ctx, stmt, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("run_store: delete before: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]JobRecord, error) {
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var (
			rec        JobRecord
			status     string
			startedAt  int64
			durationMs int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Job, &rec.Image, &status, &rec.Error, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("run_store: scan: %w", err)
		}
		rec.Status = JobStatus(status)
		rec.StartedAt = time.UnixMilli(startedAt).UTC()
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run_store: rows: %w", err)
	}
	return out, nil
}
