// Package store keeps run history and proxy probe results in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	started_at         INTEGER NOT NULL,
	duration_ms        INTEGER NOT NULL,
	primary_source     TEXT NOT NULL,
	secondary_source   TEXT NOT NULL,
	output             TEXT NOT NULL,
	primary_channels   INTEGER NOT NULL,
	secondary_channels INTEGER NOT NULL,
	matched            INTEGER NOT NULL,
	merged             INTEGER NOT NULL,
	dropped            INTEGER NOT NULL,
	drift_accepted     INTEGER NOT NULL,
	drift_rejected     INTEGER NOT NULL,
	error              TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
CREATE TABLE IF NOT EXISTS proxies (
	addr        TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	latency_ms  INTEGER NOT NULL,
	checked_at  INTEGER NOT NULL
);
`

// Run is one recorded reconciliation run.
type Run struct {
	ID                string        `json:"id"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	PrimarySource     string        `json:"primary_source"`
	SecondarySource   string        `json:"secondary_source"`
	Output            string        `json:"output"`
	PrimaryChannels   int           `json:"primary_channels"`
	SecondaryChannels int           `json:"secondary_channels"`
	Matched           int           `json:"matched"`
	Merged            int           `json:"merged"`
	Dropped           int           `json:"dropped"`
	DriftAccepted     int           `json:"drift_accepted"`
	DriftRejected     int           `json:"drift_rejected"`
	Error             string        `json:"error,omitempty"`
}

// Store is a handle on the database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts r, assigning an id when it has none, and returns the id.
func (s *Store) RecordRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (id, started_at, duration_ms, primary_source, secondary_source, output,
		primary_channels, secondary_channels, matched, merged, dropped, drift_accepted, drift_rejected, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixMilli(), r.Duration.Milliseconds(), r.PrimarySource, r.SecondarySource, r.Output,
		r.PrimaryChannels, r.SecondaryChannels, r.Matched, r.Merged, r.Dropped, r.DriftAccepted, r.DriftRejected, r.Error)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return r.ID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, duration_ms, primary_source, secondary_source, output,
		primary_channels, secondary_channels, matched, merged, dropped, drift_accepted, drift_rejected, error
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started, durMs int64
		if err := rows.Scan(&r.ID, &started, &durMs, &r.PrimarySource, &r.SecondarySource, &r.Output,
			&r.PrimaryChannels, &r.SecondaryChannels, &r.Matched, &r.Merged, &r.Dropped,
			&r.DriftAccepted, &r.DriftRejected, &r.Error); err != nil {
			return nil, fmt.Errorf("recent runs: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordProxy upserts the latest probe outcome for addr.
func (s *Store) RecordProxy(ctx context.Context, addr, status string, latency time.Duration, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO proxies (addr, status, latency_ms, checked_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(addr) DO UPDATE SET status = excluded.status, latency_ms = excluded.latency_ms, checked_at = excluded.checked_at`,
		addr, status, latency.Milliseconds(), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("record proxy: %w", err)
	}
	return nil
}

// LastGoodProxy returns the most recently checked proxy whose last probe was
// "ok" within maxAge, or "" when there is none.
func (s *Store) LastGoodProxy(ctx context.Context, maxAge time.Duration, now time.Time) (string, error) {
	var addr string
	err := s.db.QueryRowContext(ctx, `SELECT addr FROM proxies WHERE status = 'ok' AND checked_at >= ?
		ORDER BY checked_at DESC, latency_ms LIMIT 1`, now.Add(-maxAge).UnixMilli()).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last good proxy: %w", err)
	}
	return addr, nil
}
