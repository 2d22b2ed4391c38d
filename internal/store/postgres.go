// Package store persists the call journal in Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Call journal ---

// Call is one recorded tool invocation.
type Call struct {
	ID           int64     `json:"id"`
	Operation    string    `json:"operation"`
	Source       string    `json:"source"`
	Success      bool      `json:"success"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ClampLimit bounds a caller-supplied page size.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}

func (s *Store) RecordCall(ctx context.Context, c Call) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO call_journal (operation, source, success, error_code, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.Operation, c.Source, c.Success, c.ErrorCode, c.ErrorMessage, c.DurationMs)
	return err
}

// ListCalls returns the most recent calls, newest first. An empty operation
// lists every operation.
func (s *Store) ListCalls(ctx context.Context, operation string, limit int) ([]Call, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, operation, source, success, error_code, error_message, duration_ms, created_at
		FROM call_journal
		WHERE ($1::text = '' OR operation = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, operation, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calls := []Call{}
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.ID, &c.Operation, &c.Source, &c.Success, &c.ErrorCode, &c.ErrorMessage, &c.DurationMs, &c.CreatedAt); err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// SourceCounts aggregates successful calls per source since the given time.
func (s *Store) SourceCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, count(*) FROM call_journal
		WHERE success AND created_at >= $1
		GROUP BY source`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var src string
		var n int64
		if err := rows.Scan(&src, &n); err != nil {
			return nil, err
		}
		out[src] = n
	}
	return out, rows.Err()
}
