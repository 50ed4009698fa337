// Package history keeps a PostgreSQL log of identity transitions at the
// kiosk: who was recognized, when, and at which face level.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teslashibe/go-kiosk/pkg/recognition"
)

// Entry is one logged transition.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	MemberID  string    `json:"member_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Level     string    `json:"level"`
	IsNew     bool      `json:"is_new"`
	At        time.Time `json:"at"`
}

// db is the subset of pgxpool.Pool the store uses.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store writes transitions to PostgreSQL. It implements recognition.Recorder.
type Store struct {
	db     db
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open creates a connection pool and ensures the schema exists.
func Open(ctx context.Context, connString string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	s := &Store{db: pool, pool: pool, logger: logger.With("component", "history.store")}
	s.logger.Info("history store ready")
	return s, nil
}

func migrate(ctx context.Context, conn db) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS identity_transitions (
			id         BIGSERIAL PRIMARY KEY,
			kind       TEXT NOT NULL,
			member_id  TEXT,
			request_id TEXT,
			level      TEXT NOT NULL,
			is_new     BOOLEAN NOT NULL DEFAULT FALSE,
			at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS identity_transitions_at_idx ON identity_transitions (at DESC);
		CREATE INDEX IF NOT EXISTS identity_transitions_member_idx ON identity_transitions (member_id);
	`)
	return err
}

// Record inserts one transition.
func (s *Store) Record(ctx context.Context, t recognition.Transition) error {
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO identity_transitions (kind, member_id, request_id, level, is_new, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(t.Kind), nullable(t.MemberID), nullable(t.RequestID), t.Level.String(), t.IsNew, at)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Recent returns up to limit transitions, newest first. A non-empty
// memberID restricts the result to that member.
func (s *Store) Recent(ctx context.Context, limit int, memberID string) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, member_id, request_id, level, is_new, at FROM identity_transitions`
	args := []any{limit}
	if memberID != "" {
		query += ` WHERE member_id = $2`
		args = append(args, memberID)
	}
	query += ` ORDER BY at DESC, id DESC LIMIT $1`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var member, request *string
		if err := rows.Scan(&e.ID, &e.Kind, &member, &request, &e.Level, &e.IsNew, &e.At); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if member != nil {
			e.MemberID = *member
		}
		if request != nil {
			e.RequestID = *request
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ recognition.Recorder = (*Store)(nil)
