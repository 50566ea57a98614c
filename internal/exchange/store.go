// Package exchange persists chat exchanges (prompt/response pairs) in
// PostgreSQL so the orchestrator can carry recent conversation context
// into new prompts.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Exchange is one stored prompt/response pair.
type Exchange struct {
	ID        int64
	Prompt    string
	Response  string
	CreatedAt time.Time
}

// DB is the subset of pgxpool.Pool the store needs. Defining it here
// keeps the store testable without a live database.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages exchange persistence. It is safe for concurrent use.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{db: db, logger: logger}
}

// Save records one completed exchange.
func (s *Store) Save(ctx context.Context, prompt, response string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO exchanges (prompt, response) VALUES ($1, $2)`,
		prompt, response)
	if err != nil {
		return fmt.Errorf("saving exchange: %w", err)
	}

	s.logger.Debug("saved exchange",
		"prompt_length", len(prompt),
		"response_length", len(response))

	return nil
}

// Recent returns up to limit exchanges in chronological order, oldest
// first, so they read as a conversation transcript.
func (s *Store) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Newest-first window, flipped to transcript order below.
	rows, err := s.db.Query(ctx,
		`SELECT id, prompt, response, created_at
		 FROM exchanges
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.ID, &e.Prompt, &e.Response, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		exchanges = append(exchanges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading exchanges: %w", err)
	}

	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}

	return exchanges, nil
}

// Count returns the total number of stored exchanges.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM exchanges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting exchanges: %w", err)
	}
	return n, nil
}
