package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistent backend for players, games, conversation states and
// settings, on top of a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens the pool, pings it and applies the schema.
func Connect(ctx context.Context, url string) (*Store, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		handle TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'en'
	)`,
	`CREATE TABLE IF NOT EXISTS games (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		invite_code TEXT UNIQUE,
		creator_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		start_date DATE,
		end_date DATE
	)`,
	`CREATE TABLE IF NOT EXISTS game_participants (
		game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES players(id),
		wishlist TEXT NOT NULL DEFAULT '',
		giftee_id BIGINT,
		PRIMARY KEY (game_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_states (
		user_id BIGINT PRIMARY KEY,
		state_tag TEXT NOT NULL,
		state_payload TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
