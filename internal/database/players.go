package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yulbax/SecretSantaBot/internal/models"
)

// ErrNotFound is returned for any lookup that matches no row.
var ErrNotFound = errors.New("not found")

// UpsertPlayer inserts the player or refreshes name, handle and language on
// conflict. Player rows are never deleted.
func (s *Store) UpsertPlayer(ctx context.Context, p *models.Player) error {
	q := `
	INSERT INTO players (id, name, handle, language)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET name=$2, handle=$3, language=$4
	`
	if _, err := s.pool.Exec(ctx, q, p.ID, p.Name, p.Handle, string(p.Language)); err != nil {
		return fmt.Errorf("failed to upsert player %d: %w", p.ID, err)
	}
	return nil
}

// GetPlayer looks a player up by chat id. Returns ErrNotFound for first
// contact.
func (s *Store) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	var p models.Player
	var lang string
	q := `SELECT id, name, handle, language FROM players WHERE id=$1`
	err := s.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Name, &p.Handle, &lang)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %d: %w", id, err)
	}
	p.Language = models.Language(lang)
	return &p, nil
}
