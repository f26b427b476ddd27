package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yulbax/SecretSantaBot/internal/models"
	"github.com/yulbax/SecretSantaBot/internal/santa"
)

// CreateGame inserts a freshly built game row. Participants are attached
// later via AddParticipant.
func (s *Store) CreateGame(ctx context.Context, g *santa.Game) error {
	q := `
	INSERT INTO games (id, name, invite_code, creator_id, status, start_date, end_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, q,
		g.ID, g.Name, nullableCode(g.InviteCode), g.CreatorID,
		g.Status.String(), nullableDate(g.StartDate), nullableDate(g.EndDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert game %s: %w", g.ID, err)
	}
	return nil
}

// SaveGame writes the mutable game fields (name, invite code, status, dates).
func (s *Store) SaveGame(ctx context.Context, g *santa.Game) error {
	q := `
	UPDATE games SET name=$2, invite_code=$3, status=$4, start_date=$5, end_date=$6
	WHERE id=$1
	`
	_, err := s.pool.Exec(ctx, q,
		g.ID, g.Name, nullableCode(g.InviteCode),
		g.Status.String(), nullableDate(g.StartDate), nullableDate(g.EndDate),
	)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", g.ID, err)
	}
	return nil
}

// GetGame loads a game with its participants, wishlists and pairings.
func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (*santa.Game, error) {
	q := `
	SELECT id, name, invite_code, creator_id, status, start_date, end_date
	FROM games WHERE id=$1
	`
	return s.scanGame(ctx, s.pool.QueryRow(ctx, q, id))
}

// GetGameByCode resolves an invite code to its game.
func (s *Store) GetGameByCode(ctx context.Context, code string) (*santa.Game, error) {
	q := `
	SELECT id, name, invite_code, creator_id, status, start_date, end_date
	FROM games WHERE invite_code=$1
	`
	return s.scanGame(ctx, s.pool.QueryRow(ctx, q, code))
}

// DeleteGame removes the game; participant rows go with it via ON DELETE
// CASCADE.
func (s *Store) DeleteGame(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id=$1`, id); err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	return nil
}

// AddParticipant attaches a player to a game. Idempotent: re-adding the same
// player keeps the existing wishlist row.
func (s *Store) AddParticipant(ctx context.Context, gameID uuid.UUID, userID int64) error {
	q := `
	INSERT INTO game_participants (game_id, user_id)
	VALUES ($1, $2)
	ON CONFLICT (game_id, user_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, q, gameID, userID); err != nil {
		return fmt.Errorf("failed to add participant %d to game %s: %w", userID, gameID, err)
	}
	return nil
}

// RemoveParticipant drops a player's participant row (and with it their
// wishlist) from a game.
func (s *Store) RemoveParticipant(ctx context.Context, gameID uuid.UUID, userID int64) error {
	q := `DELETE FROM game_participants WHERE game_id=$1 AND user_id=$2`
	if _, err := s.pool.Exec(ctx, q, gameID, userID); err != nil {
		return fmt.Errorf("failed to remove participant %d from game %s: %w", userID, gameID, err)
	}
	return nil
}

// SetWishlist overwrites a participant's wishlist text.
func (s *Store) SetWishlist(ctx context.Context, gameID uuid.UUID, userID int64, text string) error {
	q := `UPDATE game_participants SET wishlist=$3 WHERE game_id=$1 AND user_id=$2`
	if _, err := s.pool.Exec(ctx, q, gameID, userID, text); err != nil {
		return fmt.Errorf("failed to set wishlist for %d in game %s: %w", userID, gameID, err)
	}
	return nil
}

// SavePairings persists the giver->giftee assignments together with the new
// status in one transaction, so a crash cannot leave a started game half
// paired.
func (s *Store) SavePairings(ctx context.Context, g *santa.Game) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for giver, giftee := range g.Pairings {
			q := `UPDATE game_participants SET giftee_id=$3 WHERE game_id=$1 AND user_id=$2`
			if _, err := tx.Exec(ctx, q, g.ID, giver, giftee); err != nil {
				return err
			}
		}
		q := `UPDATE games SET status=$2 WHERE id=$1`
		_, err := tx.Exec(ctx, q, g.ID, g.Status.String())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save pairings for game %s: %w", g.ID, err)
	}
	return nil
}

// GamesForPlayer returns every non-finished game the player participates in.
func (s *Store) GamesForPlayer(ctx context.Context, userID int64) ([]*santa.Game, error) {
	q := `
	SELECT g.id, g.name, g.invite_code, g.creator_id, g.status, g.start_date, g.end_date
	FROM games g
	JOIN game_participants p ON p.game_id = g.id
	WHERE p.user_id=$1 AND g.status <> $2
	ORDER BY g.id
	`
	return s.scanGames(ctx, q, userID, santa.StatusFinished.String())
}

// GamesDueToStart returns RECRUITING games whose start date has arrived. The
// comparison is <= rather than = so games are not stranded by downtime across
// midnight.
func (s *Store) GamesDueToStart(ctx context.Context, day time.Time) ([]*santa.Game, error) {
	q := `
	SELECT id, name, invite_code, creator_id, status, start_date, end_date
	FROM games WHERE status=$1 AND start_date <= $2
	`
	return s.scanGames(ctx, q, santa.StatusRecruiting.String(), day)
}

// GamesDueToEnd returns IN_PROGRESS games whose end date has arrived.
func (s *Store) GamesDueToEnd(ctx context.Context, day time.Time) ([]*santa.Game, error) {
	q := `
	SELECT id, name, invite_code, creator_id, status, start_date, end_date
	FROM games WHERE status=$1 AND end_date <= $2
	`
	return s.scanGames(ctx, q, santa.StatusInProgress.String(), day)
}

func (s *Store) scanGames(ctx context.Context, q string, args ...any) ([]*santa.Game, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []*santa.Game
	for rows.Next() {
		g, err := scanGameRow(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to scan games: %w", rows.Err())
	}
	for _, g := range games {
		if err := s.loadParticipants(ctx, g); err != nil {
			return nil, err
		}
	}
	return games, nil
}

func (s *Store) scanGame(ctx context.Context, row pgx.Row) (*santa.Game, error) {
	g, err := scanGameRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadParticipants(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func scanGameRow(row pgx.Row) (*santa.Game, error) {
	g := &santa.Game{
		Participants: make(map[int64]*models.Player),
		Wishlists:    make(map[int64]string),
		Pairings:     make(map[int64]int64),
	}
	var code *string
	var status string
	var start, end *time.Time
	if err := row.Scan(&g.ID, &g.Name, &code, &g.CreatorID, &status, &start, &end); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan game row: %w", err)
	}
	if code != nil {
		g.InviteCode = *code
	}
	if st, ok := santa.ParseStatus(status); ok {
		g.Status = st
	}
	if start != nil {
		g.StartDate = *start
	}
	if end != nil {
		g.EndDate = *end
	}
	return g, nil
}

func (s *Store) loadParticipants(ctx context.Context, g *santa.Game) error {
	q := `
	SELECT p.user_id, p.wishlist, p.giftee_id, u.name, u.handle, u.language
	FROM game_participants p
	JOIN players u ON u.id = p.user_id
	WHERE p.game_id=$1
	`
	rows, err := s.pool.Query(ctx, q, g.ID)
	if err != nil {
		return fmt.Errorf("failed to load participants for game %s: %w", g.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		var wishlist, name, handle, lang string
		var giftee *int64
		if err := rows.Scan(&userID, &wishlist, &giftee, &name, &handle, &lang); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		g.Participants[userID] = &models.Player{
			ID: userID, Name: name, Handle: handle, Language: models.Language(lang),
		}
		if wishlist != "" {
			g.Wishlists[userID] = wishlist
		}
		if giftee != nil {
			g.Pairings[userID] = *giftee
		}
	}
	if rows.Err() != nil {
		return fmt.Errorf("failed to scan participants: %w", rows.Err())
	}
	return nil
}

func nullableCode(code string) *string {
	if code == "" {
		return nil
	}
	return &code
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
