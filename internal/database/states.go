package database

import (
	"context"
	"fmt"

	"github.com/yulbax/SecretSantaBot/internal/models"
)

// SetState upserts the user's conversation state in its encoded form.
func (s *Store) SetState(ctx context.Context, userID int64, state models.UserState) error {
	tag, payload, err := models.EncodeState(state)
	if err != nil {
		return err
	}
	q := `
	INSERT INTO user_states (user_id, state_tag, state_payload)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET state_tag=$2, state_payload=$3
	`
	if _, err := s.pool.Exec(ctx, q, userID, tag, payload); err != nil {
		return fmt.Errorf("failed to set state for user %d: %w", userID, err)
	}
	return nil
}

// ClearState removes the user's conversation state. Clearing an absent state
// is not an error.
func (s *Store) ClearState(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_states WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("failed to clear state for user %d: %w", userID, err)
	}
	return nil
}

// LoadStates returns every persisted conversation state, for warming the
// in-memory cache at startup. Rows with an unknown tag are skipped: a state
// written by a newer build resets to idle rather than wedging the user.
func (s *Store) LoadStates(ctx context.Context) (map[int64]models.UserState, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, state_tag, state_payload FROM user_states`)
	if err != nil {
		return nil, fmt.Errorf("failed to load user states: %w", err)
	}
	defer rows.Close()

	states := make(map[int64]models.UserState)
	for rows.Next() {
		var userID int64
		var tag, payload string
		if err := rows.Scan(&userID, &tag, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan user state: %w", err)
		}
		state, err := models.DecodeState(tag, payload)
		if err != nil {
			continue
		}
		states[userID] = state
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to scan user states: %w", rows.Err())
	}
	return states, nil
}
