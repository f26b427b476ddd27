package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// UserState is the per-user conversation state: it tells the flow what free
// text input is expected from the user next. At most one state is active per
// user; each variant carries only the fields its step needs. States are
// persisted as a (tag, payload) pair so they survive process restarts.
type UserState interface {
	Tag() string
}

// PendingAction is what to do once a language has been chosen.
type PendingAction string

const (
	PendingShowWelcome PendingAction = "welcome"
	PendingJoinGame    PendingAction = "join"
)

// AwaitingLanguage means the user was shown the language keyboard and the bot
// waits for a selection callback before continuing with Pending.
type AwaitingLanguage struct {
	Pending PendingAction `json:"pending"`
	GameID  uuid.UUID     `json:"game_id,omitempty"` // set when Pending is PendingJoinGame
}

// AwaitingGameName means the user asked to create a game and owes it a name.
type AwaitingGameName struct{}

// AwaitingStartDate waits for the start date of a game mid-creation.
type AwaitingStartDate struct {
	GameID uuid.UUID `json:"game_id"`
}

// AwaitingEndDate waits for the end date of a game mid-creation.
type AwaitingEndDate struct {
	GameID uuid.UUID `json:"game_id"`
}

// AwaitingPlayerName waits for the display name a user wants to wear in a
// game they are creating or joining.
type AwaitingPlayerName struct {
	GameID    uuid.UUID `json:"game_id"`
	IsCreator bool      `json:"is_creator"`
}

// AwaitingWishlist collects wishlist lines until the user sends the "done"
// label.
type AwaitingWishlist struct {
	GameID    uuid.UUID `json:"game_id"`
	IsCreator bool      `json:"is_creator"`
}

// AwaitingAnonMessage waits for the text of an anonymous message. ToSanta
// flips the direction: false sends to the user's giftee, true to whoever is
// gifting to the user.
type AwaitingAnonMessage struct {
	GameID  uuid.UUID `json:"game_id"`
	ToSanta bool      `json:"to_santa"`
}

const (
	tagLanguage    = "language"
	tagGameName    = "game_name"
	tagStartDate   = "start_date"
	tagEndDate     = "end_date"
	tagPlayerName  = "player_name"
	tagWishlist    = "wishlist"
	tagAnonMessage = "anon_message"
)

func (*AwaitingLanguage) Tag() string    { return tagLanguage }
func (*AwaitingGameName) Tag() string    { return tagGameName }
func (*AwaitingStartDate) Tag() string   { return tagStartDate }
func (*AwaitingEndDate) Tag() string     { return tagEndDate }
func (*AwaitingPlayerName) Tag() string  { return tagPlayerName }
func (*AwaitingWishlist) Tag() string    { return tagWishlist }
func (*AwaitingAnonMessage) Tag() string { return tagAnonMessage }

// EncodeState serializes a state into its storable (tag, payload) form.
func EncodeState(s UserState) (tag, payload string, err error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal state %q: %w", s.Tag(), err)
	}
	return s.Tag(), string(data), nil
}

// DecodeState is the inverse of EncodeState. An unknown tag is an error; the
// caller treats it as a reset to the idle state.
func DecodeState(tag, payload string) (UserState, error) {
	var s UserState
	switch tag {
	case tagLanguage:
		s = &AwaitingLanguage{}
	case tagGameName:
		s = &AwaitingGameName{}
	case tagStartDate:
		s = &AwaitingStartDate{}
	case tagEndDate:
		s = &AwaitingEndDate{}
	case tagPlayerName:
		s = &AwaitingPlayerName{}
	case tagWishlist:
		s = &AwaitingWishlist{}
	case tagAnonMessage:
		s = &AwaitingAnonMessage{}
	default:
		return nil, fmt.Errorf("unknown state tag %q", tag)
	}
	if err := json.Unmarshal([]byte(payload), s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state %q: %w", tag, err)
	}
	return s, nil
}
