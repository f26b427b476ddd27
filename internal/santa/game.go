package santa

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yulbax/SecretSantaBot/internal/models"
)

// Input limits enforced by the flow before anything reaches storage.
const (
	MaxGameNameLen    = 100
	MaxPlayerNameLen  = 50
	MaxWishlistLen    = 2000
	MaxAnonMessageLen = 1000
)

// MinParticipants is the smallest group a game can start with. Below it the
// start attempt takes the failure path instead of generating pairings.
const MinParticipants = 3

// Date window limits for game scheduling.
const (
	MaxStartDaysAhead = 7
	MaxDurationMonths = 3
)

var (
	ErrNotEnoughPlayers = errors.New("game needs at least 3 participants to start")
	ErrAlreadyStarted   = errors.New("game has already started")
)

// GameStatus is the lifecycle phase of a game. It only ever moves forward.
type GameStatus int

const (
	StatusCreating GameStatus = iota
	StatusRecruiting
	StatusInProgress
	StatusFinished
)

var statusNames = map[GameStatus]string{
	StatusCreating:   "creating",
	StatusRecruiting: "recruiting",
	StatusInProgress: "in_progress",
	StatusFinished:   "finished",
}

func (s GameStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStatus maps a stored status string back to a GameStatus.
func ParseStatus(name string) (GameStatus, bool) {
	for s, n := range statusNames {
		if n == name {
			return s, true
		}
	}
	return StatusCreating, false
}

// Game is one Secret Santa round: a named group of participants with their
// wishlists and, once started, the giver->giftee pairings. The struct itself
// is not synchronized; callers serialize mutation per game id.
type Game struct {
	ID         uuid.UUID
	Name       string
	InviteCode string
	CreatorID  int64
	Status     GameStatus
	StartDate  time.Time // date-only, UTC; zero until set
	EndDate    time.Time

	Participants map[int64]*models.Player
	Wishlists    map[int64]string
	Pairings     map[int64]int64 // giver -> giftee; empty until the game starts
}

// NewGame creates a game in the CREATING phase under the given creator.
func NewGame(name string, creatorID int64) *Game {
	id, _ := uuid.NewV7()
	return &Game{
		ID:           id,
		Name:         name,
		CreatorID:    creatorID,
		Status:       StatusCreating,
		Participants: make(map[int64]*models.Player),
		Wishlists:    make(map[int64]string),
		Pairings:     make(map[int64]int64),
	}
}

// AddParticipant inserts the player into the game. Idempotent by id: a second
// add with the same id just refreshes the stored player snapshot.
func (g *Game) AddParticipant(p *models.Player) {
	g.Participants[p.ID] = p
}

// RemoveParticipant drops the player and their wishlist from the game.
func (g *Game) RemoveParticipant(id int64) {
	delete(g.Participants, id)
	delete(g.Wishlists, id)
}

// IsParticipant reports whether the user is in the game.
func (g *Game) IsParticipant(id int64) bool {
	_, ok := g.Participants[id]
	return ok
}

// Start moves the game to IN_PROGRESS and fills Pairings with a fresh
// derangement over the participant ids. With fewer than MinParticipants the
// game goes straight to FINISHED with empty pairings and ErrNotEnoughPlayers
// is returned: the caller must tear the game down, not run it.
func (g *Game) Start() error {
	if g.Status >= StatusInProgress {
		return ErrAlreadyStarted
	}
	if len(g.Participants) < MinParticipants {
		g.Status = StatusFinished
		return ErrNotEnoughPlayers
	}

	ids := make([]int64, 0, len(g.Participants))
	for id := range g.Participants {
		ids = append(ids, id)
	}
	pairings, err := Derange(ids)
	if err != nil {
		return err
	}

	g.Pairings = pairings
	g.Status = StatusInProgress
	return nil
}

// Finish moves an IN_PROGRESS game to FINISHED. Pairings are kept for
// historical viewing.
func (g *Game) Finish() {
	g.Status = StatusFinished
}

// GifteeOf returns whom the giver is gifting to, if the game has started.
func (g *Game) GifteeOf(giver int64) (int64, bool) {
	id, ok := g.Pairings[giver]
	return id, ok
}

// SantaOf is the reverse lookup: who is gifting to the given user.
func (g *Game) SantaOf(giftee int64) (int64, bool) {
	for giver, receiver := range g.Pairings {
		if receiver == giftee {
			return giver, true
		}
	}
	return 0, false
}
