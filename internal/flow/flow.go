// Package flow is the conversation engine: it routes every inbound chat event
// through the sender's current conversation state, mutates games and players,
// persists them, and emits outbound messages. It talks to the chat transport
// and the database only through the Messenger and Store interfaces.
package flow

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yulbax/SecretSantaBot/internal/cache"
	"github.com/yulbax/SecretSantaBot/internal/i18n"
	"github.com/yulbax/SecretSantaBot/internal/models"
	"github.com/yulbax/SecretSantaBot/internal/santa"
)

// Button is one chat button. Data carries the callback payload for inline
// buttons; an empty Data marks a plain reply-keyboard label the user sends
// back as text.
type Button struct {
	Label string
	Data  string
}

// Messenger delivers outbound messages. Sends are best effort: the flow never
// retries and never blocks its logic on delivery.
type Messenger interface {
	SendText(userID int64, text string, buttons [][]Button) error
	DeleteMessage(userID int64, messageID int) error
	AcknowledgeCallback(callbackID, text string, alert bool) error
}

// Store is the persistence surface the flow needs. Lookups that match
// nothing return an error satisfying errors.Is(err, database.ErrNotFound).
type Store interface {
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
	UpsertPlayer(ctx context.Context, p *models.Player) error

	CreateGame(ctx context.Context, g *santa.Game) error
	SaveGame(ctx context.Context, g *santa.Game) error
	GetGame(ctx context.Context, id uuid.UUID) (*santa.Game, error)
	GetGameByCode(ctx context.Context, code string) (*santa.Game, error)
	DeleteGame(ctx context.Context, id uuid.UUID) error

	AddParticipant(ctx context.Context, gameID uuid.UUID, userID int64) error
	RemoveParticipant(ctx context.Context, gameID uuid.UUID, userID int64) error
	SetWishlist(ctx context.Context, gameID uuid.UUID, userID int64, text string) error
	SavePairings(ctx context.Context, g *santa.Game) error

	GamesForPlayer(ctx context.Context, userID int64) ([]*santa.Game, error)

	SetState(ctx context.Context, userID int64, state models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	LoadStates(ctx context.Context) (map[int64]models.UserState, error)
}

// MessageEvent is an inbound plain-text message.
type MessageEvent struct {
	SenderID     int64
	SenderName   string
	SenderHandle string
	SenderLocale string
	Text         string
}

// CallbackEvent is an inbound button press.
type CallbackEvent struct {
	SenderID   int64
	CallbackID string
	Data       string
	MessageID  int
}

// Processor owns the conversation state cache and orchestrates everything.
// Events for the same user are serialized by a per-user lock; game mutation
// is serialized by a per-game lock. Every store write lands before the
// message that announces it.
type Processor struct {
	store   Store
	msg     Messenger
	loc     *i18n.Localizer
	events  *cache.EventQueue
	log     *logrus.Logger
	botName string

	mu     sync.Mutex
	states map[int64]models.UserState

	userLocks keyedMutex
	gameLocks keyedMutex

	now func() time.Time
}

// New builds a Processor. events may be nil when Redis is not configured.
func New(store Store, msg Messenger, loc *i18n.Localizer, events *cache.EventQueue, log *logrus.Logger, botName string) *Processor {
	return &Processor{
		store:     store,
		msg:       msg,
		loc:       loc,
		events:    events,
		log:       log,
		botName:   botName,
		states:    make(map[int64]models.UserState),
		userLocks: newKeyedMutex(),
		gameLocks: newKeyedMutex(),
		now:       time.Now,
	}
}

// LoadStates warms the in-memory state cache from the store. Called once at
// startup, before any event is processed.
func (p *Processor) LoadStates(ctx context.Context) error {
	states, err := p.store.LoadStates(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.states = states
	p.mu.Unlock()
	p.log.WithField("count", len(states)).Info("loaded conversation states")
	return nil
}

func (p *Processor) currentState(userID int64) models.UserState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[userID]
}

// setState writes through to the store before updating the cache, so a crash
// between the two re-reads the newer state at startup.
func (p *Processor) setState(ctx context.Context, userID int64, s models.UserState) error {
	if err := p.store.SetState(ctx, userID, s); err != nil {
		return err
	}
	p.mu.Lock()
	p.states[userID] = s
	p.mu.Unlock()
	return nil
}

func (p *Processor) clearState(ctx context.Context, userID int64) error {
	if err := p.store.ClearState(ctx, userID); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.states, userID)
	p.mu.Unlock()
	return nil
}

// clearStatesForGame resets every user whose conversation state targets the
// given game. Used when the game disappears under them.
func (p *Processor) clearStatesForGame(ctx context.Context, gameID uuid.UUID) {
	p.mu.Lock()
	var users []int64
	for userID, s := range p.states {
		if stateGameID(s) == gameID {
			users = append(users, userID)
		}
	}
	p.mu.Unlock()

	for _, userID := range users {
		if err := p.clearState(ctx, userID); err != nil {
			p.log.WithField("user_id", userID).WithError(err).Warn("failed to clear state")
		}
	}
}

// stateGameID extracts the targeted game id from a state, or uuid.Nil.
func stateGameID(s models.UserState) uuid.UUID {
	switch st := s.(type) {
	case *models.AwaitingLanguage:
		return st.GameID
	case *models.AwaitingStartDate:
		return st.GameID
	case *models.AwaitingEndDate:
		return st.GameID
	case *models.AwaitingPlayerName:
		return st.GameID
	case *models.AwaitingWishlist:
		return st.GameID
	case *models.AwaitingAnonMessage:
		return st.GameID
	default:
		return uuid.Nil
	}
}

// send delivers a message, logging delivery failures and moving on.
func (p *Processor) send(userID int64, text string, buttons [][]Button) {
	if err := p.msg.SendText(userID, text, buttons); err != nil {
		p.log.WithField("user_id", userID).WithError(err).Warn("failed to send message")
	}
}

func (p *Processor) ack(callbackID, text string, alert bool) {
	if err := p.msg.AcknowledgeCallback(callbackID, text, alert); err != nil {
		p.log.WithError(err).Warn("failed to acknowledge callback")
	}
}

func userKey(id int64) string { return strconv.FormatInt(id, 10) }

// keyedMutex serializes work per key without one global lock. Entries are
// refcounted so the map does not grow with every user ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() keyedMutex {
	return keyedMutex{locks: make(map[string]*lockEntry)}
}

func (km *keyedMutex) lock(key string) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &lockEntry{}
		km.locks[key] = e
	}
	e.refs++
	km.mu.Unlock()
	e.mu.Lock()
}

func (km *keyedMutex) unlock(key string) {
	km.mu.Lock()
	e := km.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()
	e.mu.Unlock()
}
