package flow

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yulbax/SecretSantaBot/internal/cache"
	"github.com/yulbax/SecretSantaBot/internal/database"
	"github.com/yulbax/SecretSantaBot/internal/models"
	"github.com/yulbax/SecretSantaBot/internal/santa"
)

// HandleCallback routes one inbound button press. Callback actions are
// recognized in any conversation state.
func (p *Processor) HandleCallback(ctx context.Context, ev CallbackEvent) {
	p.userLocks.lock(userKey(ev.SenderID))
	defer p.userLocks.unlock(userKey(ev.SenderID))

	player, err := p.store.GetPlayer(ctx, ev.SenderID)
	if err != nil {
		// A button press from a user the store has never seen; nothing
		// sensible to resume, just acknowledge.
		p.ack(ev.CallbackID, "", false)
		return
	}

	action, arg, ok := strings.Cut(ev.Data, ":")
	if !ok {
		p.ack(ev.CallbackID, "", false)
		return
	}
	p.log.WithFields(logrus.Fields{"user_id": player.ID, "action": action}).Debug("inbound callback")

	if action == actionLang {
		p.handleLanguageChoice(ctx, player, ev, arg)
		return
	}

	gameID, err := uuid.Parse(arg)
	if err != nil {
		p.ack(ev.CallbackID, "", false)
		return
	}

	game, err := p.store.GetGame(ctx, gameID)
	if errors.Is(err, database.ErrNotFound) {
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.game_not_found"), true)
		if stateGameID(p.currentState(player.ID)) == gameID {
			p.resetToMenu(ctx, player, "err.game_not_found")
		}
		return
	}
	if err != nil {
		p.internalError(player, err)
		p.ack(ev.CallbackID, "", false)
		return
	}

	switch action {
	case actionView:
		p.ack(ev.CallbackID, "", false)
		text, buttons := p.renderGameView(player, game)
		p.send(player.ID, text, buttons)

	case actionWishlist:
		p.handleEditWishlist(ctx, player, ev, game)

	case actionLeave:
		p.handleLeave(ctx, player, ev, game)

	case actionDelete:
		p.handleDelete(ctx, player, ev, game)

	case actionStart:
		p.handleStartNow(ctx, player, ev, game)

	case actionMsgGiftee:
		p.handleAnonStart(ctx, player, ev, game, false)

	case actionMsgSanta:
		p.handleAnonStart(ctx, player, ev, game, true)

	default:
		p.ack(ev.CallbackID, "", false)
	}
}

// handleLanguageChoice persists the chosen language, then performs whatever
// the language prompt was blocking: the welcome menu or a join-by-invite.
func (p *Processor) handleLanguageChoice(ctx context.Context, player *models.Player, ev CallbackEvent, code string) {
	lang, ok := models.ParseLanguage(code)
	if !ok {
		p.ack(ev.CallbackID, "", false)
		return
	}

	player.Language = lang
	if err := p.store.UpsertPlayer(ctx, player); err != nil {
		p.internalError(player, err)
		p.ack(ev.CallbackID, "", false)
		return
	}

	state, _ := p.currentState(player.ID).(*models.AwaitingLanguage)
	if err := p.clearState(ctx, player.ID); err != nil {
		p.internalError(player, err)
		return
	}
	p.ack(ev.CallbackID, p.loc.Get(lang, "info.language_saved"), false)
	if ev.MessageID != 0 {
		// Drop the keyboard so a second press cannot arrive.
		if err := p.msg.DeleteMessage(player.ID, ev.MessageID); err != nil {
			p.log.WithError(err).Debug("failed to delete language prompt")
		}
	}

	if state != nil && state.Pending == models.PendingJoinGame {
		game, err := p.store.GetGame(ctx, state.GameID)
		if errors.Is(err, database.ErrNotFound) {
			p.send(player.ID, p.loc.Get(lang, "err.game_not_found"), p.menuKeyboard(lang))
			return
		}
		if err != nil {
			p.internalError(player, err)
			return
		}
		p.joinGame(ctx, player, game)
		return
	}
	p.send(player.ID, p.loc.Get(lang, "info.welcome"), p.menuKeyboard(lang))
}

// handleEditWishlist restarts wishlist collection from scratch for a game the
// player is already in.
func (p *Processor) handleEditWishlist(ctx context.Context, player *models.Player, ev CallbackEvent, game *santa.Game) {
	if !game.IsParticipant(player.ID) {
		p.ack(ev.CallbackID, "", false)
		return
	}
	if game.Status != santa.StatusRecruiting {
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.already_started"), true)
		return
	}

	p.gameLocks.lock(game.ID.String())
	err := p.store.SetWishlist(ctx, game.ID, player.ID, "")
	p.gameLocks.unlock(game.ID.String())
	if err != nil {
		p.internalError(player, err)
		p.ack(ev.CallbackID, "", false)
		return
	}

	if err := p.setState(ctx, player.ID, &models.AwaitingWishlist{GameID: game.ID, IsCreator: false}); err != nil {
		p.internalError(player, err)
		return
	}
	p.ack(ev.CallbackID, "", false)
	done := p.loc.Get(player.Language, "cmd.done")
	p.send(player.ID, p.loc.Getf(player.Language, "ask.wishlist", done), p.cancelKeyboard(player.Language))
}

func (p *Processor) handleLeave(ctx context.Context, player *models.Player, ev CallbackEvent, game *santa.Game) {
	if !game.IsParticipant(player.ID) {
		p.ack(ev.CallbackID, "", false)
		return
	}
	if game.Status >= santa.StatusInProgress {
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.already_started"), true)
		return
	}

	p.gameLocks.lock(game.ID.String())
	err := p.store.RemoveParticipant(ctx, game.ID, player.ID)
	p.gameLocks.unlock(game.ID.String())
	if err != nil {
		p.internalError(player, err)
		p.ack(ev.CallbackID, "", false)
		return
	}

	if stateGameID(p.currentState(player.ID)) == game.ID {
		if err := p.clearState(ctx, player.ID); err != nil {
			p.internalError(player, err)
			return
		}
	}
	p.ack(ev.CallbackID, "", false)
	p.send(player.ID, p.loc.Get(player.Language, "info.left_game"), p.menuKeyboard(player.Language))
}

// handleDelete tears a RECRUITING game down. Creator only; every other
// participant is told the game was cancelled. Once the game has started its
// pairings are live and a stale delete button must not destroy them.
func (p *Processor) handleDelete(ctx context.Context, player *models.Player, ev CallbackEvent, game *santa.Game) {
	if player.ID != game.CreatorID {
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.not_creator"), true)
		return
	}
	if game.Status != santa.StatusRecruiting {
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.already_started"), true)
		return
	}

	p.gameLocks.lock(game.ID.String())
	err := p.store.DeleteGame(ctx, game.ID)
	p.gameLocks.unlock(game.ID.String())
	if err != nil {
		p.internalError(player, err)
		p.ack(ev.CallbackID, "", false)
		return
	}

	p.clearStatesForGame(ctx, game.ID)
	p.events.Publish(ctx, cache.EventGameDeleted, game.ID)

	for _, participant := range game.Participants {
		if participant.ID == player.ID {
			continue
		}
		p.send(participant.ID, p.loc.Getf(participant.Language, "notify.game_cancelled", game.Name), nil)
	}

	p.ack(ev.CallbackID, "", false)
	p.send(player.ID, p.loc.Get(player.Language, "info.game_deleted"), p.menuKeyboard(player.Language))
}

// handleStartNow is the manual start path. The participant count is checked
// again under the game lock, so a leave racing the button press surfaces as
// an alert and never as a teardown.
func (p *Processor) handleStartNow(ctx context.Context, player *models.Player, ev CallbackEvent, game *santa.Game) {
	if player.ID != game.CreatorID {
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.not_creator"), true)
		return
	}
	if game.Status != santa.StatusRecruiting {
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.already_started"), true)
		return
	}

	err := p.startGameManual(ctx, game.ID)
	switch {
	case errors.Is(err, santa.ErrNotEnoughPlayers):
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.not_enough_players"), true)
	case errors.Is(err, santa.ErrAlreadyStarted):
		p.ack(ev.CallbackID, p.loc.Get(player.Language, "err.already_started"), true)
	case err != nil:
		p.internalError(player, err)
		p.ack(ev.CallbackID, "", false)
	default:
		p.ack(ev.CallbackID, "", false)
	}
}

func (p *Processor) handleAnonStart(ctx context.Context, player *models.Player, ev CallbackEvent, game *santa.Game, toSanta bool) {
	if game.Status != santa.StatusInProgress || !game.IsParticipant(player.ID) {
		p.ack(ev.CallbackID, "", false)
		return
	}

	st := &models.AwaitingAnonMessage{GameID: game.ID, ToSanta: toSanta}
	if err := p.setState(ctx, player.ID, st); err != nil {
		p.internalError(player, err)
		return
	}
	p.ack(ev.CallbackID, "", false)
	promptKey := "ask.anon_message"
	if toSanta {
		promptKey = "ask.anon_reply"
	}
	p.send(player.ID, p.loc.Get(player.Language, promptKey), nil)
}
