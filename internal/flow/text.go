package flow

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yulbax/SecretSantaBot/internal/cache"
	"github.com/yulbax/SecretSantaBot/internal/database"
	"github.com/yulbax/SecretSantaBot/internal/models"
	"github.com/yulbax/SecretSantaBot/internal/santa"
)

// HandleMessage routes one inbound text message through the sender's current
// conversation state. Events for the same sender are serialized.
func (p *Processor) HandleMessage(ctx context.Context, ev MessageEvent) {
	p.userLocks.lock(userKey(ev.SenderID))
	defer p.userLocks.unlock(userKey(ev.SenderID))

	player, isNew, err := p.ensurePlayer(ctx, ev)
	if err != nil {
		p.log.WithField("user_id", ev.SenderID).WithError(err).Error("failed to load player")
		return
	}

	text := strings.TrimSpace(ev.Text)
	p.log.WithFields(logrus.Fields{"user_id": player.ID, "new": isNew}).Debug("inbound message")

	if text == "/start" || strings.HasPrefix(text, "/start ") {
		p.handleStart(ctx, player, isNew, strings.TrimSpace(strings.TrimPrefix(text, "/start")))
		return
	}

	if isNew {
		// First contact: confirm the language before anything else.
		if err := p.setState(ctx, player.ID, &models.AwaitingLanguage{Pending: models.PendingShowWelcome}); err != nil {
			p.internalError(player, err)
			return
		}
		p.send(player.ID, p.loc.Get(player.Language, "ask.language"), languageKeyboard())
		return
	}

	state := p.currentState(player.ID)

	// "cancel" aborts the current flow in every state but the anonymous
	// message composer.
	if p.matchesLabel(player, text, "cmd.cancel") {
		if _, composing := state.(*models.AwaitingAnonMessage); !composing {
			p.handleCancel(ctx, player, state)
			return
		}
	}

	switch st := state.(type) {
	case nil:
		p.handleMenu(ctx, player, text)
	case *models.AwaitingLanguage:
		p.send(player.ID, p.loc.Get(player.Language, "ask.language"), languageKeyboard())
	case *models.AwaitingGameName:
		p.handleGameName(ctx, player, text)
	case *models.AwaitingStartDate:
		p.handleStartDate(ctx, player, st, text)
	case *models.AwaitingEndDate:
		p.handleEndDate(ctx, player, st, text)
	case *models.AwaitingPlayerName:
		p.handlePlayerName(ctx, player, st, text)
	case *models.AwaitingWishlist:
		p.handleWishlist(ctx, player, st, text)
	case *models.AwaitingAnonMessage:
		p.handleAnonMessage(ctx, player, st, text)
	}
}

// ensurePlayer loads the sender, registering them on first contact with a
// language inferred from the chat client's reported locale.
func (p *Processor) ensurePlayer(ctx context.Context, ev MessageEvent) (*models.Player, bool, error) {
	player, err := p.store.GetPlayer(ctx, ev.SenderID)
	if err == nil {
		return player, false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}

	lang, _ := models.ParseLanguage(ev.SenderLocale)
	// Truncate before escaping so the cut cannot land inside an entity.
	name := strings.TrimSpace(ev.SenderName)
	if utf8.RuneCountInString(name) > santa.MaxPlayerNameLen {
		name = string([]rune(name)[:santa.MaxPlayerNameLen])
	}
	name = escapeText(name)
	player = &models.Player{
		ID:       ev.SenderID,
		Name:     name,
		Handle:   ev.SenderHandle,
		Language: lang,
	}
	if err := p.store.UpsertPlayer(ctx, player); err != nil {
		return nil, false, err
	}
	p.log.WithFields(logrus.Fields{"user_id": player.ID, "language": lang}).Info("registered new player")
	return player, true, nil
}

// handleStart covers both the bare /start and the join-by-invite deep link.
func (p *Processor) handleStart(ctx context.Context, player *models.Player, isNew bool, code string) {
	if code == "" {
		if isNew {
			if err := p.setState(ctx, player.ID, &models.AwaitingLanguage{Pending: models.PendingShowWelcome}); err != nil {
				p.internalError(player, err)
				return
			}
			p.send(player.ID, p.loc.Get(player.Language, "ask.language"), languageKeyboard())
			return
		}
		p.send(player.ID, p.loc.Get(player.Language, "info.welcome"), p.menuKeyboard(player.Language))
		return
	}

	game, err := p.store.GetGameByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		p.send(player.ID, p.loc.Get(player.Language, "err.game_not_found"), p.menuKeyboard(player.Language))
		return
	}
	if err != nil {
		p.internalError(player, err)
		return
	}

	if isNew {
		// Collect the language first, then resume the join.
		st := &models.AwaitingLanguage{Pending: models.PendingJoinGame, GameID: game.ID}
		if err := p.setState(ctx, player.ID, st); err != nil {
			p.internalError(player, err)
			return
		}
		p.send(player.ID, p.loc.Get(player.Language, "ask.language"), languageKeyboard())
		return
	}
	p.joinGame(ctx, player, game)
}

// joinGame is the shared entry for invite links and the post-language resume.
func (p *Processor) joinGame(ctx context.Context, player *models.Player, game *santa.Game) {
	if game.IsParticipant(player.ID) {
		text, buttons := p.renderGameView(player, game)
		p.send(player.ID, text, buttons)
		return
	}
	if game.Status != santa.StatusRecruiting {
		p.send(player.ID, p.loc.Get(player.Language, "err.already_started"), p.menuKeyboard(player.Language))
		return
	}
	st := &models.AwaitingPlayerName{GameID: game.ID, IsCreator: false}
	if err := p.setState(ctx, player.ID, st); err != nil {
		p.internalError(player, err)
		return
	}
	p.send(player.ID, p.loc.Get(player.Language, "ask.player_name"), p.cancelKeyboard(player.Language))
}

// handleMenu routes idle-state text against the main menu labels.
func (p *Processor) handleMenu(ctx context.Context, player *models.Player, text string) {
	switch {
	case p.matchesLabel(player, text, "cmd.create_game"):
		if err := p.setState(ctx, player.ID, &models.AwaitingGameName{}); err != nil {
			p.internalError(player, err)
			return
		}
		p.send(player.ID, p.loc.Get(player.Language, "ask.game_name"), p.cancelKeyboard(player.Language))

	case p.matchesLabel(player, text, "cmd.my_games"):
		games, err := p.store.GamesForPlayer(ctx, player.ID)
		if err != nil {
			p.internalError(player, err)
			return
		}
		listText, buttons := p.renderGameList(player, games)
		p.send(player.ID, listText, buttons)

	case p.matchesLabel(player, text, "cmd.change_language"):
		if err := p.setState(ctx, player.ID, &models.AwaitingLanguage{Pending: models.PendingShowWelcome}); err != nil {
			p.internalError(player, err)
			return
		}
		p.send(player.ID, p.loc.Get(player.Language, "ask.language"), languageKeyboard())

	default:
		p.send(player.ID, p.loc.Get(player.Language, "info.welcome"), p.menuKeyboard(player.Language))
	}
}

func (p *Processor) handleGameName(ctx context.Context, player *models.Player, text string) {
	name, ok := validName(text, santa.MaxGameNameLen)
	if !ok {
		p.send(player.ID, p.loc.Get(player.Language, "err.game_name"), nil)
		return
	}

	game := santa.NewGame(escapeText(name), player.ID)
	if err := p.store.CreateGame(ctx, game); err != nil {
		p.internalError(player, err)
		return
	}
	if err := p.setState(ctx, player.ID, &models.AwaitingStartDate{GameID: game.ID}); err != nil {
		p.internalError(player, err)
		return
	}
	p.send(player.ID, p.loc.Get(player.Language, "ask.start_date"), p.cancelKeyboard(player.Language))
}

func (p *Processor) handleStartDate(ctx context.Context, player *models.Player, st *models.AwaitingStartDate, text string) {
	date, err := parseDate(text)
	if err != nil {
		p.send(player.ID, p.loc.Get(player.Language, "err.date_format"), nil)
		return
	}
	switch validateStartDate(date, dateOnly(p.now())) {
	case errDatePast:
		p.send(player.ID, p.loc.Get(player.Language, "err.date_past"), nil)
		return
	case errDateTooFar:
		p.send(player.ID, p.loc.Get(player.Language, "err.date_too_far"), nil)
		return
	}

	game, ok := p.loadTargetGame(ctx, player, st.GameID)
	if !ok {
		return
	}
	game.StartDate = date
	if err := p.store.SaveGame(ctx, game); err != nil {
		p.internalError(player, err)
		return
	}
	if err := p.setState(ctx, player.ID, &models.AwaitingEndDate{GameID: game.ID}); err != nil {
		p.internalError(player, err)
		return
	}
	p.send(player.ID, p.loc.Get(player.Language, "ask.end_date"), p.cancelKeyboard(player.Language))
}

func (p *Processor) handleEndDate(ctx context.Context, player *models.Player, st *models.AwaitingEndDate, text string) {
	date, err := parseDate(text)
	if err != nil {
		p.send(player.ID, p.loc.Get(player.Language, "err.date_format"), nil)
		return
	}

	game, ok := p.loadTargetGame(ctx, player, st.GameID)
	if !ok {
		return
	}
	switch validateEndDate(date, game.StartDate) {
	case errEndNotAfter:
		p.send(player.ID, p.loc.Get(player.Language, "err.end_not_after"), nil)
		return
	case errEndTooFar:
		p.send(player.ID, p.loc.Get(player.Language, "err.end_too_far"), nil)
		return
	}

	game.EndDate = date
	if err := p.store.SaveGame(ctx, game); err != nil {
		p.internalError(player, err)
		return
	}
	if err := p.setState(ctx, player.ID, &models.AwaitingPlayerName{GameID: game.ID, IsCreator: true}); err != nil {
		p.internalError(player, err)
		return
	}
	p.send(player.ID, p.loc.Get(player.Language, "ask.player_name"), p.cancelKeyboard(player.Language))
}

func (p *Processor) handlePlayerName(ctx context.Context, player *models.Player, st *models.AwaitingPlayerName, text string) {
	name, ok := validName(text, santa.MaxPlayerNameLen)
	if !ok {
		p.send(player.ID, p.loc.Get(player.Language, "err.player_name"), nil)
		return
	}

	game, ok := p.loadTargetGame(ctx, player, st.GameID)
	if !ok {
		return
	}

	player.Name = escapeText(name)
	if err := p.store.UpsertPlayer(ctx, player); err != nil {
		p.internalError(player, err)
		return
	}

	p.gameLocks.lock(game.ID.String())
	err := p.store.AddParticipant(ctx, game.ID, player.ID)
	p.gameLocks.unlock(game.ID.String())
	if err != nil {
		p.internalError(player, err)
		return
	}

	if err := p.setState(ctx, player.ID, &models.AwaitingWishlist{GameID: st.GameID, IsCreator: st.IsCreator}); err != nil {
		p.internalError(player, err)
		return
	}
	done := p.loc.Get(player.Language, "cmd.done")
	p.send(player.ID, p.loc.Getf(player.Language, "ask.wishlist", done), p.cancelKeyboard(player.Language))
}

func (p *Processor) handleWishlist(ctx context.Context, player *models.Player, st *models.AwaitingWishlist, text string) {
	game, ok := p.loadTargetGame(ctx, player, st.GameID)
	if !ok {
		return
	}

	if p.matchesLabel(player, text, "cmd.done") {
		if st.IsCreator {
			p.openRecruiting(ctx, player, game)
			return
		}
		if err := p.clearState(ctx, player.ID); err != nil {
			p.internalError(player, err)
			return
		}
		p.send(player.ID, p.loc.Get(player.Language, "info.joined"), p.menuKeyboard(player.Language))
		return
	}

	line := escapeText(strings.TrimSpace(text))
	combined := line
	if existing := game.Wishlists[player.ID]; existing != "" {
		combined = existing + "\n" + line
	}
	if utf8.RuneCountInString(combined) > santa.MaxWishlistLen {
		p.send(player.ID, p.loc.Get(player.Language, "err.wishlist_too_long"), nil)
		return
	}

	p.gameLocks.lock(game.ID.String())
	err := p.store.SetWishlist(ctx, game.ID, player.ID, combined)
	p.gameLocks.unlock(game.ID.String())
	if err != nil {
		p.internalError(player, err)
		return
	}
	done := p.loc.Get(player.Language, "cmd.done")
	p.send(player.ID, p.loc.Getf(player.Language, "info.wishlist_added", done), nil)
}

// openRecruiting issues the invite code and moves a finished setup into the
// RECRUITING phase.
func (p *Processor) openRecruiting(ctx context.Context, player *models.Player, game *santa.Game) {
	code, err := santa.NewInviteCode()
	if err != nil {
		p.internalError(player, err)
		return
	}

	p.gameLocks.lock(game.ID.String())
	game.InviteCode = code
	game.Status = santa.StatusRecruiting
	err = p.store.SaveGame(ctx, game)
	p.gameLocks.unlock(game.ID.String())
	if err != nil {
		p.internalError(player, err)
		return
	}

	if err := p.clearState(ctx, player.ID); err != nil {
		p.internalError(player, err)
		return
	}
	link := p.inviteLink(code)
	p.send(player.ID, p.loc.Getf(player.Language, "info.invite_ready", game.Name, link), p.menuKeyboard(player.Language))
}

func (p *Processor) handleAnonMessage(ctx context.Context, player *models.Player, st *models.AwaitingAnonMessage, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > santa.MaxAnonMessageLen {
		p.send(player.ID, p.loc.Get(player.Language, "err.message_too_long"), nil)
		return
	}

	game, ok := p.loadTargetGame(ctx, player, st.GameID)
	if !ok {
		return
	}

	var receiverID int64
	var found bool
	headerKey := "anon.from_santa"
	if st.ToSanta {
		receiverID, found = game.SantaOf(player.ID)
		headerKey = "anon.from_giftee"
	} else {
		receiverID, found = game.GifteeOf(player.ID)
	}
	receiver, knownReceiver := game.Participants[receiverID]
	if !found || !knownReceiver {
		p.resetToMenu(ctx, player, "err.game_not_found")
		return
	}

	if err := p.clearState(ctx, player.ID); err != nil {
		p.internalError(player, err)
		return
	}
	p.send(receiver.ID, p.loc.Getf(receiver.Language, headerKey, game.Name, escapeText(trimmed)), nil)
	p.send(player.ID, p.loc.Get(player.Language, "info.anon_sent"), p.menuKeyboard(player.Language))
}

// handleCancel aborts the current flow. A creator mid-creation takes the
// partially created game with them; a joiner leaves the game they were
// joining.
func (p *Processor) handleCancel(ctx context.Context, player *models.Player, state models.UserState) {
	switch st := state.(type) {
	case *models.AwaitingStartDate:
		p.deleteAbandonedGame(ctx, st.GameID)
	case *models.AwaitingEndDate:
		p.deleteAbandonedGame(ctx, st.GameID)
	case *models.AwaitingPlayerName:
		if st.IsCreator {
			p.deleteAbandonedGame(ctx, st.GameID)
		} else {
			p.removeFromGame(ctx, st.GameID, player.ID)
		}
	case *models.AwaitingWishlist:
		if st.IsCreator {
			p.deleteAbandonedGame(ctx, st.GameID)
		} else {
			p.removeFromGame(ctx, st.GameID, player.ID)
		}
	}

	if err := p.clearState(ctx, player.ID); err != nil {
		p.internalError(player, err)
		return
	}
	p.send(player.ID, p.loc.Get(player.Language, "info.cancelled"), p.menuKeyboard(player.Language))
}

func (p *Processor) deleteAbandonedGame(ctx context.Context, gameID uuid.UUID) {
	p.gameLocks.lock(gameID.String())
	defer p.gameLocks.unlock(gameID.String())
	if err := p.store.DeleteGame(ctx, gameID); err != nil {
		p.log.WithField("game_id", gameID).WithError(err).Error("failed to delete abandoned game")
		return
	}
	p.events.Publish(ctx, cache.EventGameDeleted, gameID)
}

func (p *Processor) removeFromGame(ctx context.Context, gameID uuid.UUID, userID int64) {
	p.gameLocks.lock(gameID.String())
	defer p.gameLocks.unlock(gameID.String())
	if err := p.store.RemoveParticipant(ctx, gameID, userID); err != nil {
		p.log.WithField("game_id", gameID).WithError(err).Error("failed to remove participant")
	}
}

// loadTargetGame fetches the game a state points at. When it is gone, the
// state is cleared and the user lands back on the menu.
func (p *Processor) loadTargetGame(ctx context.Context, player *models.Player, gameID uuid.UUID) (*santa.Game, bool) {
	game, err := p.store.GetGame(ctx, gameID)
	if errors.Is(err, database.ErrNotFound) {
		p.resetToMenu(ctx, player, "err.game_not_found")
		return nil, false
	}
	if err != nil {
		p.internalError(player, err)
		return nil, false
	}
	return game, true
}

func (p *Processor) resetToMenu(ctx context.Context, player *models.Player, msgKey string) {
	if err := p.clearState(ctx, player.ID); err != nil {
		p.log.WithField("user_id", player.ID).WithError(err).Error("failed to clear state")
	}
	p.send(player.ID, p.loc.Get(player.Language, msgKey), p.menuKeyboard(player.Language))
}

func (p *Processor) internalError(player *models.Player, err error) {
	p.log.WithField("user_id", player.ID).WithError(err).Error("flow error")
	p.send(player.ID, p.loc.Get(player.Language, "err.internal"), nil)
}
