package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yulbax/SecretSantaBot/internal/cache"
	"github.com/yulbax/SecretSantaBot/internal/database"
	"github.com/yulbax/SecretSantaBot/internal/santa"
)

// StartGame is the scheduler's start sequence: generate pairings, persist
// them, then tell every giver who they drew.
//
// An undersized game takes the failure path here: it is torn down and every
// participant is notified. The scheduler has no actor to alert, so teardown
// is the only sensible outcome.
func (p *Processor) StartGame(ctx context.Context, gameID uuid.UUID) error {
	p.gameLocks.lock(gameID.String())
	defer p.gameLocks.unlock(gameID.String())
	return p.startLocked(ctx, gameID, false)
}

// startGameManual is the start-now button's sequence. The participant count
// is re-read under the game lock; an undersized game is returned as
// ErrNotEnoughPlayers with no transition, so the creator can be alerted and
// the game keeps recruiting.
func (p *Processor) startGameManual(ctx context.Context, gameID uuid.UUID) error {
	p.gameLocks.lock(gameID.String())
	defer p.gameLocks.unlock(gameID.String())
	return p.startLocked(ctx, gameID, true)
}

func (p *Processor) startLocked(ctx context.Context, gameID uuid.UUID, manual bool) error {
	game, err := p.store.GetGame(ctx, gameID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = game.Start()
	if errors.Is(err, santa.ErrNotEnoughPlayers) {
		if manual {
			return err
		}
		return p.failStart(ctx, game)
	}
	if err != nil {
		return fmt.Errorf("failed to start game %s: %w", game.ID, err)
	}

	if err := p.store.SavePairings(ctx, game); err != nil {
		return err
	}
	p.clearStatesForGame(ctx, game.ID)
	p.events.Publish(ctx, cache.EventGameStarted, game.ID)
	p.log.WithFields(logrus.Fields{
		"game_id":      game.ID,
		"participants": len(game.Participants),
	}).Info("game started")

	for giver, gifteeID := range game.Pairings {
		giverPlayer, ok := game.Participants[giver]
		if !ok {
			continue
		}
		giftee, ok := game.Participants[gifteeID]
		if !ok {
			continue
		}
		lang := giverPlayer.Language
		text := p.loc.Getf(lang, "notify.game_started", game.Name, giftee.Name)
		if wishlist := game.Wishlists[gifteeID]; wishlist != "" {
			text += "\n\n" + p.loc.Getf(lang, "notify.giftee_wishlist", wishlist)
		} else {
			text += "\n\n" + p.loc.Get(lang, "notify.wishlist_empty")
		}
		p.send(giver, text, nil)
	}
	return nil
}

// failStart is the <3-participants teardown: the game is already FINISHED in
// memory, so it gets deleted and everyone hears why.
func (p *Processor) failStart(ctx context.Context, game *santa.Game) error {
	if err := p.store.DeleteGame(ctx, game.ID); err != nil {
		return err
	}
	p.clearStatesForGame(ctx, game.ID)
	p.events.Publish(ctx, cache.EventStartFailed, game.ID)
	p.log.WithFields(logrus.Fields{
		"game_id":      game.ID,
		"participants": len(game.Participants),
	}).Info("game start failed, too few participants")

	for _, participant := range game.Participants {
		p.send(participant.ID, p.loc.Getf(participant.Language, "notify.start_failed", game.Name), nil)
	}
	return nil
}

// FinishGame moves a running game to FINISHED and notifies all participants.
// Invoked by the scheduler when the end date arrives.
func (p *Processor) FinishGame(ctx context.Context, gameID uuid.UUID) error {
	p.gameLocks.lock(gameID.String())
	defer p.gameLocks.unlock(gameID.String())

	game, err := p.store.GetGame(ctx, gameID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if game.Status != santa.StatusInProgress {
		return nil
	}

	game.Finish()
	if err := p.store.SaveGame(ctx, game); err != nil {
		return err
	}
	p.clearStatesForGame(ctx, game.ID)
	p.events.Publish(ctx, cache.EventGameFinished, game.ID)
	p.log.WithField("game_id", game.ID).Info("game finished")

	for _, participant := range game.Participants {
		p.send(participant.ID, p.loc.Getf(participant.Language, "notify.game_finished", game.Name), nil)
	}
	return nil
}
