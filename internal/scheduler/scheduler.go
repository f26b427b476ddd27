// Package scheduler sweeps games on a fixed timer and fires the same
// start/finish sequences the conversation flow uses interactively. It is the
// only path that moves a game's status based on the wall-clock date.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yulbax/SecretSantaBot/internal/santa"
)

// GameSource lists the games whose dates have come due.
type GameSource interface {
	GamesDueToStart(ctx context.Context, day time.Time) ([]*santa.Game, error)
	GamesDueToEnd(ctx context.Context, day time.Time) ([]*santa.Game, error)
}

// Lifecycle runs the shared start/finish sequences.
type Lifecycle interface {
	StartGame(ctx context.Context, gameID uuid.UUID) error
	FinishGame(ctx context.Context, gameID uuid.UUID) error
}

// Scheduler owns the periodic sweep.
type Scheduler struct {
	cron   *cron.Cron
	source GameSource
	flows  Lifecycle
	log    *logrus.Logger

	now func() time.Time
}

// New builds a scheduler sweeping at the given interval.
func New(source GameSource, flows Lifecycle, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		source: source,
		flows:  flows,
		log:    log,
		now:    time.Now,
	}
}

// Start registers the sweep and launches the cron loop.
func (s *Scheduler) Start(interval time.Duration) error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.cron.Start()
	s.log.WithField("interval", interval).Info("lifecycle scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running sweep to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("lifecycle scheduler stopped")
}

// Sweep starts every recruiting game whose start date has arrived and
// finishes every running game whose end date has passed. Failures on one game
// never block the rest.
func (s *Scheduler) Sweep(ctx context.Context) {
	today := dateOnly(s.now())

	due, err := s.source.GamesDueToStart(ctx, today)
	if err != nil {
		s.log.WithError(err).Error("failed to list games due to start")
	}
	for _, g := range due {
		if err := s.flows.StartGame(ctx, g.ID); err != nil {
			s.log.WithField("game_id", g.ID).WithError(err).Error("scheduled start failed")
		}
	}

	ending, err := s.source.GamesDueToEnd(ctx, today)
	if err != nil {
		s.log.WithError(err).Error("failed to list games due to end")
	}
	for _, g := range ending {
		if err := s.flows.FinishGame(ctx, g.ID); err != nil {
			s.log.WithField("game_id", g.ID).WithError(err).Error("scheduled finish failed")
		}
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
