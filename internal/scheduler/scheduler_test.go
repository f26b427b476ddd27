package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yulbax/SecretSantaBot/internal/santa"
)

type fakeSource struct {
	starting []*santa.Game
	ending   []*santa.Game
	listErr  error

	askedDay time.Time
}

func (s *fakeSource) GamesDueToStart(_ context.Context, day time.Time) ([]*santa.Game, error) {
	s.askedDay = day
	return s.starting, s.listErr
}

func (s *fakeSource) GamesDueToEnd(_ context.Context, day time.Time) ([]*santa.Game, error) {
	return s.ending, s.listErr
}

type fakeLifecycle struct {
	started  []uuid.UUID
	finished []uuid.UUID
	startErr map[uuid.UUID]error
}

func (l *fakeLifecycle) StartGame(_ context.Context, gameID uuid.UUID) error {
	l.started = append(l.started, gameID)
	return l.startErr[gameID]
}

func (l *fakeLifecycle) FinishGame(_ context.Context, gameID uuid.UUID) error {
	l.finished = append(l.finished, gameID)
	return nil
}

func testGame(t *testing.T) *santa.Game {
	t.Helper()
	return santa.NewGame("g", 1)
}

func newTestScheduler(source GameSource, flows Lifecycle) *Scheduler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New(source, flows, log)
	s.now = func() time.Time {
		return time.Date(2026, time.December, 24, 18, 30, 0, 0, time.UTC)
	}
	return s
}

func TestSweepStartsAndFinishesDueGames(t *testing.T) {
	starting := testGame(t)
	ending := testGame(t)
	source := &fakeSource{
		starting: []*santa.Game{starting},
		ending:   []*santa.Game{ending},
	}
	flows := &fakeLifecycle{}

	newTestScheduler(source, flows).Sweep(context.Background())

	assert.Equal(t, []uuid.UUID{starting.ID}, flows.started)
	assert.Equal(t, []uuid.UUID{ending.ID}, flows.finished)

	// The sweep queries by calendar date, not by timestamp.
	assert.Equal(t, time.Date(2026, time.December, 24, 0, 0, 0, 0, time.UTC), source.askedDay)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	first := testGame(t)
	second := testGame(t)
	source := &fakeSource{starting: []*santa.Game{first, second}}
	flows := &fakeLifecycle{
		startErr: map[uuid.UUID]error{first.ID: errors.New("boom")},
	}

	newTestScheduler(source, flows).Sweep(context.Background())

	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, flows.started,
		"one failing game must not block the rest of the sweep")
}

func TestSweepSurvivesListError(t *testing.T) {
	source := &fakeSource{listErr: errors.New("db down")}
	flows := &fakeLifecycle{}

	newTestScheduler(source, flows).Sweep(context.Background())

	assert.Empty(t, flows.started)
	assert.Empty(t, flows.finished)
}

func TestStartStop(t *testing.T) {
	source := &fakeSource{}
	flows := &fakeLifecycle{}
	s := newTestScheduler(source, flows)

	require.NoError(t, s.Start(time.Hour))
	s.Stop()
}
