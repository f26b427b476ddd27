// Package cache pushes game lifecycle events onto a Redis list so the
// operational console can consume them out of band. Delivery is
// fire-and-forget: a missing or unreachable Redis never blocks game logic.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the lifecycle events land on.
const DefaultQueueName = "santa_events"

// Lifecycle event names.
const (
	EventGameStarted  = "game_started"
	EventGameFinished = "game_finished"
	EventGameDeleted  = "game_deleted"
	EventStartFailed  = "start_failed"
)

// GameEventRecord is the wire shape of one lifecycle event.
type GameEventRecord struct {
	GameID    uuid.UUID `json:"game_id"`
	Event     string    `json:"event"`
	Timestamp int64     `json:"timestamp"`
}

// EventQueue wraps the Redis client. A nil *EventQueue is valid and drops
// every publish, so callers never branch on whether Redis is configured.
type EventQueue struct {
	rdb   *redis.Client
	queue string
}

// Connect initializes the queue. An empty addr disables it (returns nil).
func Connect(addr string, db int) (*EventQueue, error) {
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &EventQueue{rdb: rdb, queue: DefaultQueueName}, nil
}

// Publish serializes the event and pushes it onto the queue. Failures are
// logged and swallowed.
func (q *EventQueue) Publish(ctx context.Context, event string, gameID uuid.UUID) {
	if q == nil {
		return
	}
	record := GameEventRecord{
		GameID:    gameID,
		Event:     event,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		log.WithError(err).Warn("failed to marshal game event")
		return
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		log.WithFields(log.Fields{"event": event, "game_id": gameID}).
			WithError(err).Warn("failed to push game event")
	}
}

// Close shuts the underlying client down.
func (q *EventQueue) Close() error {
	if q == nil {
		return nil
	}
	return q.rdb.Close()
}
