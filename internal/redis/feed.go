package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChangeEvent is a cache-invalidation signal, not a source of truth.
// Connected terminals refresh their view when one arrives; the state
// machines themselves never consume the feed.
type ChangeEvent struct {
	Table    string    `json:"table"`
	Event    string    `json:"event"` // insert, update
	EntityID uuid.UUID `json:"entity_id"`
	At       time.Time `json:"at"`
}

// Feed broadcasts row-change notifications over Redis pub/sub, one
// channel per table.
type Feed struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewFeed(client *redis.Client, logger zerolog.Logger) *Feed {
	return &Feed{client: client, logger: logger}
}

func channelFor(table string) string {
	return fmt.Sprintf("feed:%s", table)
}

func (f *Feed) Publish(ctx context.Context, ev ChangeEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	if err := f.client.Publish(ctx, channelFor(ev.Table), data).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe returns a stream of change events for one table plus a stop
// function. Stopping closes the underlying subscription and the channel.
func (f *Feed) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, func()) {
	sub := f.client.Subscribe(ctx, channelFor(table))
	out := make(chan ChangeEvent)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.logger.Warn().Err(err).Str("table", table).Msg("drop malformed change event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		_ = sub.Close()
	}
	return out, stop
}
