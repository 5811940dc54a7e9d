package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const queueNumberKey = "counter:queue_number"

// QueueCounter hands out queue numbers via an atomic Redis INCR so that
// concurrent enqueues can never compute the same number from a stale read.
type QueueCounter struct {
	client *redis.Client
}

func NewQueueCounter(client *redis.Client) *QueueCounter {
	return &QueueCounter{client: client}
}

// Next returns the next queue number.
func (c *QueueCounter) Next(ctx context.Context) (int, error) {
	n, err := c.client.Incr(ctx, queueNumberKey).Result()
	if err != nil {
		return 0, fmt.Errorf("increment queue counter: %w", err)
	}
	return int(n), nil
}

var ensureAtLeastScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if cur < floor then
  redis.call("SET", KEYS[1], floor)
  return floor
end
return cur
`)

// EnsureAtLeast raises the counter to floor if it is behind. Called on
// startup with max(queue_number) from the database so a fresh Redis
// instance cannot reissue numbers that already exist.
func (c *QueueCounter) EnsureAtLeast(ctx context.Context, floor int) error {
	_, err := ensureAtLeastScript.Run(ctx, c.client, []string{queueNumberKey}, floor).Result()
	if err != nil {
		return fmt.Errorf("seed queue counter: %w", err)
	}
	return nil
}
