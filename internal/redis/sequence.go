package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultSequenceKey = "seq:queue_number"

// Sequence hands out queue numbers from a Redis counter so that several
// api-server instances share one monotonically increasing series.
type Sequence struct {
	client *redis.Client
	key    string
}

func NewSequence(client *redis.Client, key string) *Sequence {
	if key == "" {
		key = DefaultSequenceKey
	}
	return &Sequence{client: client, key: key}
}

var raiseScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if cur < floor then
  redis.call("SET", KEYS[1], floor)
  return floor
end
return cur
`)

// Seed raises the counter to at least floor. It never lowers it, so calling
// it on every process start keeps numbers from being reused.
func (s *Sequence) Seed(ctx context.Context, floor int64) (int64, error) {
	cur, err := raiseScript.Run(ctx, s.client, []string{s.key}, floor).Int64()
	if err != nil {
		return 0, fmt.Errorf("seed queue sequence: %w", err)
	}
	return cur, nil
}

func (s *Sequence) Next(ctx context.Context) (int64, error) {
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("next queue number: %w", err)
	}
	return n, nil
}
