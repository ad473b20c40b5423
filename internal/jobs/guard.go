package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard marks a job name+key in flight with a short-lived redis key so
// duplicate deliveries of the same trigger collapse into one execution.
// The TTL bounds how long a crashed worker can hold the slot.
type Guard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewGuard(client *redis.Client, prefix string, ttl time.Duration) *Guard {
	if prefix == "" {
		prefix = "jobs_inflight"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Guard{client: client, prefix: prefix, ttl: ttl}
}

// Begin reports whether this caller won the in-flight slot.
func (g *Guard) Begin(ctx context.Context, scope, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.redisKey(scope, key), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("guard begin %s/%s: %w", scope, key, err)
	}
	return ok, nil
}

func (g *Guard) Release(ctx context.Context, scope, key string) error {
	if err := g.client.Del(ctx, g.redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("guard release %s/%s: %w", scope, key, err)
	}
	return nil
}

func (g *Guard) redisKey(scope, key string) string {
	return g.prefix + ":" + scope + ":" + key
}
