package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Pinger is the part of a Redis client the checker needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker implements health checking for the rate limit Redis.
type RedisChecker struct {
	client Pinger
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client Pinger) *RedisChecker {
	return &RedisChecker{
		client: client,
	}
}

// HealthCheck sends a PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
