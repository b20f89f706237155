package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces quota counters in a shared Redis.
const RedisKeyPrefix = "provider-search:quota:"

// takeScript creates the window with its expiry on first use, counts the
// request and returns {count, ms until the window ends}.
var takeScript = redis.NewScript(`
redis.call('SET', KEYS[1], 0, 'PX', ARGV[1], 'NX')
local count = redis.call('INCR', KEYS[1])
local left = redis.call('PTTL', KEYS[1])
if left < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  left = tonumber(ARGV[1])
end
return {count, left}
`)

// RedisStore is a LimitStore shared by every API replica.
// When Redis cannot be reached it lets the request through and counts the
// failure, so an outage degrades to no rate limiting rather than no search.
type RedisStore struct {
	client  redis.Scripter
	metrics *Metrics
}

// NewRedisStore creates a store on client. metrics may be nil.
func NewRedisStore(client redis.Scripter, metrics *Metrics) *RedisStore {
	return &RedisStore{client: client, metrics: metrics}
}

// Take implements LimitStore.
func (s *RedisStore) Take(ctx context.Context, key string, limit Limit) Decision {
	windowMS := max(limit.Window.Milliseconds(), 1)

	res, err := takeScript.Run(ctx, s.client, []string{RedisKeyPrefix + key}, windowMS).Int64Slice()
	if err != nil || len(res) != 2 {
		if s.metrics != nil {
			s.metrics.IncRateLimitRedisErrors()
		}
		slog.WarnContext(ctx, "quota store unavailable, allowing request", "limit", limit.Name, "error", err)
		return Decision{Allowed: true, Remaining: limit.Requests, ResetIn: limit.Window}
	}

	count := int(res[0])
	resetIn := time.Duration(res[1]) * time.Millisecond
	if count > limit.Requests {
		return Decision{ResetIn: resetIn}
	}
	return Decision{Allowed: true, Remaining: limit.Requests - count, ResetIn: resetIn}
}
