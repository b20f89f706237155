package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// localRedis returns a client for a Redis on localhost:6379 or skips.
func localRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available on localhost:6379")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore_Take(t *testing.T) {
	client := localRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, nil)
	limit := Limit{Name: LimitSearch, Requests: 3, Window: time.Minute}
	key := "test|" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { client.Del(context.Background(), RedisKeyPrefix+key) })

	for i, wantRemaining := range []int{2, 1, 0} {
		d := store.Take(ctx, key, limit)
		if !d.Allowed || d.Remaining != wantRemaining {
			t.Fatalf("request %d: %+v", i+1, d)
		}
	}
	d := store.Take(ctx, key, limit)
	if d.Allowed || d.ResetIn <= 0 || d.ResetIn > time.Minute {
		t.Errorf("over quota: %+v", d)
	}

	ttl, err := client.PTTL(ctx, RedisKeyPrefix+key).Result()
	if err != nil || ttl <= 0 {
		t.Errorf("window key has no expiry: %v %v", ttl, err)
	}
}

func TestRedisStore_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	m := NewMetrics()
	store := NewRedisStore(client, m)
	limit := Limit{Name: LimitSearch, Requests: 5, Window: time.Minute}

	d := store.Take(context.Background(), "k", limit)
	if !d.Allowed || d.Remaining != 5 || d.ResetIn != time.Minute {
		t.Errorf("expected fail-open decision, got %+v", d)
	}
	if got := counterValue(t, m.limitRedisErr); got != 1 {
		t.Errorf("redis errors = %v, want 1", got)
	}
}
