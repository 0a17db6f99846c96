package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/errors"
)

// slidingWindowScript prunes, counts, conditionally appends and refreshes the
// expiry of one sorted set in a single round trip. Scores are unix milliseconds.
//
// Returns {admitted, count, oldest} where oldest is -1 for an empty window.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

local admitted = 0
if count < limit then
    redis.call('ZADD', key, now, member)
    admitted = 1
end

local oldest = -1
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #head == 2 then
    oldest = tonumber(head[2])
end

redis.call('PEXPIRE', key, window)

return {admitted, count, oldest}
`)

// RedisStore keeps timestamp records in Redis sorted sets so replicas share one
// window per key. Keys expire with the window, so no sweeper is needed.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
}

// NewRedisStore creates a store for the limiter name.
func NewRedisStore(client redis.UniversalClient, name string, window time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.ErrInvalidConfig.WithMessage("redis client is required")
	}
	return &RedisStore{
		client: client,
		prefix: fmt.Sprintf("%s%s:", constants.CacheKeyPrefixRateLimit, name),
		window: window,
	}, nil
}

// Hit implements service.WindowStore.
func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, limit int) (models.WindowState, error) {
	reply, err := slidingWindowScript.Run(ctx, s.client, []string{s.buildKey(key)},
		now.UnixMilli(), s.window.Milliseconds(), limit, uuid.NewString(),
	).Result()
	if err != nil {
		return models.WindowState{}, errors.Internal(err, "store hit")
	}

	values, ok := reply.([]interface{})
	if !ok || len(values) != 3 {
		return models.WindowState{}, errors.Internal(fmt.Errorf("unexpected script reply %v", reply), "store reply")
	}

	admitted, ok1 := values[0].(int64)
	count, ok2 := values[1].(int64)
	oldest, ok3 := values[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return models.WindowState{}, errors.Internal(fmt.Errorf("unexpected script reply %v", values), "store reply")
	}

	state := models.WindowState{
		Admitted: admitted == 1,
		Count:    int(count),
	}
	if oldest >= 0 {
		state.Oldest = time.UnixMilli(oldest)
	}
	return state, nil
}

// Reset implements service.WindowStore.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.buildKey(key)).Err(); err != nil && err != redis.Nil {
		return errors.Internal(err, "store reset")
	}
	return nil
}

// Close implements service.WindowStore. The client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}

func (s *RedisStore) buildKey(key string) string {
	return s.prefix + key
}
