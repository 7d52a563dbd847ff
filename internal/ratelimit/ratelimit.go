// Package ratelimit provides token-bucket rate limiting for the HTTP
// surface, backed by Redis with an in-memory fallback when the store is
// unreachable.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend checks whether a request may proceed.
type Backend interface {
	// CheckRateLimit consumes requested tokens from the bucket at key.
	// Returns whether the request is allowed and the remaining tokens.
	CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (allowed bool, remaining int, err error)
}

// Token bucket as a single atomic Lua call.
// KEYS[1] = bucket key
// ARGV[1] = max_tokens, ARGV[2] = refill rate (tokens/s),
// ARGV[3] = now (unix seconds), ARGV[4] = tokens requested
var tokenBucketScript = redis.NewScript(`
local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or tonumber(ARGV[1])
local last = tonumber(bucket[2]) or tonumber(ARGV[3])

local elapsed = tonumber(ARGV[3]) - last
tokens = math.min(tonumber(ARGV[1]), tokens + elapsed * tonumber(ARGV[2]))

local allowed = 0
if tokens >= tonumber(ARGV[4]) then
    tokens = tokens - tonumber(ARGV[4])
    allowed = 1
end

redis.call('HMSET', KEYS[1], 'tokens', tokens, 'last_refill', ARGV[3])
redis.call('EXPIRE', KEYS[1], math.ceil(tonumber(ARGV[1]) / tonumber(ARGV[2])) + 10)

return {allowed, math.floor(tokens)}
`)

// RedisBackend implements Backend on a shared Redis client.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a Redis-backed rate limit backend.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	now := float64(time.Now().Unix())

	result, err := tokenBucketScript.Run(ctx, b.client, []string{key},
		maxTokens, refillRate, now, requested,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected result length: %d", len(result))
	}

	allowed, _ := result[0].(int64)
	remaining, _ := result[1].(int64)
	return allowed == 1, int(remaining), nil
}

// BucketKey returns the rate limit key for a client IP.
func BucketKey(ip string) string {
	return "kvcache:rl:ip:" + ip
}
