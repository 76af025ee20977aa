package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds the rate limit parameters shared by both algorithms.
type Config struct {
	RequestsPerSecond float64
	BurstCapacity     int
	WindowSeconds     int
}

// tokenBucketScript refills tokens by elapsed time and consumes one.
// The bucket state is {last_refill, tokens} in a hash.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'last_refill', tostring(now), 'tokens', tostring(tokens))
redis.call('EXPIRE', key, ttl)
return allowed
`)

// TokenBucket is a Redis-backed token bucket. It allows bursts up to
// BurstCapacity and refills at RequestsPerSecond.
type TokenBucket struct {
	client redis.Scripter
	config Config
	now    func() time.Time
}

// NewTokenBucket creates a token bucket limiter.
func NewTokenBucket(client redis.Scripter, config Config) *TokenBucket {
	return &TokenBucket{client: client, config: config, now: time.Now}
}

// Allow implements Limiter.
func (tb *TokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(tb.now().UnixMilli()) / 1000
	ttl := tb.bucketTTL()

	allowed, err := tokenBucketScript.Run(ctx, tb.client, []string{"ratelimit:tb:" + key},
		tb.config.RequestsPerSecond,
		tb.config.BurstCapacity,
		now,
		ttl,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("token bucket: %w", err)
	}
	return allowed == 1, nil
}

// bucketTTL keeps a bucket until it would be full again, plus a margin.
func (tb *TokenBucket) bucketTTL() int {
	if tb.config.RequestsPerSecond <= 0 {
		return 60
	}
	return int(float64(tb.config.BurstCapacity)/tb.config.RequestsPerSecond) + 1
}

var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
end
return count
`)

// FixedWindow counts requests per key in windows of WindowSeconds.
type FixedWindow struct {
	client redis.Scripter
	config Config
}

// NewFixedWindow creates a fixed window limiter.
func NewFixedWindow(client redis.Scripter, config Config) *FixedWindow {
	return &FixedWindow{client: client, config: config}
}

// MaxRequests is the number of requests allowed per window.
func (fw *FixedWindow) MaxRequests() int64 {
	n := int64(fw.config.RequestsPerSecond * float64(fw.config.WindowSeconds))
	if burst := int64(fw.config.BurstCapacity); burst > n {
		n = burst
	}
	return n
}

// Allow implements Limiter.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	count, err := fixedWindowScript.Run(ctx, fw.client, []string{"ratelimit:fw:" + key}, fw.config.WindowSeconds).Int64()
	if err != nil {
		return false, fmt.Errorf("fixed window: %w", err)
	}
	return count <= fw.MaxRequests(), nil
}
