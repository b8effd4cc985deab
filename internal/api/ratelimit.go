package api

import (
	"context"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace/pkg/config"
)

// TokenBucket takes one token for key.
type TokenBucket interface {
	Take(ctx context.Context, key string) (allowed bool, remaining int64, retryAfter time.Duration, err error)
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RedisBucket is a distributed token bucket evaluated atomically in Redis.
type RedisBucket struct {
	Client *redis.Client
	Cfg    config.RateLimitConfig
	Prefix string
}

func (b RedisBucket) Take(ctx context.Context, key string) (bool, int64, time.Duration, error) {
	ttl := b.Cfg.TTL
	if minTTL := 5 * b.Cfg.RefillInterval; ttl < minTTL {
		ttl = minTTL
	}
	vals, err := tokenBucketScript.Run(ctx, b.Client, []string{b.Prefix + ":" + key},
		time.Now().UnixMilli(),
		max(b.Cfg.Capacity, 1),
		max(b.Cfg.RefillTokens, 1),
		b.Cfg.RefillInterval.Milliseconds(),
		int64(math.Ceil(ttl.Seconds())),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected rate limit script result: %v", vals)
	}
	return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}

// RateLimit throttles per caller (or per client IP when unauthenticated). A nil bucket or a
// Redis failure lets the request through.
func RateLimit(cfg config.RateLimitConfig, bucket TokenBucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || bucket == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, retry, err := bucket.Take(r.Context(), rateKey(r))
			if err != nil {
				log.Printf("ratelimit error err=%v", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(r *http.Request) string {
	if id := IdentityFromContext(r.Context()); id != nil && id.UserID != "" {
		return "user:" + id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
