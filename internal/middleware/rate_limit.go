package middleware

import (
	"net/http"
	"strconv"
	"time"

	"echoflow/internal/app/identity"
	"echoflow/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Token bucket kept in a redis hash. Returns {allowed, remaining, retry_after}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'updated_at')
local tokens = tonumber(bucket[1])
local updated_at = tonumber(bucket[2])

if tokens == nil or updated_at == nil then
    tokens = capacity
    updated_at = now
end

local elapsed = math.max(0, now - updated_at)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local retry_after = 0

if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
else
    retry_after = (requested - tokens) / rate
end

redis.call('HMSET', key, 'tokens', tokens, 'updated_at', now)
redis.call('EXPIRE', key, 86400)

return {allowed, math.floor(tokens), math.ceil(retry_after)}
`)

// RateLimit allows qps requests per second with bursts of 2*qps, per user
// when the request is authenticated and per client IP otherwise. When
// redis is unreachable requests pass.
func RateLimit(client *redis.Client, qps int, logger *zap.Logger) gin.HandlerFunc {
	sugar := logger.Sugar()
	if qps <= 0 {
		qps = 1
	}
	capacity := 2 * qps
	rate := float64(qps)

	return func(c *gin.Context) {
		key := "rate_limit:ip:" + c.ClientIP()
		if id, err := identity.From(c); err == nil {
			key = "rate_limit:user:" + id.UserID
		}
		now := float64(time.Now().UnixNano()) / 1e9

		result, err := tokenBucket.Run(c.Request.Context(), client, []string{key}, capacity, rate, now, 1).Int64Slice()
		if err != nil || len(result) < 3 {
			sugar.Warnw("Rate limiter unavailable, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(capacity))
		if result[0] == 0 {
			metrics.RateLimitedTotal.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", strconv.FormatInt(result[2], 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result[1], 10))
		c.Next()
	}
}
