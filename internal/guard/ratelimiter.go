package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter caps how many change events one user may submit per window.
// A sorted set per user holds one member per accepted event.
type RateLimiter struct {
	client *redis.Client
	logger *slog.Logger
	limit  int
	window time.Duration
	now    func() time.Time
}

// Trims the window, counts, and admits the request atomically.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window + 1000)
    return 1
end
return 0
`)

// NewRateLimiter allows limit events per window. A limit of zero or less
// disables limiting.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{client: client, logger: logger, limit: limit, window: window, now: time.Now}
}

func limiterKey(userID string) string {
	return "rl:events:" + userID
}

// Allow reports whether the user may submit another event. Redis errors
// fail open.
func (rl *RateLimiter) Allow(ctx context.Context, userID string) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}

	now := rl.now()
	member := fmt.Sprintf("%d", now.UnixNano())

	allowed, err := slidingWindow.Run(ctx, rl.client, []string{limiterKey(userID)},
		now.UnixMilli(), rl.window.Milliseconds(), rl.limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "user_id", userID, "error", err)
		return true
	}

	if allowed == 0 {
		rl.logger.Debug("rate limited", "user_id", userID, "limit", rl.limit)
		return false
	}
	return true
}
