package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rate_limit"

// fixedWindowScript increments the counter and arms its expiry in one round trip, so a
// counter can never be left without a TTL. Returns {count, remaining ms}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Window is the outcome of one fixed-window check.
type Window struct {
	Allowed bool
	Count   int64
	Limit   int64
	ResetIn time.Duration
}

// Remaining is how many more requests the window admits.
func (w Window) Remaining() int64 {
	if w.Count >= w.Limit {
		return 0
	}
	return w.Limit - w.Count
}

// RateLimiter is the fixed-window surface used by the HTTP rate-limit middleware.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error)
}

// RateLimitKey returns the namespaced counter key for scope.
func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

// FixedWindowAllow counts one request against scope and reports whether it fits in limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	if c.store == nil {
		return Window{}, errNotInitialized
	}
	if window < time.Millisecond {
		return Window{}, fmt.Errorf("rate limit window %s too small", window)
	}
	res, err := fixedWindowScript.Run(ctx, c.store, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	if len(res) != 2 {
		return Window{}, fmt.Errorf("rate limit %s: unexpected reply %v", scope, res)
	}
	return Window{
		Allowed: res[0] <= limit,
		Count:   res[0],
		Limit:   limit,
		ResetIn: time.Duration(res[1]) * time.Millisecond,
	}, nil
}
