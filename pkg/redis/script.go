package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript increments a per-user rate-limit bucket and sets its TTL in a
// single round-trip so INCR and EXPIRE never race each other.
var rateLimitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// IncrWithWindow increments key and, only on the first hit, sets its TTL to
// windowSeconds. It returns the post-increment count.
func (c *Client) IncrWithWindow(ctx context.Context, key string, windowSeconds int) (int64, error) {
	res, err := rateLimitScript.Run(ctx, c.rdb, []string{key}, windowSeconds).Result()
	if err != nil {
		return 0, err
	}
	n, _ := res.(int64)
	return n, nil
}

// casSetScript writes ARGV[2] to the string key KEYS[1] if — and only if —
// the key's current value equals ARGV[1], as one server-side step; this
// gives callers a compare-and-swap without a separate distributed lock
// round trip.
var casSetScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// CompareAndSet writes newValue to key only if its current value equals
// expected, returning whether the swap happened.
func (c *Client) CompareAndSet(ctx context.Context, key, expected, newValue string) (bool, error) {
	res, err := casSetScript.Run(ctx, c.rdb, []string{key}, expected, newValue).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}
