package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// HSet writes a single hash field.
func (c *Client) HSet(ctx context.Context, key, field, value string) error {
	return c.rdb.HSet(ctx, key, field, value).Err()
}

// HGet reads a single hash field, returning ErrKeyNotFound if the field is
// genuinely absent (whether or not the hash itself exists). Any other
// error — a timeout, a connection drop — is propagated as-is so callers
// don't mistake a transient outage for a missing key.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := c.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	} else if err != nil {
		return "", err
	}
	return val, nil
}

// HDel removes a hash field.
func (c *Client) HDel(ctx context.Context, key, field string) error {
	return c.rdb.HDel(ctx, key, field).Err()
}

// HSetNX sets a hash field only if it does not already exist, used for the
// short-code conditional-insert loop.
func (c *Client) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	return c.rdb.HSetNX(ctx, key, field, value).Result()
}

// SAdd adds members to a set.
func (c *Client) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.rdb.SAdd(ctx, key, args...).Err()
}

// SRem removes a member from a set.
func (c *Client) SRem(ctx context.Context, key, member string) error {
	return c.rdb.SRem(ctx, key, member).Err()
}

// SIsMember reports set membership.
func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return c.rdb.SIsMember(ctx, key, member).Result()
}

// Incr increments an integer counter, returning the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}
