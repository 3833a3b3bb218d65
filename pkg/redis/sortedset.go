package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ZAdd inserts or updates member with the given score.
func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRem removes member from the sorted set.
func (c *Client) ZRem(ctx context.Context, key string, member string) error {
	return c.rdb.ZRem(ctx, key, member).Err()
}

// ZAddNX inserts member with score only if it is not already present,
// leaving an existing member's score untouched. Used for creation-time
// indexes, where the first score written must be permanent.
func (c *Client) ZAddNX(ctx context.Context, key string, score float64, member string) error {
	return c.rdb.ZAddNX(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRangeByScore returns members whose score falls in [min, max], up to
// limit (0 means unlimited).
func (c *Client) ZRangeByScore(ctx context.Context, key string, min, max string, limit int64) ([]string, error) {
	opt := &redis.ZRangeBy{Min: min, Max: max}
	if limit > 0 {
		opt.Count = limit
	}
	return c.rdb.ZRangeByScore(ctx, key, opt).Result()
}

// ZRangeByScoreWithScores is ZRangeByScore but also returns each member's
// score, used where tie-break ordering or due-time inspection matters.
func (c *Client) ZRangeByScoreWithScores(ctx context.Context, key string, min, max string, limit int64) ([]redis.Z, error) {
	opt := &redis.ZRangeBy{Min: min, Max: max}
	if limit > 0 {
		opt.Count = limit
	}
	return c.rdb.ZRangeByScoreWithScores(ctx, key, opt).Result()
}

// ZRangeByRank returns members ranked [start, stop] (0-indexed, inclusive),
// used for paged listing by creation time.
func (c *Client) ZRangeByRank(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.ZRange(ctx, key, start, stop).Result()
}

// ZScore returns the current score of member, or ErrKeyNotFound if absent.
func (c *Client) ZScore(ctx context.Context, key, member string) (float64, error) {
	score, err := c.rdb.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, ErrKeyNotFound
	}
	return score, err
}

// ZCard returns the number of members in the sorted set.
func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.ZCard(ctx, key).Result()
}
