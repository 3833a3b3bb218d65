package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound 對應 redis.Nil，讓上層可以用 errors.Is 判斷而不必比對字串。
var ErrKeyNotFound = errors.New("redis: key not found")

// Config 定義 Redis 連線配置
type Config struct {
	Addr     string // Redis 伺服器地址 (e.g., "localhost:6379")
	Password string // Redis 密碼 (若無則留空)
	DB       int    // 使用的資料庫編號
}

// Client 封裝 redis.Client 以提供更簡易的介面
type Client struct {
	rdb redis.UniversalClient
}

// NewClient 建立並回傳一個新的 Redis 客戶端實例
func NewClient(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Wrap adapts an already-constructed client (e.g. miniredis's client in
// tests) into the package's Client type.
func Wrap(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

// Raw exposes the underlying go-redis client for call sites that need a
// primitive this wrapper doesn't cover (e.g. bespoke pipelines).
func (c *Client) Raw() redis.UniversalClient { return c.rdb }

// Close 關閉 Redis 連線
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetStruct 將結構體序列化為 JSON 並儲存到 Redis
func (c *Client) SetStruct(ctx context.Context, key string, value any, expiration ...time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	var exp time.Duration
	if len(expiration) > 0 {
		exp = expiration[0]
	}

	return c.rdb.Set(ctx, key, data, exp).Err()
}

// GetStruct 從 Redis 讀取 JSON 並反序列化為結構體
func (c *Client) GetStruct(ctx context.Context, key string, dest any) error {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrKeyNotFound
	} else if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

// AcquireLock 嘗試獲取分散式鎖 (使用 SETNX)
func (c *Client) AcquireLock(ctx context.Context, key string, value string, expiration ...time.Duration) (bool, error) {
	var exp time.Duration
	if len(expiration) > 0 {
		exp = expiration[0]
	}

	success, err := c.rdb.SetNX(ctx, key, value, exp).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// releaseLockScript 只有當鎖的值與傳入的 value 相符時才會刪除，確保不會釋放
// 別人的鎖。對應 要求的 server-side compare-and-delete script。
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// ReleaseLock 釋放分散式鎖，回傳是否真的持有並刪除了鎖。
func (c *Client) ReleaseLock(ctx context.Context, key string, value string) (bool, error) {
	res, err := releaseLockScript.Run(ctx, c.rdb, []string{key}, value).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// Del removes one or more keys, tolerating keys that don't exist.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Expire refreshes key's TTL.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

// MGetStruct batch-fetches JSON values, decoding each into a new T and
// returning them keyed by key. Missing keys are left out of the map rather
// than reported as an error, so LoadMany-style callers can distinguish absence.
func MGetStruct[T any](ctx context.Context, c *Client, keys []string) (map[string]*T, error) {
	if len(keys) == 0 {
		return map[string]*T{}, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*T, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var t T
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", keys[i], err)
		}
		out[keys[i]] = &t
	}
	return out, nil
}
