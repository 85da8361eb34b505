package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/unlock.lua
var unlockScript string

type Client struct {
	rdb    *redis.Client
	unlock *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:    rdb,
		unlock: redis.NewScript(unlockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock acquires a distributed lock and returns an owner token.
// Returns ok=false when another holder has the lock.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.New().String()
	ok, err = c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a distributed lock. The Lua script only deletes
// the key when the token still matches, so an expired lock taken over by
// another holder is never released by the old one.
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.unlock.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("unlock script failed: %w", err)
	}
	return nil
}

// CacheStockOverview stores a rendered stock overview payload with TTL
func (c *Client) CacheStockOverview(ctx context.Context, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, "stock:overview", payload, ttl).Err()
}

// GetStockOverview retrieves the cached stock overview payload, or nil
// when the cache is cold.
func (c *Client) GetStockOverview(ctx context.Context) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, "stock:overview").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// InvalidateStockOverview drops the cached stock overview
func (c *Client) InvalidateStockOverview(ctx context.Context) error {
	return c.rdb.Del(ctx, "stock:overview").Err()
}
