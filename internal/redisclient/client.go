package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/clientstate"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks connectivity
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

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get implements clientstate.Backend
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, stateKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, clientstate.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

// Set implements clientstate.Backend. Client state has no expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, stateKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete implements clientstate.Backend
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, stateKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// AddSubscriber records that sessionID wants restock news for productID
func (c *Client) AddSubscriber(ctx context.Context, productID int64, sessionID string) error {
	return c.rdb.SAdd(ctx, subscriberKey(productID), sessionID).Err()
}

// RemoveSubscriber drops sessionID from the productID index
func (c *Client) RemoveSubscriber(ctx context.Context, productID int64, sessionID string) error {
	return c.rdb.SRem(ctx, subscriberKey(productID), sessionID).Err()
}

// Subscribers lists the sessions subscribed to productID
func (c *Client) Subscribers(ctx context.Context, productID int64) ([]string, error) {
	return c.rdb.SMembers(ctx, subscriberKey(productID)).Result()
}

// CacheSet stores a value with TTL
func (c *Client) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, cacheKey(key), value, ttl).Err()
}

// CacheGet returns a cached value, or clientstate.ErrNotFound
func (c *Client) CacheGet(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, clientstate.ErrNotFound
	}
	return val, err
}

// SetIdempotencyKey stores key with TTL unless it already exists.
// Returns true if this call claimed the key.
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), "1", ttl).Result()
}

// ReleaseIdempotencyKey gives up a claim so the work can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, idempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func stateKey(key string) string {
	return fmt.Sprintf("state:%s", key)
}

func subscriberKey(productID int64) string {
	return "notify:product:" + strconv.FormatInt(productID, 10)
}

func cacheKey(key string) string {
	return fmt.Sprintf("cache:%s", key)
}
