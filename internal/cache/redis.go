package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache using Redis.
// Used for multi-node deployments and as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, pageID string, key string) ([]byte, error) {
	if pageID == "" {
		return nil, fmt.Errorf("pageID is required")
	}

	fullKey := c.makeKey(pageID, key)
	val, err := c.client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(ctx context.Context, pageID string, key string, value []byte, ttl time.Duration) error {
	if pageID == "" {
		return fmt.Errorf("pageID is required")
	}

	fullKey := c.makeKey(pageID, key)
	return c.client.Set(ctx, fullKey, value, ttl).Err()
}

// Delete removes a value from Redis.
func (c *RedisCache) Delete(ctx context.Context, pageID string, key string) error {
	if pageID == "" {
		return fmt.Errorf("pageID is required")
	}

	fullKey := c.makeKey(pageID, key)
	return c.client.Del(ctx, fullKey).Err()
}

// MarkSeen records that a post has been checked.
func (c *RedisCache) MarkSeen(ctx context.Context, pageID string, postID string, ttl time.Duration) error {
	return c.Set(ctx, pageID, "seen:"+postID, []byte("1"), ttl)
}

// Seen reports whether a post was checked within the marker TTL.
func (c *RedisCache) Seen(ctx context.Context, pageID string, postID string) (bool, error) {
	val, err := c.Get(ctx, pageID, "seen:"+postID)
	if err != nil {
		return false, err
	}
	return val != nil, nil
}

// IncrementCounter atomically increments a counter using Redis INCR with EXPIRE.
func (c *RedisCache) IncrementCounter(ctx context.Context, pageID string, key string, window time.Duration) (int64, error) {
	if pageID == "" {
		return 0, fmt.Errorf("pageID is required")
	}

	fullKey := c.makeKey(pageID, "counter:"+key)

	// Use Lua script for atomic increment with TTL
	script := redis.NewScript(`
		local current = redis.call('INCR', KEYS[1])
		if current == 1 then
			redis.call('PEXPIRE', KEYS[1], ARGV[1])
		end
		return current
	`)

	result, err := script.Run(ctx, c.client, []string{fullKey}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}

	return result, nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) makeKey(pageID, key string) string {
	return "shrike:" + pageID + ":" + key
}
