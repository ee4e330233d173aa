package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// The pipeline uses it for seen-post markers (so periodic runs do not
// re-check and re-alert the same post) and for alert burst counters.
// All methods require pageID for per-page isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, pageID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, pageID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, pageID string, key string) error

	// MarkSeen records that a post has been checked.
	MarkSeen(ctx context.Context, pageID string, postID string, ttl time.Duration) error

	// Seen reports whether a post was checked within the marker TTL.
	Seen(ctx context.Context, pageID string, postID string) (bool, error)

	// IncrementCounter atomically increments a counter and returns the new
	// value. Used to cap the number of alerts sent per page per window.
	IncrementCounter(ctx context.Context, pageID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
