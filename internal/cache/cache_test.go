package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pagewatch/shrike/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	pageID := "page-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, pageID, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, pageID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, pageID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, pageID, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, pageID, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, pageID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, pageID, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, pageID, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, pageID, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, pageID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, pageID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, pageID, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, pageID, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, pageID, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, pageID, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, pageID, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("PageIsolation", func(t *testing.T) {
		page1 := "page-001"
		page2 := "page-002"

		_ = cache.Set(ctx, page1, "shared-key", []byte("page1-value"), time.Minute)
		_ = cache.Set(ctx, page2, "shared-key", []byte("page2-value"), time.Minute)

		val1, _ := cache.Get(ctx, page1, "shared-key")
		val2, _ := cache.Get(ctx, page2, "shared-key")

		if string(val1) != "page1-value" {
			t.Errorf("expected 'page1-value', got '%s'", string(val1))
		}
		if string(val2) != "page2-value" {
			t.Errorf("expected 'page2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresPageID", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if err == nil {
			t.Error("expected error for empty pageID")
		}

		_, err = cache.Get(ctx, "", "key")
		if err == nil {
			t.Error("expected error for empty pageID")
		}
	})

	t.Run("IncrementCounter", func(t *testing.T) {
		window := 100 * time.Millisecond

		count1, err := cache.IncrementCounter(ctx, pageID, "alerts", window)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count1 != 1 {
			t.Errorf("expected count 1, got %d", count1)
		}

		count2, _ := cache.IncrementCounter(ctx, pageID, "alerts", window)
		if count2 != 2 {
			t.Errorf("expected count 2, got %d", count2)
		}

		// Wait for window to expire
		time.Sleep(150 * time.Millisecond)

		count3, _ := cache.IncrementCounter(ctx, pageID, "alerts", window)
		if count3 != 1 {
			t.Errorf("expected count 1 after window reset, got %d", count3)
		}
	})

	t.Run("SeenMarkers", func(t *testing.T) {
		seen, err := cache.Seen(ctx, pageID, "post-100")
		if err != nil {
			t.Fatalf("Seen failed: %v", err)
		}
		if seen {
			t.Error("expected post to be unseen initially")
		}

		if err := cache.MarkSeen(ctx, pageID, "post-100", time.Minute); err != nil {
			t.Fatalf("MarkSeen failed: %v", err)
		}

		seen, err = cache.Seen(ctx, pageID, "post-100")
		if err != nil {
			t.Fatalf("Seen failed: %v", err)
		}
		if !seen {
			t.Error("expected post to be seen after MarkSeen")
		}

		// Markers are page scoped
		seen, _ = cache.Seen(ctx, "page-other", "post-100")
		if seen {
			t.Error("expected marker not to leak across pages")
		}
	})

	t.Run("SeenMarkerExpires", func(t *testing.T) {
		_ = cache.MarkSeen(ctx, pageID, "post-ttl", 10*time.Millisecond)

		time.Sleep(20 * time.Millisecond)

		seen, _ := cache.Seen(ctx, pageID, "post-ttl")
		if seen {
			t.Error("expected marker to expire")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, pageID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, pageID, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, pageID, "k", []byte("v"), time.Minute)

		err := testCache.Close()
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Cache should be empty after close
		val, _ := testCache.Get(ctx, pageID, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		_, ok := cache.(*LRUCache)
		if !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
