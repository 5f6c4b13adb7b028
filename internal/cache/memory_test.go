package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(1024)

	key := "test-key"
	value := []byte("test-value")

	if err := cache.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	retrieved, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if string(retrieved) != string(value) {
		t.Errorf("Retrieved value mismatch: got %s, want %s", retrieved, value)
	}
	if !cache.Contains(key) {
		t.Error("Contains returned false for existing key")
	}
	if got := cache.Stats().Size; got != int64(len(value)) {
		t.Errorf("Size mismatch: got %d, want %d", got, len(value))
	}

	cache.Delete(key)
	if cache.Contains(key) {
		t.Error("Key still exists after delete")
	}
	if got := cache.Stats().Size; got != 0 {
		t.Errorf("Size not zero after delete: %d", got)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(30)

	for i := 0; i < 3; i++ {
		if err := cache.Put(fmt.Sprintf("key%d", i), make([]byte, 10)); err != nil {
			t.Fatal(err)
		}
	}

	// key0 becomes most recently used, so key1 is evicted next.
	cache.Get("key0")
	if err := cache.Put("key3", make([]byte, 10)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  string
		want bool
	}{
		{"key0", true},
		{"key1", false},
		{"key2", true},
		{"key3", true},
	}
	for _, tt := range tests {
		if got := cache.Contains(tt.key); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	if ev := cache.Stats().Evictions; ev != 1 {
		t.Errorf("Evictions = %d, want 1", ev)
	}
}

func TestMemoryCache_ReplaceUpdatesSize(t *testing.T) {
	cache := NewMemoryCache(100)

	_ = cache.Put("k", make([]byte, 40))
	_ = cache.Put("k", make([]byte, 10))

	stats := cache.Stats()
	if stats.Size != 10 || stats.Items != 1 {
		t.Errorf("after replace size=%d items=%d, want 10 and 1", stats.Size, stats.Items)
	}
}

func TestMemoryCache_TooLarge(t *testing.T) {
	cache := NewMemoryCache(8)
	if err := cache.Put("big", make([]byte, 9)); err != ErrItemTooLarge {
		t.Errorf("Put() = %v, want ErrItemTooLarge", err)
	}
}

func TestMemoryCache_HitRate(t *testing.T) {
	cache := NewMemoryCache(100)
	_ = cache.Put("a", []byte("x"))

	cache.Get("a")
	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	stats := cache.Stats()
	if stats.Hits != 3 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 3 and 1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.75 {
		t.Errorf("HitRate = %v, want 0.75", stats.HitRate)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache(100)
	_ = cache.Put("a", []byte("1"))
	_ = cache.Put("b", []byte("2"))

	cache.Clear()

	if stats := cache.Stats(); stats.Items != 0 || stats.Size != 0 {
		t.Errorf("after Clear items=%d size=%d", stats.Items, stats.Size)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(1024)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("g%d-%d", g, i%10)
				_ = cache.Put(key, []byte(key))
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if size := cache.Stats().Size; size > 1024 {
		t.Errorf("size %d exceeds capacity", size)
	}
}
