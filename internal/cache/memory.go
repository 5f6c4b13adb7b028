package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is an in-memory LRU bounded by total value size.
type MemoryCache struct {
	capacity int64
	size     int64

	items    map[string]*list.Element
	eviction *list.List // front is most recently used

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key   string
	value []byte
}

// NewMemoryCache creates a memory cache holding at most capacity bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns the value for key and marks it most recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	c.stats.Hits++
	c.stats.LastAccess = time.Now()
	return elem.Value.(*memoryEntry).value, true
}

// Put stores value under key, evicting least recently used entries to make
// room.
func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(value))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	for c.size+n > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	c.items[key] = c.eviction.PushFront(&memoryEntry{key: key, value: value})
	c.size += n
	return nil
}

// Delete removes key if present.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
}

// Contains reports whether key is cached without touching its recency.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Stats returns a copy of the cache metrics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	stats.Items = int64(len(c.items))
	stats.computeHitRate()
	return stats
}

// must be called with the lock held
func (c *MemoryCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}
}

// must be called with the lock held
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.value))
}
