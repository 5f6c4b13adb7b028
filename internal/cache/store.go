package cache

import (
	"errors"
	"fmt"
	"sync"
)

// Store layers a MemoryCache over a DiskCache. Disk hits are promoted to
// memory.
type Store struct {
	memory *MemoryCache
	disk   *DiskCache

	mu        sync.Mutex
	memHits   int64
	diskHits  int64
	misses    int64
	closeOnce sync.Once
}

// StoreStats reports both tiers plus the combined hit counts.
type StoreStats struct {
	Memory   Stats
	Disk     Stats
	MemHits  int64
	DiskHits int64
	Misses   int64
}

// HitRate is the share of lookups served by either tier.
func (s StoreStats) HitRate() float64 {
	total := s.MemHits + s.DiskHits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.MemHits+s.DiskHits) / float64(total)
}

// Open creates a store rooted at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}
	def := DefaultConfig(cfg.Dir)
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = def.MemoryCapacity
	}
	if cfg.DiskCapacity <= 0 {
		cfg.DiskCapacity = def.DiskCapacity
	}

	disk, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}
	return &Store{
		memory: NewMemoryCache(cfg.MemoryCapacity),
		disk:   disk,
	}, nil
}

// Get looks in memory, then on disk.
func (s *Store) Get(key string) ([]byte, bool) {
	if data, ok := s.memory.Get(key); ok {
		s.count(&s.memHits)
		return data, true
	}
	if data, ok := s.disk.Get(key); ok {
		s.count(&s.diskHits)
		_ = s.memory.Put(key, data) // too large for memory is fine
		return data, true
	}
	s.count(&s.misses)
	return nil, false
}

// Put writes through to both tiers. Only a disk failure is reported.
func (s *Store) Put(key string, value []byte) error {
	_ = s.memory.Put(key, value)
	return s.disk.Put(key, value)
}

// Clear empties both tiers.
func (s *Store) Clear() error {
	s.memory.Clear()
	return s.disk.Clear()
}

// Stats returns the metrics of both tiers.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreStats{
		Memory:   s.memory.Stats(),
		Disk:     s.disk.Stats(),
		MemHits:  s.memHits,
		DiskHits: s.diskHits,
		Misses:   s.misses,
	}
}

// Close flushes the disk index.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.disk.Close()
	})
	return err
}

func (s *Store) count(n *int64) {
	s.mu.Lock()
	*n++
	s.mu.Unlock()
}
