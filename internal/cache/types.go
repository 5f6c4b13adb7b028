package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("cache is closed")
)

// Level identifies a cache tier.
type Level int

const (
	LevelMemory Level = iota
	LevelDisk
)

// String returns the string representation of the cache level.
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds cache metrics.
type Stats struct {
	Capacity  int64 // bytes
	Size      int64 // bytes currently stored
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64

	LastAccess time.Time
	LastEvict  time.Time
}

func (s *Stats) computeHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Config configures a Store.
type Config struct {
	Dir              string
	MemoryCapacity   int64 // bytes
	DiskCapacity     int64 // bytes
	CompressionLevel int   // zstd level, 0 disables compression
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		MemoryCapacity:   32 * 1024 * 1024,
		DiskCapacity:     100 * 1024 * 1024,
		CompressionLevel: 3,
	}
}

// Key derives the cache key for a synthesized utterance. Anything that
// changes the produced audio must be part of it.
func Key(text, model string, lengthScale float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%.3f", model, text, lengthScale)))
	return hex.EncodeToString(sum[:])
}
