package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "index.gob"
	entryExt  = ".zst"

	// Values smaller than this are stored raw.
	compressThreshold = 1024
)

// DiskCache persists values as files under a directory, compressed with
// zstd. The index is a gob file next to them.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry
	seq   uint64 // access counter, orders entries for eviction

	mu     sync.Mutex
	stats  Stats
	closed bool
}

type diskEntry struct {
	Key          string
	File         string // relative to dir
	Size         int64  // on disk
	OriginalSize int64
	Compressed   bool
	Created      time.Time
	LastAccess   time.Time
	Seq          uint64
}

// NewDiskCache opens or creates a disk cache in dir. A compression level of
// 0 stores values raw.
func NewDiskCache(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Entries written with compression stay readable after it is turned off.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	dc.decoder = dec

	if err := dc.loadIndex(); err != nil {
		log.Warn("Discarding unreadable cache index", "dir", dir, "err", err)
		dc.index = make(map[string]*diskEntry)
	}
	dc.recount()

	return dc, nil
}

// Get reads the value for key. Missing or corrupt files are dropped from the
// index and count as misses.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(dc.dir, entry.File))
	if err == nil && entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "err", err)
		dc.remove(key)
		dc.stats.Misses++
		return nil, false
	}

	dc.touch(entry)
	dc.stats.Hits++
	return data, true
}

// Put writes value under key, evicting least recently used entries to stay
// within capacity.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return ErrClosed
	}

	data, compressed := value, false
	if dc.encoder != nil && len(value) > compressThreshold {
		if enc := dc.encoder.EncodeAll(value, nil); len(enc) < len(value) {
			data, compressed = enc, true
		}
	}

	n := int64(len(data))
	if n > dc.capacity {
		return ErrItemTooLarge
	}

	if _, ok := dc.index[key]; ok {
		dc.remove(key)
	}
	for dc.size+n > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	name := key + entryExt
	if err := writeFileAtomic(filepath.Join(dc.dir, name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	entry := &diskEntry{
		Key:          key,
		File:         name,
		Size:         n,
		OriginalSize: int64(len(value)),
		Compressed:   compressed,
		Created:      time.Now(),
	}
	dc.touch(entry)
	dc.index[key] = entry
	dc.size += n

	return dc.saveIndex()
}

// Contains reports whether key is indexed without touching its recency.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// Clear removes every entry and its file.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key := range dc.index {
		dc.remove(key)
	}
	dc.size = 0
	return dc.saveIndex()
}

// Stats returns a copy of the cache metrics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Size = dc.size
	stats.Items = int64(len(dc.index))
	stats.computeHitRate()
	return stats
}

// Keys returns the indexed keys, least recently used first.
func (dc *DiskCache) Keys() []string {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entries := dc.sorted()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Close persists the index. Later writes fail with ErrClosed.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return nil
	}
	dc.closed = true
	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	dc.decoder.Close()
	return dc.saveIndex()
}

func (dc *DiskCache) touch(e *diskEntry) {
	dc.seq++
	e.Seq = dc.seq
	e.LastAccess = time.Now()
	dc.stats.LastAccess = e.LastAccess
}

func (dc *DiskCache) remove(key string) {
	entry, ok := dc.index[key]
	if !ok {
		return
	}
	if err := os.Remove(filepath.Join(dc.dir, entry.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Debug("Failed to remove cache file", "file", entry.File, "err", err)
	}
	dc.size -= entry.Size
	delete(dc.index, key)
}

func (dc *DiskCache) evictOldest() {
	entries := dc.sorted()
	if len(entries) == 0 {
		return
	}
	dc.remove(entries[0].Key)
	dc.stats.Evictions++
	dc.stats.LastEvict = time.Now()
}

// sorted returns the entries by recency, oldest first.
func (dc *DiskCache) sorted() []*diskEntry {
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})
	return entries
}

func (dc *DiskCache) recount() {
	dc.size = 0
	for _, e := range dc.index {
		dc.size += e.Size
		if e.Seq > dc.seq {
			dc.seq = e.Seq
		}
	}
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	return gob.NewDecoder(f).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to write cache index: %w", err)
	}
	err = gob.NewEncoder(f).Encode(dc.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write cache index: %w", err)
	}
	return os.Rename(tmp, path)
}

// writeFileAtomic writes to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
