package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const fileExt = ".zst"

// ErrItemTooLarge is returned when a value exceeds the cache capacity.
var ErrItemTooLarge = errors.New("item exceeds cache capacity")

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries   int
	Bytes     int64
	Capacity  int64
	Hits      int64
	Misses    int64
	Evictions int64
}

type entry struct {
	path       string
	size       int64
	lastAccess time.Time
}

// DiskCache is a size-bounded, least-recently-used cache of byte values.
type DiskCache struct {
	dir      string
	capacity int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	index map[string]*entry
	size  int64
	stats Stats
}

// NewDiskCache opens or creates a cache in dir holding at most capacity
// compressed bytes. level is a zstd level from 1 (fastest) to 22.
func NewDiskCache(dir string, capacity int64, level int) (*DiskCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	c := &DiskCache{
		dir:      dir,
		capacity: capacity,
		encoder:  enc,
		decoder:  dec,
		index:    make(map[string]*entry),
	}
	if err := c.scan(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Key derives a cache key from the parts that determine the audio.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16])
}

// Get returns the value stored under key.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	raw, err := os.ReadFile(e.path)
	if err == nil {
		var data []byte
		data, err = c.decoder.DecodeAll(raw, nil)
		if err == nil {
			now := time.Now()
			e.lastAccess = now
			os.Chtimes(e.path, now, now)
			c.stats.Hits++
			return data, true
		}
	}

	// missing or corrupt
	c.removeLocked(key, e)
	c.stats.Misses++
	return nil, false
}

// Put stores value under key, evicting least recently used entries to stay
// within capacity.
func (c *DiskCache) Put(key string, value []byte) error {
	compressed := c.encoder.EncodeAll(value, nil)
	size := int64(len(compressed))
	if size > c.capacity {
		return ErrItemTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.index[key]; ok {
		c.removeLocked(key, old)
	}
	for c.size+size > c.capacity && len(c.index) > 0 {
		c.evictOldestLocked()
	}

	path := filepath.Join(c.dir, key+fileExt)
	if err := writeFile(path, compressed); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.index[key] = &entry{path: path, size: size, lastAccess: time.Now()}
	c.size += size
	return nil
}

// Clear removes every entry.
func (c *DiskCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for key, e := range c.index {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		delete(c.index, key)
	}
	c.size = 0
	return errors.Join(errs...)
}

// Stats returns a snapshot of cache activity.
func (c *DiskCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = len(c.index)
	s.Bytes = c.size
	s.Capacity = c.capacity
	return s
}

// Close releases the codecs. Entries stay on disk.
func (c *DiskCache) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

// scan rebuilds the index from the files already in the directory.
func (c *DiskCache) scan() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(name, fileExt)
		c.index[key] = &entry{
			path:       filepath.Join(c.dir, name),
			size:       info.Size(),
			lastAccess: info.ModTime(),
		}
		c.size += info.Size()
	}

	for c.size > c.capacity && len(c.index) > 0 {
		c.evictOldestLocked()
	}
	return nil
}

func (c *DiskCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    *entry
	)
	for key, e := range c.index {
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
			oldestKey, oldest = key, e
		}
	}
	if oldest != nil {
		c.removeLocked(oldestKey, oldest)
		c.stats.Evictions++
	}
}

func (c *DiskCache) removeLocked(key string, e *entry) {
	os.Remove(e.path)
	c.size -= e.size
	delete(c.index, key)
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
