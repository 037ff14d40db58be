package cache

import "github.com/charmbracelet/log"

// Tiered checks a MemoryCache before a DiskCache. Disk hits are promoted to
// memory; writes go to both.
type Tiered struct {
	l1 *MemoryCache
	l2 *DiskCache
}

// NewTiered combines l1 and l2.
func NewTiered(l1 *MemoryCache, l2 *DiskCache) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// Get returns the value stored under key in either tier.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if v, ok := t.l1.Get(key); ok {
		return v, true
	}
	v, ok := t.l2.Get(key)
	if !ok {
		return nil, false
	}
	if err := t.l1.Put(key, v); err != nil {
		log.Debug("Not promoting cache entry", "key", key, "error", err)
	}
	return v, true
}

// Put stores value in both tiers. A value too large for memory is still
// stored on disk.
func (t *Tiered) Put(key string, value []byte) error {
	if err := t.l1.Put(key, value); err != nil {
		log.Debug("Skipping memory cache", "key", key, "error", err)
	}
	return t.l2.Put(key, value)
}

// Stats returns the memory and disk statistics.
func (t *Tiered) Stats() (memory, disk Stats) {
	return t.l1.Stats(), t.l2.Stats()
}

// Close closes the disk tier.
func (t *Tiered) Close() error {
	t.l1.Clear()
	return t.l2.Close()
}
