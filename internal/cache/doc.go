// Package cache stores synthesized audio so repeated utterances skip the
// engine. DiskCache keeps zstd-compressed entries on disk; MemoryCache and
// Tiered put a size-bounded LRU in front of it.
package cache
