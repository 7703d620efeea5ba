package store

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheStore buffers writes on top of a parent store. Nothing reaches the parent until
// Write is called; Discard throws the buffered writes away. Caches nest: a cache over a
// cache commits into its parent's buffer, not into the durable store.
//
// A CacheStore is not safe for concurrent use.
type CacheStore struct {
	parent  KVStore
	changes *ChangeSet
	metrics *Metrics
}

// NewCacheStore opens a cache over parent. metrics may be nil.
func NewCacheStore(parent KVStore, metrics *Metrics) *CacheStore {
	return &CacheStore{
		parent:  parent,
		changes: newChangeSet(),
		metrics: metrics,
	}
}

// Cache opens a nested cache. Nested caches do not report commit metrics.
func (c *CacheStore) Cache() *CacheStore {
	return NewCacheStore(c, nil)
}

func (c *CacheStore) Get(key []byte) []byte {
	if p, ok := c.changes.lookup(key); ok {
		if p.deleted {
			return nil
		}
		return clone(p.value)
	}
	return c.parent.Get(key)
}

func (c *CacheStore) Has(key []byte) bool {
	if p, ok := c.changes.lookup(key); ok {
		return !p.deleted
	}
	return c.parent.Has(key)
}

func (c *CacheStore) Set(key, value []byte) {
	c.changes.set(key, value)
}

func (c *CacheStore) Delete(key []byte) {
	c.changes.delete(key)
}

// Iterate merges the parent's view with the buffered writes.
func (c *CacheStore) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	merged := make(map[string][]byte)
	c.parent.Iterate(prefix, func(k, v []byte) bool {
		merged[string(k)] = v
		return true
	})
	p := string(prefix)
	for k, pe := range c.changes.entries {
		if !strings.HasPrefix(k, p) {
			continue
		}
		if pe.deleted {
			delete(merged, k)
		} else {
			merged[k] = clone(pe.value)
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			return
		}
	}
}

// ChangeSet exposes the pending writes.
func (c *CacheStore) ChangeSet() *ChangeSet {
	return c.changes
}

// Write flushes the buffered writes into the parent and resets the cache.
func (c *CacheStore) Write() {
	if c.metrics != nil {
		timer := prometheus.NewTimer(c.metrics.commitDuration)
		defer timer.ObserveDuration()
		c.metrics.commitWrites.Add(float64(c.changes.Len()))
	}
	c.changes.Apply(c.parent)
	c.changes = newChangeSet()
}

// Discard drops the buffered writes.
func (c *CacheStore) Discard() {
	if c.metrics != nil {
		c.metrics.discards.Inc()
	}
	c.changes = newChangeSet()
}
