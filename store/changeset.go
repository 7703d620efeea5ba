package store

import "sort"

// Change is a single pending write. Deleted changes carry no value.
type Change struct {
	Key     []byte `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type pending struct {
	value   []byte
	deleted bool
}

// ChangeSet is the diff between a cache and its parent: every key written or deleted
// since the cache was opened, last write wins.
type ChangeSet struct {
	entries map[string]pending
}

func newChangeSet() *ChangeSet {
	return &ChangeSet{entries: make(map[string]pending)}
}

func (c *ChangeSet) set(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	c.entries[string(key)] = pending{value: clone(value)}
}

func (c *ChangeSet) delete(key []byte) {
	c.entries[string(key)] = pending{deleted: true}
}

func (c *ChangeSet) lookup(key []byte) (pending, bool) {
	p, ok := c.entries[string(key)]
	return p, ok
}

// Len returns the number of touched keys.
func (c *ChangeSet) Len() int {
	return len(c.entries)
}

// IsEmpty returns true if the change set contains no changes.
func (c *ChangeSet) IsEmpty() bool {
	return len(c.entries) == 0
}

// Changes returns the pending writes sorted by key.
func (c *ChangeSet) Changes() []Change {
	out := make([]Change, 0, len(c.entries))
	for k, p := range c.entries {
		out = append(out, Change{Key: []byte(k), Value: clone(p.value), Deleted: p.deleted})
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].Key) < string(out[j].Key) })
	return out
}

// Apply patches target with every change, in key order.
func (c *ChangeSet) Apply(target KVStore) {
	for _, ch := range c.Changes() {
		if ch.Deleted {
			target.Delete(ch.Key)
			continue
		}
		target.Set(ch.Key, ch.Value)
	}
}
