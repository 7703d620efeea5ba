package store

import (
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory KVStore, safe for concurrent use.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(key []byte) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.data[string(key)])
}

func (m *MemStore) Has(key []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok
}

func (m *MemStore) Set(key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		value = []byte{}
	}
	m.data[string(key)] = clone(value)
}

func (m *MemStore) Delete(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
}

// Iterate works on a snapshot taken under the read lock, so fn may safely call back
// into the store's read methods.
func (m *MemStore) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	m.mu.RLock()
	p := string(prefix)
	keys := make([]string, 0, len(m.data))
	values := make(map[string][]byte)
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
			values[k] = clone(v)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), values[k]) {
			return
		}
	}
}

// Len returns the number of stored keys.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
