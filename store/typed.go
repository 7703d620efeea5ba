package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Item is a single JSON-encoded value stored under a fixed key.
type Item[T any] struct {
	key []byte
}

func NewItem[T any](key string) Item[T] {
	return Item[T]{key: []byte(key)}
}

// Load fails with ErrNotFound when nothing is stored.
func (i Item[T]) Load(s KVStore) (T, error) {
	v, ok, err := i.MayLoad(s)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrNotFound, i.key)
	}
	return v, nil
}

// MayLoad reports presence separately from the value, so a stored zero value is
// distinguishable from absence.
func (i Item[T]) MayLoad(s KVStore) (T, bool, error) {
	var v T
	raw := s.Get(i.key)
	if raw == nil {
		return v, false, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("store: decode %s: %w", i.key, err)
	}
	return v, true, nil
}

func (i Item[T]) Save(s KVStore, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", i.key, err)
	}
	s.Set(i.key, raw)
	return nil
}

func (i Item[T]) Exists(s KVStore) bool {
	return s.Has(i.key)
}

func (i Item[T]) Remove(s KVStore) {
	s.Delete(i.key)
}

// Map is a table of JSON-encoded values keyed by uint64. Keys are stored big-endian
// under a length-prefixed namespace so iteration runs in numeric order.
type Map[V any] struct {
	namespace []byte
}

func NewMap[V any](namespace string) Map[V] {
	if len(namespace) > math.MaxUint16 {
		panic(fmt.Sprintf("store: namespace too long: %d bytes", len(namespace)))
	}
	ns := make([]byte, 2, 2+len(namespace))
	binary.BigEndian.PutUint16(ns, uint16(len(namespace)))
	return Map[V]{namespace: append(ns, namespace...)}
}

func (m Map[V]) key(k uint64) []byte {
	out := make([]byte, len(m.namespace)+8)
	copy(out, m.namespace)
	binary.BigEndian.PutUint64(out[len(m.namespace):], k)
	return out
}

func (m Map[V]) Load(s KVStore, k uint64) (V, error) {
	v, ok, err := m.MayLoad(s, k)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %d", ErrNotFound, k)
	}
	return v, nil
}

func (m Map[V]) MayLoad(s KVStore, k uint64) (V, bool, error) {
	var v V
	raw := s.Get(m.key(k))
	if raw == nil {
		return v, false, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("store: decode key %d: %w", k, err)
	}
	return v, true, nil
}

func (m Map[V]) Has(s KVStore, k uint64) bool {
	return s.Has(m.key(k))
}

func (m Map[V]) Save(s KVStore, k uint64, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode key %d: %w", k, err)
	}
	s.Set(m.key(k), raw)
	return nil
}

func (m Map[V]) Remove(s KVStore, k uint64) {
	s.Delete(m.key(k))
}

// Range visits entries with key >= start in ascending order until fn returns false.
func (m Map[V]) Range(s KVStore, start uint64, fn func(k uint64, v V) bool) error {
	var decodeErr error
	s.Iterate(m.namespace, func(raw, value []byte) bool {
		if len(raw) != len(m.namespace)+8 {
			return true
		}
		k := binary.BigEndian.Uint64(raw[len(m.namespace):])
		if k < start {
			return true
		}
		var v V
		if err := json.Unmarshal(value, &v); err != nil {
			decodeErr = fmt.Errorf("store: decode key %d: %w", k, err)
			return false
		}
		return fn(k, v)
	})
	return decodeErr
}
