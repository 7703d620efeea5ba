// Package store holds the durable key-value state contracts run against, together
// with the transactional cache the host uses to make every call all-or-nothing.
package store

import "errors"

// ErrNotFound is returned by typed loads when no value is stored under the key.
var ErrNotFound = errors.New("store: not found")

// KVStore is a byte-oriented key-value store. Values handed in or out are copied;
// callers may reuse their buffers.
type KVStore interface {
	Get(key []byte) []byte
	Has(key []byte) bool
	Set(key, value []byte)
	Delete(key []byte)

	// Iterate visits every key starting with prefix in ascending byte order until fn
	// returns false. fn must not mutate the store.
	Iterate(prefix []byte, fn func(key, value []byte) bool)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
