package store

// PrefixStore is a namespaced view over a parent store. Keys outside the prefix are
// unreachable through it.
type PrefixStore struct {
	parent KVStore
	prefix []byte
}

func NewPrefixStore(parent KVStore, prefix []byte) *PrefixStore {
	return &PrefixStore{parent: parent, prefix: clone(prefix)}
}

func (p *PrefixStore) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	out = append(out, p.prefix...)
	return append(out, k...)
}

func (p *PrefixStore) Get(key []byte) []byte { return p.parent.Get(p.key(key)) }
func (p *PrefixStore) Has(key []byte) bool   { return p.parent.Has(p.key(key)) }
func (p *PrefixStore) Set(key, value []byte) { p.parent.Set(p.key(key), value) }
func (p *PrefixStore) Delete(key []byte)     { p.parent.Delete(p.key(key)) }

func (p *PrefixStore) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	n := len(p.prefix)
	p.parent.Iterate(p.key(prefix), func(k, v []byte) bool {
		return fn(k[n:], v)
	})
}
