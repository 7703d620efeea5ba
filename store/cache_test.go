package store

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s KVStore, prefix string) map[string]string {
	out := map[string]string{}
	s.Iterate([]byte(prefix), func(k, v []byte) bool {
		out[string(k)] = string(v)
		return true
	})
	return out
}

func TestCacheStore(t *testing.T) {
	t.Run("writes stay buffered until Write", func(t *testing.T) {
		parent := NewMemStore()
		parent.Set([]byte("a"), []byte("1"))

		cache := NewCacheStore(parent, nil)
		cache.Set([]byte("b"), []byte("2"))
		cache.Delete([]byte("a"))

		assert.False(t, cache.Has([]byte("a")))
		assert.Equal(t, []byte("2"), cache.Get([]byte("b")))
		assert.Equal(t, []byte("1"), parent.Get([]byte("a")), "parent must be untouched before Write")
		assert.False(t, parent.Has([]byte("b")))

		cache.Write()
		assert.False(t, parent.Has([]byte("a")))
		assert.Equal(t, []byte("2"), parent.Get([]byte("b")))
		assert.True(t, cache.ChangeSet().IsEmpty())
	})

	t.Run("Discard rolls back everything", func(t *testing.T) {
		parent := NewMemStore()
		cache := NewCacheStore(parent, nil)
		cache.Set([]byte("counter"), []byte("1"))
		cache.Discard()

		assert.Nil(t, cache.Get([]byte("counter")))
		cache.Write()
		assert.Equal(t, 0, parent.Len())
	})

	t.Run("nested caches commit into their parent cache only", func(t *testing.T) {
		parent := NewMemStore()
		outer := NewCacheStore(parent, nil)
		inner := outer.Cache()

		inner.Set([]byte("k"), []byte("v"))
		inner.Write()
		assert.Equal(t, []byte("v"), outer.Get([]byte("k")))
		assert.False(t, parent.Has([]byte("k")))

		failed := outer.Cache()
		failed.Set([]byte("k"), []byte("other"))
		failed.Discard()
		assert.Equal(t, []byte("v"), outer.Get([]byte("k")))

		outer.Write()
		assert.Equal(t, []byte("v"), parent.Get([]byte("k")))
	})

	t.Run("Iterate merges buffered writes in key order", func(t *testing.T) {
		parent := NewMemStore()
		parent.Set([]byte("p/1"), []byte("a"))
		parent.Set([]byte("p/2"), []byte("b"))
		parent.Set([]byte("q/1"), []byte("x"))

		cache := NewCacheStore(parent, nil)
		cache.Delete([]byte("p/1"))
		cache.Set([]byte("p/3"), []byte("c"))
		cache.Set([]byte("p/2"), []byte("B"))

		var keys []string
		cache.Iterate([]byte("p/"), func(k, _ []byte) bool {
			keys = append(keys, string(k))
			return true
		})
		assert.Equal(t, []string{"p/2", "p/3"}, keys)
		assert.Equal(t, map[string]string{"p/2": "B", "p/3": "c"}, collect(cache, "p/"))
	})

	t.Run("empty values are present", func(t *testing.T) {
		cache := NewCacheStore(NewMemStore(), nil)
		cache.Set([]byte("empty"), nil)
		assert.True(t, cache.Has([]byte("empty")))
		assert.NotNil(t, cache.Get([]byte("empty")))
	})

	t.Run("commit metrics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		cache := NewCacheStore(NewMemStore(), metrics)

		cache.Set([]byte("a"), []byte("1"))
		cache.Set([]byte("b"), []byte("2"))
		cache.Write()
		cache.Set([]byte("c"), []byte("3"))
		cache.Discard()

		assert.Equal(t, float64(2), testutil.ToFloat64(metrics.commitWrites))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.discards))
		count, err := testutil.GatherAndCount(reg, "poolfactory_store_commit_duration_seconds")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestPrefixStore(t *testing.T) {
	parent := NewMemStore()
	a := NewPrefixStore(parent, []byte("a/"))
	b := NewPrefixStore(parent, []byte("b/"))

	a.Set([]byte("config"), []byte("1"))
	b.Set([]byte("config"), []byte("2"))

	assert.Equal(t, []byte("1"), a.Get([]byte("config")))
	assert.Equal(t, []byte("2"), b.Get([]byte("config")))
	assert.Equal(t, map[string]string{"config": "1"}, collect(a, ""))

	a.Delete([]byte("config"))
	assert.False(t, a.Has([]byte("config")))
	assert.True(t, b.Has([]byte("config")))
}
