package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/multitenant/pkg/cache"
)

func TestLRUCache_Basic(t *testing.T) {
	t.Parallel()

	t.Run("put and get", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRUCache[string, int](3)
		c.Put("a", 1)
		c.Put("b", 2)

		val, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, val)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("update existing", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRUCache[string, int](3)
		c.Put("a", 1)
		oldVal, existed := c.Put("a", 2)

		assert.True(t, existed)
		assert.Equal(t, 1, oldVal)

		val, _ := c.Get("a")
		assert.Equal(t, 2, val)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("panics on non-positive capacity", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { cache.NewLRUCache[string, int](0) })
	})
}

func TestLRUCache_Eviction(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, int](2)
	evicted := make(map[string]int)
	c.SetEvictCallback(func(key string, value int) {
		evicted[key] = value
	})

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // a is now most recent
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	assert.Equal(t, 2, evicted["b"])

	_, ok = c.Get("a")
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, evicted["a"])
	assert.Equal(t, 3, evicted["c"])
}

func TestLRUCache_TTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	c := cache.NewLRUCache[string, string](10, cache.WithTTL(time.Minute), cache.WithClock(clock))
	c.Put("initech", "v1")

	advance(30 * time.Second)
	val, ok := c.Get("initech")
	assert.True(t, ok)
	assert.Equal(t, "v1", val)

	advance(30 * time.Second)
	_, ok = c.Get("initech")
	assert.False(t, ok, "entry should expire after ttl")
	assert.Equal(t, 0, c.Len())

	c.Put("acme", "v1")
	advance(2 * time.Minute)
	_, existed := c.Put("acme", "v2")
	assert.False(t, existed, "expired value is not reported as previous")

	val, ok = c.Get("acme")
	assert.True(t, ok)
	assert.Equal(t, "v2", val)
}

func TestLRUCache_RemoveFunc(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, string](10)
	c.Put("id:1", "initech")
	c.Put("key:initech", "1")
	c.Put("id:2", "acme")

	n := c.RemoveFunc(func(key, value string) bool {
		return value == "initech" || value == "1"
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("id:2")
	assert.True(t, ok)

	val, ok := c.Remove("id:2")
	assert.True(t, ok)
	assert.Equal(t, "acme", val)
}

func TestLRUCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[int, int](50)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			c.Put(v, v*2)
			c.Get(v)
			if v%2 == 0 {
				c.Remove(v)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}

func BenchmarkLRUCache_Mixed(b *testing.B) {
	c := cache.NewLRUCache[int, int](1000, cache.WithTTL(time.Minute))

	b.ResetTimer()
	for i := range b.N {
		if i%2 == 0 {
			c.Put(i%2000, i)
		} else {
			c.Get(i % 2000)
		}
	}
}
