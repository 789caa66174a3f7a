package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGetDelete(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute})
	defer c.Close()

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := New(Config{DefaultTTL: 10 * time.Millisecond})
	defer c.Close()

	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheMaxItemsEvicts(t *testing.T) {
	evicted := make(map[string]any)
	c := New(Config{
		DefaultTTL: time.Minute,
		MaxItems:   2,
		OnEviction: func(key string, value any) { evicted[key] = value },
	})
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	assert.Len(t, evicted, 1)
	count := 0
	for _, key := range []string{"a", "b", "c"} {
		if _, ok := c.Get(key); ok {
			count++
		}
	}
	assert.Equal(t, 2, count)

	// Overwriting an existing key does not evict.
	c.Set("c", 4)
	assert.Len(t, evicted, 1)
}

func TestCacheCloseIsIdempotent(t *testing.T) {
	c := New(Config{})
	c.Close()
	c.Close()
}
