package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGetDelete(t *testing.T) {
	c := New(time.Minute, time.Minute)

	c.Set("a", 1)
	v, ok := GetAs[int](c, "a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = GetAs[string](c, "a")
	assert.False(t, ok, "wrong type must miss")

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestExpiration(t *testing.T) {
	c := New(time.Minute, 0)

	c.SetWithExpiration("short", "x", 10*time.Millisecond)
	c.SetWithExpiration("forever", "y", 0)

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("forever")
	assert.True(t, ok)
}

func TestOnEvicted(t *testing.T) {
	c := New(time.Minute, 0)
	evicted := make(map[string]any)
	c.SetOnEvicted(func(k string, v any) { evicted[k] = v })

	c.Set("k", "v")
	c.Delete("k")

	assert.Equal(t, map[string]any{"k": "v"}, evicted)
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, time.Minute, c.DefaultTTL())
}
