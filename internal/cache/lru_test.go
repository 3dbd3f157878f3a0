package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCacheWithClock[string](4, time.Minute, clk.Now)

	c.Set("a", "1")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	clk.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now least recently used
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUOverwriteAndDelete(t *testing.T) {
	c := NewLRUCache[int](0, time.Hour)
	c.Set("a", 1)
	c.Set("a", 2)
	v, _ := c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Size())

	c.Delete("a")
	assert.Equal(t, 0, c.Size())

	c.Set("b", 1)
	c.Purge()
	assert.Equal(t, 0, c.Size())
}

func TestManagerCleans(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCacheWithClock[int](8, time.Second, clk.Now)
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 0, m.CleanAll())
	clk.Advance(2 * time.Second)
	assert.Equal(t, 2, m.CleanAll())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx, time.Millisecond)
	cancel()
	m.Wait()
}
