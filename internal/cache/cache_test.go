package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_GetSet(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get("values:gdp:US")
	assert.False(t, ok)

	c.Set("values:gdp:US", 42.0)
	v, ok := c.Get("values:gdp:US")
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("values:gdp:US", 1.0)

	clock = clock.Add(59 * time.Second)
	_, ok := c.Get("values:gdp:US")
	assert.True(t, ok)

	clock = clock.Add(2 * time.Second)
	_, ok = c.Get("values:gdp:US")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New(time.Minute)
	c.Set("values:gdp_usd:US", 1.0)
	c.Set("values:gdp_usd:DE", 2.0)
	c.Set("values:inflation_yoy:US", 3.0)
	c.Set("status:runs", 4.0)

	n := c.InvalidatePrefix("values:gdp_usd")
	assert.Equal(t, 2, n)

	_, ok := c.Get("values:gdp_usd:US")
	assert.False(t, ok)
	_, ok = c.Get("values:inflation_yoy:US")
	assert.True(t, ok)
	_, ok = c.Get("status:runs")
	assert.True(t, ok)
}
