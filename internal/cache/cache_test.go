package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unfsd-go/unfsd/internal/cache"
)

func TestFileHandleCache_LookupAndStats(t *testing.T) {
	c := cache.NewFileHandleCache(2)

	_, ok := c.Lookup("missing")
	assert.False(t, ok)

	c.Put("h1", "/srv/a")
	path, ok := c.Lookup("h1")
	assert.True(t, ok)
	assert.Equal(t, "/srv/a", path)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Max)
	assert.Equal(t, 2, stats.Use)
	assert.Equal(t, 1, stats.Hit)
}

func TestFileHandleCache_EvictsAtCapacity(t *testing.T) {
	c := cache.NewFileHandleCache(1)
	c.Put("h1", "/a")
	c.Put("h2", "/b")

	_, aStillThere := c.Lookup("h1")
	_, bStillThere := c.Lookup("h2")
	assert.False(t, aStillThere && bStillThere, "capacity-1 cache cannot hold both entries")
}

func TestFDCache_CountsAndPurge(t *testing.T) {
	c := cache.NewFDCache(false)
	c.AcquireReader("/a")
	c.AcquireReader("/a")
	c.AcquireWriter("/b")

	readers, writers := c.Counts()
	assert.Equal(t, 2, readers)
	assert.Equal(t, 1, writers)

	c.Purge()
	readers, writers = c.Counts()
	assert.Equal(t, 0, readers)
	assert.Equal(t, 0, writers)
}
