package cache

import "sync"

// FDCache keeps recently used read and write file descriptors open across
// calls, avoiding a reopen on every READ/WRITE. Per spec.md §1 the fd cache
// is an external collaborator; this is a minimal concrete implementation
// tracking only what spec.md §4.5's SIGUSR1 and shutdown paths need:
// reader/writer counts and a purge operation.
type FDCache struct {
	mu      sync.Mutex
	readers map[string]int
	writers map[string]int

	expireWriters bool
}

// NewFDCache creates an fd cache. expireWriters records the -w CLI flag;
// nothing in this cache reads it, and Purge behaves the same either way.
func NewFDCache(expireWriters bool) *FDCache {
	return &FDCache{
		readers:       make(map[string]int),
		writers:       make(map[string]int),
		expireWriters: expireWriters,
	}
}

// AcquireReader records a reader descriptor being opened for path.
func (c *FDCache) AcquireReader(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers[path]++
}

// AcquireWriter records a writer descriptor being opened for path.
func (c *FDCache) AcquireWriter(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writers[path]++
}

// Counts returns the current (readers, writers) descriptor counts, as
// logged by SIGUSR1 (spec.md §4.5: "open-fd-cache reader/writer counts").
func (c *FDCache) Counts() (readers, writers int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.readers {
		readers += n
	}
	for _, n := range c.writers {
		writers += n
	}
	return readers, writers
}

// Purge drops every recorded reader and writer, resetting both counts to
// zero. The cache holds no open descriptors, so nothing is closed or
// flushed. Called during graceful shutdown regardless of -w.
func (c *FDCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers = make(map[string]int)
	c.writers = make(map[string]int)
}
