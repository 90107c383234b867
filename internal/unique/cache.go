// Package unique implements a thread-safe build-exactly-once cache. Keys are
// stable strings derived from argument identity (maps cannot key on slices,
// so callers render argument vectors into strings, one segment per argument).
//
// A key moves through three states: absent, building, complete. Find on an
// absent key claims it for the caller, who must finish with Add; Find on a
// building key blocks until the builder publishes. Observers therefore see
// either nothing or a fully-built payload, never an intermediate state.
// Payloads live for the process lifetime; nothing is ever evicted.
package unique

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Cache deduplicates concurrent builds of V per key.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
}

type entry[V any] struct {
	done     chan struct{}
	value    V
	complete bool
	waiters  int
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]*entry[V], 16)}
}

// Find looks up key. If the entry is complete it is returned immediately.
// If another goroutine is building it, Find blocks until the build publishes
// and returns the winner's payload. If the key is absent, Find claims it and
// returns found=false: the caller is now the builder and must call Add.
//
// A builder that never calls Add blocks its waiters forever; that is the
// accepted cost of keeping published payloads immortal.
func (c *Cache[V]) Find(key string) (value V, found bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.entries[key] = &entry[V]{done: make(chan struct{})}
		c.mu.Unlock()
		return value, false
	}
	if e.complete {
		c.mu.Unlock()
		return e.value, true
	}
	e.waiters++
	c.mu.Unlock()
	<-e.done
	return e.value, true
}

// Add publishes the payload for a key previously claimed via Find and wakes
// every waiter. Publishing an unclaimed or already-complete key is a cache
// invariant violation.
func (c *Cache[V]) Add(key string, value V) V {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("unique: Add without Find for key %q", key))
	}
	if e.complete {
		c.mu.Unlock()
		panic(fmt.Sprintf("unique: duplicate Add for key %q", key))
	}
	e.value = value
	e.complete = true
	c.mu.Unlock()
	close(e.done)
	return value
}

// GetOrBuild returns the payload for key, invoking build at most once across
// all concurrent callers.
func (c *Cache[V]) GetOrBuild(key string, build func() V) V {
	if v, ok := c.Find(key); ok {
		return v
	}
	return c.Add(key, build())
}

// Len reports the number of claimed or complete keys.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Key renders an argument-identity vector into a cache key. Arguments
// compare by identity, not structure: callers pass stable per-argument IDs.
func Key(parts ...uint64) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(p, 16))
	}
	return b.String()
}
