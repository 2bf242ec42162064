/*
snapshot.go - Bounded pre-image cache between mutation phases

PURPOSE:
  Update and delete hooks need the pre-mutation row in their after phase:
  the ledger delta is computed against the old values, and after a delete
  the row no longer exists to be read. Under batched writes the after phase
  also cannot rely on its own reads seeing what the before phase saw, so
  the pre-image is captured explicitly and handed forward.

BOUNDED BY CONSTRUCTION:
  The cache keeps the most recent N entries and evicts the oldest beyond
  that, so it can never grow without bound. Entries are consumed (removed)
  when taken. It lives on the Engine, scoped to its lifetime - not a
  package-level mutable map.
*/
package engine

import "sync"

type snapshotCache struct {
	mu      sync.Mutex
	max     int
	order   []string
	entries map[string]Allocation
}

func newSnapshotCache(max int) *snapshotCache {
	if max <= 0 {
		max = 256
	}
	return &snapshotCache{
		max:     max,
		entries: make(map[string]Allocation, max),
	}
}

// put stashes a pre-image under the given key, pruning the oldest entries
// once the bound is reached.
func (c *snapshotCache) put(key string, a Allocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = a

	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// take removes and returns the pre-image for the key, if still cached.
func (c *snapshotCache) take(key string) (Allocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.entries[key]
	if !ok {
		return Allocation{}, false
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return a, true
}

func (c *snapshotCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
