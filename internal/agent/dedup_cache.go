package agent

import (
	"container/list"
	"sync"

	"github.com/fieldvision/fieldvision/internal/constants"
)

// DedupCache remembers the most recently processed command ids so a replayed
// signal does not re-run the camera pipeline. Capacity bounded, the oldest
// entry is evicted first.
type DedupCache struct {
	capacity int

	mu    sync.Mutex
	order *list.List // front = oldest
	index map[string]*list.Element
}

// NewDedupCache creates a cache holding at most capacity ids.
func NewDedupCache(capacity int) *DedupCache {
	if capacity <= 0 {
		capacity = constants.DefaultDedupCapacity
	}
	return &DedupCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Contains reports whether the id was processed recently.
func (c *DedupCache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.index[id]
	return ok
}

// Add records a processed id, evicting the oldest entries beyond capacity.
// Re-adding an id refreshes its position.
func (c *DedupCache) Add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[id]; ok {
		c.order.MoveToBack(elem)
		return
	}

	c.index[id] = c.order.PushBack(id)
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(string))
	}
}

// Len returns the number of ids currently held.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Snapshot returns the held ids from oldest to newest, for persistence.
func (c *DedupCache) Snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		ids = append(ids, elem.Value.(string))
	}
	return ids
}

// Restore reloads ids persisted by Snapshot, oldest first.
func (c *DedupCache) Restore(ids []string) {
	for _, id := range ids {
		c.Add(id)
	}
}
