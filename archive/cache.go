package archive

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/chunkcpd/resource"
)

// payloadCache is an LRU of decoded run payloads keyed by run id. Cached
// bytes are reserved on the controller; an entry the controller cannot hold
// is not cached.
type payloadCache struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[string]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	id      string
	payload []byte
}

func newPayloadCache(capacity int64, rc *resource.Controller) *payloadCache {
	return &payloadCache{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

func (c *payloadCache) get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[id]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(e)

		return e.Value.(*cacheEntry).payload, true
	}

	c.misses.Add(1)

	return nil, false
}

func (c *payloadCache) set(id string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[id]; ok {
		c.removeElement(e)
	}

	n := int64(len(payload))
	if n > c.capacity {
		return
	}

	// Evict locally first so released bytes can be reserved again.
	for c.size+n > c.capacity {
		e := c.evictList.Back()
		if e == nil {
			break
		}

		c.removeElement(e)
	}

	if err := c.rc.AcquireMemory(n); err != nil {
		return
	}

	c.items[id] = c.evictList.PushFront(&cacheEntry{id: id, payload: payload})
	c.size += n
}

func (c *payloadCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[id]; ok {
		c.removeElement(e)
	}
}

func (c *payloadCache) removeElement(e *list.Element) {
	c.evictList.Remove(e)

	ent := e.Value.(*cacheEntry)
	delete(c.items, ent.id)

	n := int64(len(ent.payload))
	c.size -= n
	c.rc.ReleaseMemory(n)
}

// CacheStats reports payload cache usage.
type CacheStats struct {
	Hits   int64
	Misses int64
	Bytes  int64
	Runs   int
}

func (c *payloadCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Bytes:  c.size,
		Runs:   len(c.items),
	}
}
