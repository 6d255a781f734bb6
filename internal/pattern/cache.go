package pattern

import (
	"container/list"
	"crypto/sha256"
	"sync"
)

// Cache memoizes keyword detection per distinct text prefix. Detection is a
// pure function of its input, so the cache is advisory: a nil *Cache is
// valid everywhere and simply recomputes. Bounded LRU, safe for concurrent
// use across documents.
type Cache struct {
	mu  sync.Mutex
	cap int
	ll  *list.List
	m   map[[32]byte]*list.Element
}

type cacheEntry struct {
	key   [32]byte
	value *Compiled // nil is a cached "no convention found"
}

// NewCache creates a cache holding up to capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 16
	}
	return &Cache{
		cap: capacity,
		ll:  list.New(),
		m:   make(map[[32]byte]*list.Element),
	}
}

// DetectKeyword is the memoized variant of the package-level DetectKeyword.
func (c *Cache) DetectKeyword(text string, prefixLimit int) *Compiled {
	if c == nil {
		return DetectKeyword(text, prefixLimit)
	}
	if prefixLimit > 0 && len(text) > prefixLimit {
		text = text[:prefixLimit]
	}
	key := sha256.Sum256([]byte(text))

	c.mu.Lock()
	if el, ok := c.m[key]; ok {
		c.ll.MoveToFront(el)
		v := el.Value.(*cacheEntry).value
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	// Compute outside the lock; losing a race just recomputes a pure function.
	v := DetectKeyword(text, 0)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.m[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*cacheEntry).value
	}
	c.m[key] = c.ll.PushFront(&cacheEntry{key: key, value: v})
	for c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.m, oldest.Value.(*cacheEntry).key)
	}
	return v
}

// Len reports the number of cached prefixes.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
