package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry is one cached query response payload.
type Entry struct {
	Value    any
	StoredAt time.Time
}

type cacheItem struct {
	key      string
	value    any
	storedAt time.Time
}

// ResultCache is a TTL + LRU cache for query responses. Expiry wins over
// recency: a recently touched entry past its TTL is still a miss. A single
// mutex guards both structures; entries are small JSON-ready payloads, so
// contention stays low at the request rates this serves.
type ResultCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration

	items map[string]*list.Element
	order *list.List // front = most recently used

	hits   int64
	misses int64

	logger *zap.Logger
}

// NewResultCache creates a result cache. maxEntries and ttl fall back to
// safe defaults when non-positive.
func NewResultCache(maxEntries int, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		logger:     logger.Named("result_cache"),
	}
}

// Key derives the cache key for a query submission. The query text is
// normalized (lowercased, whitespace collapsed) so trivially reworded
// submissions of the same question share an entry; page and page size are
// part of the key because they change the result payload.
func Key(connectionID uuid.UUID, query string, page, pageSize int) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d", connectionID, normalized, page, pageSize)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value and its age. Expired entries count as
// misses and are removed on sight.
func (c *ResultCache) Get(key string) (any, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checkInvariant() {
		c.misses++
		return nil, 0, false
	}

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, 0, false
	}

	item := elem.Value.(*cacheItem)
	age := time.Since(item.storedAt)
	if age > c.ttl {
		c.removeElement(elem)
		c.misses++
		return nil, 0, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return item.value, age, true
}

// Put stores a value, evicting expired entries first and then the least
// recently used entry if the cache is still full.
func (c *ResultCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checkInvariant() {
		return
	}

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*cacheItem)
		item.value = value
		item.storedAt = time.Now()
		c.order.MoveToFront(elem)
		return
	}

	c.evictExpired()
	for len(c.items) >= c.maxEntries {
		c.removeElement(c.order.Back())
	}

	elem := c.order.PushFront(&cacheItem{key: key, value: value, storedAt: time.Now()})
	c.items[key] = elem
}

// Reset drops every entry. Hit and miss counters survive so the totals
// stay meaningful across reconnects.
func (c *ResultCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
}

// Stats returns cumulative hit and miss counts.
func (c *ResultCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the current entry count.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// checkInvariant verifies the map and the recency list agree on size. On
// disagreement the cache state is unreliable, so it is reset and the
// current operation is treated as a miss. Callers must hold the mutex.
func (c *ResultCache) checkInvariant() bool {
	if len(c.items) == c.order.Len() {
		return true
	}
	c.logger.Error("cache invariant violated, resetting",
		zap.Int("map_size", len(c.items)),
		zap.Int("list_size", c.order.Len()))
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	return false
}

func (c *ResultCache) evictExpired() {
	now := time.Now()
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.Sub(elem.Value.(*cacheItem).storedAt) > c.ttl {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *ResultCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*cacheItem).key)
}
