package zpt

import (
	"container/list"
	"sync"
	"time"
)

// CacheConfig contains configuration options for the document cache
type CacheConfig struct {
	// MaxSize is the maximum number of documents to cache. 0 disables caching.
	MaxSize int
	// TTL is the time-to-live for cached documents. 0 means no expiration.
	TTL time.Duration
}

// DocumentCache is an LRU cache of prepared documents with optional
// expiry. It is safe for concurrent use.
type DocumentCache struct {
	mu     sync.Mutex
	cache  map[string]*cacheEntry
	lru    *list.List
	config CacheConfig
	now    func() time.Time
}

type cacheEntry struct {
	key      string
	document *PreparedDocument
	expiry   time.Time
	element  *list.Element
}

// NewDocumentCache creates a cache sized from the global configuration.
func NewDocumentCache() *DocumentCache {
	config := GetGlobalConfig()
	return NewDocumentCacheWithConfig(CacheConfig{
		MaxSize: config.CacheMaxSize,
		TTL:     config.CacheTTL,
	})
}

// NewDocumentCacheWithConfig creates a cache with the given configuration.
func NewDocumentCacheWithConfig(config CacheConfig) *DocumentCache {
	return &DocumentCache{
		cache:  make(map[string]*cacheEntry),
		lru:    list.New(),
		config: config,
		now:    time.Now,
	}
}

// Get returns the document cached under key, if present and not expired.
func (c *DocumentCache) Get(key string) (*PreparedDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[key]
	if !exists {
		return nil, false
	}
	if c.expired(entry) {
		c.removeEntry(entry)
		return nil, false
	}
	c.lru.MoveToFront(entry.element)
	return entry.document, true
}

// Set caches doc under key, evicting the least recently used entry when
// the cache is full.
func (c *DocumentCache) Set(key string, doc *PreparedDocument) {
	if c.config.MaxSize == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry := time.Time{}
	if c.config.TTL > 0 {
		expiry = c.now().Add(c.config.TTL)
	}

	if existing, exists := c.cache[key]; exists {
		existing.document = doc
		existing.expiry = expiry
		c.lru.MoveToFront(existing.element)
		return
	}

	if c.lru.Len() >= c.config.MaxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeEntry(oldest.Value.(*cacheEntry))
		}
	}

	entry := &cacheEntry{key: key, document: doc, expiry: expiry}
	entry.element = c.lru.PushFront(entry)
	c.cache[key] = entry
}

// Remove drops key from the cache.
func (c *DocumentCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[key]
	if !exists {
		return false
	}
	c.removeEntry(entry)
	return true
}

// Clear removes every document from the cache.
func (c *DocumentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cacheEntry)
	c.lru = list.New()
}

// Size returns the current number of cached documents
func (c *DocumentCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Keys returns the cached keys, most recently used first.
func (c *DocumentCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.lru.Len())
	for e := c.lru.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*cacheEntry).key)
	}
	return keys
}

func (c *DocumentCache) expired(entry *cacheEntry) bool {
	return c.config.TTL > 0 && c.now().After(entry.expiry)
}

// removeEntry must be called with mu held.
func (c *DocumentCache) removeEntry(entry *cacheEntry) {
	delete(c.cache, entry.key)
	c.lru.Remove(entry.element)
}
