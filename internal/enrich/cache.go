package enrich

import "sync"

// ResultCache memoizes search results per (provider, keywords) pair. Capped
// size with insertion-order eviction; entries never expire within a run.
type ResultCache struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string]cachedResult
}

type cachedResult struct {
	images []Image
	err    string
}

func NewResultCache(max int) *ResultCache {
	if max <= 0 {
		max = 200
	}
	return &ResultCache{max: max, items: map[string]cachedResult{}}
}

func (c *ResultCache) get(key string) (cachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[key]
	return r, ok
}

func (c *ResultCache) put(key string, r cachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; ok {
		return
	}
	c.items[key] = r
	c.order = append(c.order, key)
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

// Len reports the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ByteCache holds prefetched thumbnail bytes, capped by entry count with
// insertion-order eviction. It bounds memory for raw image data
// independently of the URL-result cache.
type ByteCache struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string][]byte
}

func NewByteCache(max int) *ByteCache {
	if max <= 0 {
		max = 256
	}
	return &ByteCache{max: max, items: map[string][]byte{}}
}

// Get returns the cached bytes for url, or nil.
func (c *ByteCache) Get(url string) []byte {
	if c == nil || url == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[url]
}

// Put stores data under url unless already present, evicting the oldest
// entry past the cap.
func (c *ByteCache) Put(url string, data []byte) {
	if c == nil || url == "" || len(data) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[url]; ok {
		return
	}
	c.items[url] = data
	c.order = append(c.order, url)
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

// Len reports the number of cached entries.
func (c *ByteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
