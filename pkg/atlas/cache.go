package atlas

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// cacheEntry holds one cached model response with its expiry.
type cacheEntry struct {
	content   string
	expiresAt time.Time
}

// Cache is a TTL cache for model responses keyed by ability and rendered
// prompt. Identical prompts inside the TTL window never reach the provider.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given TTL. A zero or negative TTL
// disables caching entirely.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key derives the cache key for an ability and its rendered prompt.
func Key(ability, prompt string) string {
	sum := sha256.Sum256([]byte(ability + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached content for a key if present and unexpired.
func (c *Cache) Get(key string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false
	}
	return entry.content, true
}

// Put stores content under a key with the cache TTL.
func (c *Cache) Put(key, content string) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{
		content:   content,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Seed pre-populates the cache for an ability and prompt, for tests and
// warm starts.
func (c *Cache) Seed(ability, prompt, content string) {
	c.Put(Key(ability, prompt), content)
}

// Flush discards every cached entry.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
