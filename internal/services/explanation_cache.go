package services

import (
	"strings"
	"sync"

	"lexiboost/internal/models"
)

type explanationCacheKey struct {
	word  string
	level string
}

// ExplanationCache is a process-wide bounded cache of explanation payloads
// shared by every preloader session and the synchronous fallback path.
// Entries are never invalidated except by eviction; an explanation is
// treated as stable for a given (word, level).
type ExplanationCache struct {
	mu       sync.Mutex
	entries  map[explanationCacheKey]*models.Explanation
	order    []explanationCacheKey
	capacity int
}

// NewExplanationCache creates a cache bounded to capacity entries.
// Eviction is by insertion order, oldest first.
func NewExplanationCache(capacity int) *ExplanationCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &ExplanationCache{
		entries:  make(map[explanationCacheKey]*models.Explanation),
		capacity: capacity,
	}
}

func cacheKeyFor(word, level string) explanationCacheKey {
	return explanationCacheKey{word: strings.ToLower(word), level: level}
}

// Get returns the cached explanation for (word, level), or nil.
func (c *ExplanationCache) Get(word, level string) *models.Explanation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[cacheKeyFor(word, level)]
}

// Put stores an explanation under (word, level). Re-inserting an existing
// key updates the value but keeps its original insertion position.
func (c *ExplanationCache) Put(word, level string, explanation *models.Explanation) {
	if explanation == nil {
		return
	}

	key := cacheKeyFor(word, level)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = explanation
		return
	}

	c.entries[key] = explanation
	c.order = append(c.order, key)

	if len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len returns the current number of cached entries.
func (c *ExplanationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
