package services

import (
	"fmt"
	"sync"
	"testing"

	"lexiboost/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplanationCache_PutGet(t *testing.T) {
	cache := NewExplanationCache(10)

	exp := &models.Explanation{Word: "apple", DefinitionEN: "a fruit"}
	cache.Put("apple", "k12", exp)

	got := cache.Get("apple", "k12")
	require.NotNil(t, got)
	assert.Equal(t, "a fruit", got.DefinitionEN)
}

func TestExplanationCache_KeyIsCaseInsensitiveOnWord(t *testing.T) {
	cache := NewExplanationCache(10)

	cache.Put("Apple", "k12", &models.Explanation{Word: "Apple"})

	assert.NotNil(t, cache.Get("apple", "k12"))
	assert.NotNil(t, cache.Get("APPLE", "k12"))
	assert.Nil(t, cache.Get("apple", "k6"), "level is part of the key")
}

func TestExplanationCache_EvictsOldestInsertion(t *testing.T) {
	cache := NewExplanationCache(3)

	for i := 0; i < 4; i++ {
		word := fmt.Sprintf("word%d", i)
		cache.Put(word, "k12", &models.Explanation{Word: word})
	}

	assert.Equal(t, 3, cache.Len())
	assert.Nil(t, cache.Get("word0", "k12"), "oldest inserted entry evicted first")
	assert.NotNil(t, cache.Get("word1", "k12"))
	assert.NotNil(t, cache.Get("word3", "k12"))
}

func TestExplanationCache_ReinsertKeepsPosition(t *testing.T) {
	cache := NewExplanationCache(2)

	cache.Put("a", "k12", &models.Explanation{DefinitionEN: "first"})
	cache.Put("b", "k12", &models.Explanation{})

	// Updating "a" must not refresh its eviction position.
	cache.Put("a", "k12", &models.Explanation{DefinitionEN: "second"})
	cache.Put("c", "k12", &models.Explanation{})

	assert.Nil(t, cache.Get("a", "k12"))
	assert.NotNil(t, cache.Get("b", "k12"))
	assert.NotNil(t, cache.Get("c", "k12"))
}

func TestExplanationCache_NilValueIgnored(t *testing.T) {
	cache := NewExplanationCache(2)
	cache.Put("a", "k12", nil)
	assert.Equal(t, 0, cache.Len())
}

func TestExplanationCache_ConcurrentAccess(t *testing.T) {
	cache := NewExplanationCache(100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				word := fmt.Sprintf("w%d-%d", n, j%50)
				cache.Put(word, "k12", &models.Explanation{Word: word})
				cache.Get(word, "k12")
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 100)
}
