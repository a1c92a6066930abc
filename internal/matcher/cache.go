package matcher

import (
	"sync"

	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

// leafCache memoizes per-index derived data such as normalized leaf names or
// leaf vectors. An Index is immutable, so entries never go stale.
type leafCache[T any] struct {
	entries map[*taxonomy.Index][]T
	mu      sync.RWMutex
}

func newLeafCache[T any]() *leafCache[T] {
	return &leafCache[T]{entries: make(map[*taxonomy.Index][]T)}
}

// get returns the cached slice for idx, building it on first use.
func (c *leafCache[T]) get(idx *taxonomy.Index, build func() []T) []T {
	c.mu.RLock()
	entry, ok := c.entries[idx]
	c.mu.RUnlock()
	if ok {
		return entry
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[idx]; ok {
		return entry
	}
	entry = build()
	c.entries[idx] = entry
	return entry
}
