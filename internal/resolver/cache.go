package resolver

import (
	"fmt"
	"iter"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes Find results of a delegate, including confirmed absences,
// in a bounded LRU. Concurrent misses on one name may decode it more than once.
type Cache struct {
	delegate Resolver
	entries  *lru.Cache[string, Result]
}

// NewCache wraps delegate; capacity <= 0 selects DefaultCacheSize
func NewCache(delegate Resolver, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	entries, err := lru.New[string, Result](capacity)
	if err != nil {
		panic(fmt.Sprintf("resolver cache: %v", err))
	}
	return &Cache{delegate: delegate, entries: entries}
}

func (c *Cache) Find(name string) Result {
	if cached, ok := c.entries.Get(name); ok {
		return cached
	}
	result := c.delegate.Find(name)
	c.entries.Add(name, result)
	return result
}

func (c *Cache) Contains(name string) bool {
	if cached, ok := c.entries.Peek(name); ok {
		return !cached.Missing()
	}
	return c.delegate.Contains(name)
}

func (c *Cache) Names() iter.Seq[string] {
	return c.delegate.Names()
}

func (c *Cache) Location(name string) (string, bool) {
	return c.delegate.Location(name)
}

func (c *Cache) IsEmpty() bool {
	return c.delegate.IsEmpty()
}

// Len is the number of cached results
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Delegate returns the wrapped resolver
func (c *Cache) Delegate() Resolver {
	return c.delegate
}

// Close closes the delegate
func (c *Cache) Close() error {
	c.entries.Purge()
	return c.delegate.Close()
}

func (c *Cache) String() string {
	return "cached " + c.delegate.String()
}
