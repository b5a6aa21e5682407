package deps

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mabhi256/jverify/internal/plugin"
)

type cacheKey struct {
	host, id, version string
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.host, k.id, k.version)
}

type cacheEntry struct {
	graph *Graph
	err   error
}

// Cache memoizes graphs by host version, plugin id and plugin version.
// Concurrent requests for the same key share one traversal. A Cache must only be
// used with builders sharing the same options.
type Cache struct {
	mu     sync.RWMutex
	graphs map[cacheKey]cacheEntry
	group  singleflight.Group
}

func NewCache() *Cache {
	return &Cache{graphs: make(map[cacheKey]cacheEntry)}
}

// Build returns the cached graph of root or resolves it with b.
// Cancelled traversals are not remembered.
func (c *Cache) Build(ctx context.Context, b *Builder, root *plugin.Plugin) (*Graph, error) {
	key := cacheKey{host: b.Host().Version(), id: root.ID(), version: root.Version()}

	c.mu.RLock()
	entry, ok := c.graphs[key]
	c.mu.RUnlock()
	if ok {
		return entry.graph, entry.err
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		entry, ok := c.graphs[key]
		c.mu.RUnlock()
		if ok {
			return entry.graph, entry.err
		}

		g, err := b.Build(ctx, root)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return g, err
		}
		c.mu.Lock()
		c.graphs[key] = cacheEntry{graph: g, err: err}
		c.mu.Unlock()
		return g, err
	})
	g, _ := v.(*Graph)
	return g, err
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.graphs)
}

// Purge forgets every graph
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.graphs)
}
