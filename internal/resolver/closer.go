package resolver

import (
	"errors"
	"sync"
)

// Closer collects resolvers owned by one scope and releases each exactly once
type Closer struct {
	mu        sync.Mutex
	resolvers []Resolver
	closed    bool
}

// Add registers r for release and returns it. Adding after Close closes r immediately.
func (c *Closer) Add(r Resolver) Resolver {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		_ = r.Close()
		return r
	}
	c.resolvers = append(c.resolvers, r)
	return r
}

// Close releases registered resolvers in reverse order of registration
func (c *Closer) Close() error {
	c.mu.Lock()
	resolvers := c.resolvers
	c.resolvers = nil
	c.closed = true
	c.mu.Unlock()

	var errs []error
	for i := len(resolvers) - 1; i >= 0; i-- {
		if err := resolvers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// owning is a composite that releases the resolvers it was built from
type owning struct {
	Resolver
	owned *Closer
}

func withOwnership(r Resolver, owned *Closer) Resolver {
	return &owning{Resolver: r, owned: owned}
}

func (o *owning) Close() error {
	return o.owned.Close()
}

// Children exposes the wrapped union's constituents
func (o *owning) Children() []Resolver {
	return Children(o.Resolver)
}
