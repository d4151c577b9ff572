package binder

import "sync"

// SiteCache shares InvokeCallSite descriptors between call sites with the
// same shape. Descriptors are immutable, so lookups only take the read
// lock; the write lock guards insert-if-absent.
type SiteCache struct {
	mu    sync.RWMutex
	sites map[string]*InvokeCallSite
	limit int
}

// NewSiteCache returns a cache holding at most limit descriptors.
// A limit of 0 means no limit.
func NewSiteCache(limit int) *SiteCache {
	return &SiteCache{
		sites: make(map[string]*InvokeCallSite),
		limit: limit,
	}
}

// Get returns the cached descriptor for the shape, constructing and
// publishing it on a miss. When the cache is full the new descriptor is
// returned without being stored.
func (c *SiteCache) Get(flags CallFlags, context Scope, args []ArgumentInfo) (*InvokeCallSite, error) {
	key := shapeKey(flags, context, args)

	c.mu.RLock()
	site, ok := c.sites[key]
	c.mu.RUnlock()
	if ok {
		return site, nil
	}

	site, err := NewInvokeCallSite(flags, context, args)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sites[key]; ok {
		return existing, nil
	}
	if c.limit > 0 && len(c.sites) >= c.limit {
		return site, nil
	}
	c.sites[key] = site
	return site, nil
}

// Len returns the number of cached descriptors.
func (c *SiteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sites)
}

// Clear removes all cached descriptors.
func (c *SiteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sites = make(map[string]*InvokeCallSite)
}
