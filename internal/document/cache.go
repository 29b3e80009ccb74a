package document

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Splitter dispatches Load calls to an HTTP loader for URL identifiers and a
// filesystem loader for everything else.
type Splitter struct {
	FS   Loader
	HTTP Loader
}

// Resolve implements Loader.
func (s *Splitter) Resolve(req Request) (ID, error) {
	return CanonicalID(req.BaseID, req.Location)
}

// Load implements Loader.
func (s *Splitter) Load(ctx context.Context, id ID) (*Document, error) {
	if id.IsURL() {
		return s.HTTP.Load(ctx, id)
	}
	return s.FS.Load(ctx, id)
}

// Cache wraps a Loader with per-identifier memoization. Concurrent requests
// for the same identifier share a single underlying fetch.
type Cache struct {
	loader  Loader
	enabled bool

	group singleflight.Group
	mu    sync.RWMutex
	docs  map[ID]*Document
}

// NewCache creates a cache over the given loader. When enabled is false the
// cache still deduplicates in-flight fetches but drops completed results.
func NewCache(loader Loader, enabled bool) *Cache {
	return &Cache{
		loader:  loader,
		enabled: enabled,
		docs:    make(map[ID]*Document),
	}
}

// Resolve implements Loader.
func (c *Cache) Resolve(req Request) (ID, error) {
	return c.loader.Resolve(req)
}

// Load implements Loader.
func (c *Cache) Load(ctx context.Context, id ID) (*Document, error) {
	if c.enabled {
		c.mu.RLock()
		doc, ok := c.docs[id]
		c.mu.RUnlock()
		if ok {
			return doc, nil
		}
	}

	result, err, _ := c.group.Do(string(id), func() (any, error) {
		// The flight is shared by every concurrent waiter; it must not die
		// with whichever caller happened to start it.
		doc, err := c.loader.Load(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		if c.enabled {
			c.mu.Lock()
			c.docs[id] = doc
			c.mu.Unlock()
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Document), nil
}
