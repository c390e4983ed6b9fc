package registry

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/compresr/journey-gateway/internal/store"
)

// Cached is a read-through cache over another Registry. Name lookups are
// served from the store; writes invalidate the affected names.
type Cached struct {
	next    Registry
	cache   store.Store
	metrics CacheMetrics
}

// CacheMetrics receives hit/miss counts for name lookups.
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

var _ Registry = (*Cached)(nil)

// NewCached wraps next with cache.
func NewCached(next Registry, cache store.Store) *Cached {
	return &Cached{next: next, cache: cache}
}

// SetMetrics attaches a hit/miss recorder. Call before use.
func (c *Cached) SetMetrics(m CacheMetrics) { c.metrics = m }

func (c *Cached) record(hit bool) {
	switch {
	case c.metrics == nil:
	case hit:
		c.metrics.RecordCacheHit()
	default:
		c.metrics.RecordCacheMiss()
	}
}

// FetchByName serves from cache when fresh.
func (c *Cached) FetchByName(ctx context.Context, name string) ([]byte, error) {
	doc, ok := c.cache.GetDocument(name)
	c.record(ok)
	if ok {
		return doc, nil
	}
	doc, err := c.next.FetchByName(ctx, name)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetDocument(name, doc)
	return doc, nil
}

// ResolveIdentifier serves from cache when fresh.
func (c *Cached) ResolveIdentifier(ctx context.Context, name string) (string, error) {
	id, ok := c.cache.GetIdentifier(name)
	c.record(ok)
	if ok {
		return id, nil
	}
	id, err := c.next.ResolveIdentifier(ctx, name)
	if err != nil {
		return "", err
	}
	_ = c.cache.SetIdentifier(name, id)
	return id, nil
}

// FetchByID is not cached.
func (c *Cached) FetchByID(ctx context.Context, id string) ([]byte, error) {
	return c.next.FetchByID(ctx, id)
}

// Save writes through and invalidates both the old and new names.
func (c *Cached) Save(ctx context.Context, data []byte, existingID string) (string, error) {
	if existingID != "" {
		c.invalidateByID(ctx, existingID)
	}
	id, err := c.next.Save(ctx, data, existingID)
	if err != nil {
		return "", err
	}
	if name, err := DocumentName(data); err == nil {
		_ = c.cache.Invalidate(name)
	}
	return id, nil
}

// Delete writes through and invalidates the deleted name.
func (c *Cached) Delete(ctx context.Context, id string) error {
	c.invalidateByID(ctx, id)
	return c.next.Delete(ctx, id)
}

// List is not cached.
func (c *Cached) List(ctx context.Context) ([]Entry, error) {
	return c.next.List(ctx)
}

// Close closes the cache and the wrapped registry.
func (c *Cached) Close() error {
	_ = c.cache.Close()
	return c.next.Close()
}

func (c *Cached) invalidateByID(ctx context.Context, id string) {
	doc, err := c.next.FetchByID(ctx, id)
	if err != nil {
		// Unknown ids have nothing cached; anything else may leave a stale
		// entry until its TTL expires.
		log.Debug().Err(err).Str("id", id).Msg("registry cache: could not resolve id for invalidation")
		return
	}
	if name := gjson.GetBytes(doc, "configName").String(); name != "" {
		_ = c.cache.Invalidate(name)
	}
}
