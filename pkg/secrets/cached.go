package secrets

import (
	"context"
	"time"
)

// CachedProvider wraps a Provider with an in-memory TTL cache so repeated
// lookups of the same secret do not hit the backing store.
type CachedProvider struct {
	inner Provider
	cache *Cache[map[string]string]
}

// NewCachedProvider wraps inner with a cache holding entries for ttl.
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: NewCache[map[string]string](ttl),
	}
}

// GetSecret implements Provider.
func (p *CachedProvider) GetSecret(ctx context.Context, key string) (map[string]string, error) {
	if values, ok := p.cache.Get(key); ok {
		return values, nil
	}
	values, err := p.inner.GetSecret(ctx, key)
	if err != nil {
		return nil, err
	}
	p.cache.Put(key, values)
	return values, nil
}

// Bust drops a cached secret, forcing a refetch on next lookup (rotation).
func (p *CachedProvider) Bust(key string) {
	p.cache.Bust(key)
}
