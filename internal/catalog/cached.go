package catalog

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/matthewbaird/adops/internal/types"
)

// CacheObserver is told whether each lookup was served from the cache.
type CacheObserver func(kind string, hit bool)

// CachedCatalog decorates a Catalog with a TTL cache. Errors are not
// cached. Returned slices are copies; callers may sort them in place.
type CachedCatalog struct {
	next    Catalog
	cache   *cache.Cache
	observe CacheObserver
}

// NewCachedCatalog caches lookups of next for ttl.
func NewCachedCatalog(next Catalog, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache.New(ttl, 2*ttl)}
}

// SetObserver installs a hit/miss observer.
func (c *CachedCatalog) SetObserver(o CacheObserver) { c.observe = o }

// Flush drops every cached lookup, e.g. after reseeding.
func (c *CachedCatalog) Flush() { c.cache.Flush() }

func (c *CachedCatalog) FetchPlatforms(ctx context.Context) ([]types.Entity, error) {
	return cachedEntities(c, "platforms", "", func() ([]types.Entity, error) {
		return c.next.FetchPlatforms(ctx)
	})
}

func (c *CachedCatalog) FetchBrands(ctx context.Context) ([]types.Entity, error) {
	return cachedEntities(c, "brands", "", func() ([]types.Entity, error) {
		return c.next.FetchBrands(ctx)
	})
}

func (c *CachedCatalog) FetchAccounts(ctx context.Context, brandID string) ([]types.Account, error) {
	out, err := lookup(c, "accounts", brandID, func() ([]types.Account, error) {
		return c.next.FetchAccounts(ctx, brandID)
	})
	if err != nil {
		return nil, err
	}
	return append([]types.Account(nil), out...), nil
}

func (c *CachedCatalog) FetchCampaigns(ctx context.Context, accountID string) ([]types.Entity, error) {
	return cachedEntities(c, "campaigns", accountID, func() ([]types.Entity, error) {
		return c.next.FetchCampaigns(ctx, accountID)
	})
}

func (c *CachedCatalog) FetchAdGroups(ctx context.Context, campaignID string) ([]types.Entity, error) {
	return cachedEntities(c, "ad_groups", campaignID, func() ([]types.Entity, error) {
		return c.next.FetchAdGroups(ctx, campaignID)
	})
}

func (c *CachedCatalog) FetchCreatives(ctx context.Context, adGroupID string) ([]types.Creative, error) {
	out, err := lookup(c, "creatives", adGroupID, func() ([]types.Creative, error) {
		return c.next.FetchCreatives(ctx, adGroupID)
	})
	if err != nil {
		return nil, err
	}
	cp := make([]types.Creative, len(out))
	for i, cr := range out {
		cp[i] = cloneCreative(cr)
	}
	return cp, nil
}

func cachedEntities(c *CachedCatalog, kind, scope string, load func() ([]types.Entity, error)) ([]types.Entity, error) {
	out, err := lookup(c, kind, scope, load)
	if err != nil {
		return nil, err
	}
	return cloneEntities(out), nil
}

func lookup[T any](c *CachedCatalog, kind, scope string, load func() ([]T, error)) ([]T, error) {
	key := kind + ":" + scope
	if v, ok := c.cache.Get(key); ok {
		c.record(kind, true)
		return v.([]T), nil
	}
	c.record(kind, false)

	out, err := load()
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, out, cache.DefaultExpiration)
	return out, nil
}

func (c *CachedCatalog) record(kind string, hit bool) {
	if c.observe != nil {
		c.observe(kind, hit)
	}
}
