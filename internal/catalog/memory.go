package catalog

import (
	"context"
	"sync"

	"github.com/matthewbaird/adops/internal/types"
)

// MemoryCatalog implements Catalog using in-memory slices.
// Intended for demos and testing; no database required.
type MemoryCatalog struct {
	mu sync.RWMutex
	f  Fixture
}

// NewMemoryCatalog creates an empty MemoryCatalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{}
}

// Seed replaces the catalog contents with f.
func (c *MemoryCatalog) Seed(_ context.Context, f *Fixture) error {
	if err := f.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.f = *f
	return nil
}

func (c *MemoryCatalog) FetchPlatforms(context.Context) ([]types.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneEntities(c.f.Platforms), nil
}

func (c *MemoryCatalog) FetchBrands(context.Context) ([]types.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneEntities(c.f.Brands), nil
}

func (c *MemoryCatalog) FetchAccounts(_ context.Context, brandID string) ([]types.Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Account
	for _, a := range c.f.Accounts {
		if a.BrandID == brandID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *MemoryCatalog) FetchCampaigns(_ context.Context, accountID string) ([]types.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Entity
	for _, cp := range c.f.Campaigns {
		if cp.AccountID == accountID {
			out = append(out, cp.Entity())
		}
	}
	return out, nil
}

func (c *MemoryCatalog) FetchAdGroups(_ context.Context, campaignID string) ([]types.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Entity
	for _, g := range c.f.AdGroups {
		if g.CampaignID == campaignID {
			out = append(out, g.Entity())
		}
	}
	return out, nil
}

func (c *MemoryCatalog) FetchCreatives(_ context.Context, adGroupID string) ([]types.Creative, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Creative
	for _, cr := range c.f.Creatives {
		if cr.AdGroupID == adGroupID {
			out = append(out, cloneCreative(cr))
		}
	}
	return out, nil
}

func cloneEntities(es []types.Entity) []types.Entity {
	if es == nil {
		return nil
	}
	out := make([]types.Entity, len(es))
	for i, e := range es {
		out[i] = e.Clone()
	}
	return out
}

func cloneCreative(c types.Creative) types.Creative {
	c.Titles = append([]string(nil), c.Titles...)
	return c
}
