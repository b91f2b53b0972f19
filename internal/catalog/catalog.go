// Package catalog serves the option lists the taxonomy resolver looks up:
// platforms, brands, accounts, campaigns, ad groups and creatives.
package catalog

import (
	"context"
	"errors"

	"github.com/matthewbaird/adops/internal/types"
)

// Catalog is the read side of the catalog. Scoped lookups return an empty
// list, not an error, for an unknown parent id.
type Catalog interface {
	FetchPlatforms(ctx context.Context) ([]types.Entity, error)
	FetchBrands(ctx context.Context) ([]types.Entity, error)
	FetchAccounts(ctx context.Context, brandID string) ([]types.Account, error)
	FetchCampaigns(ctx context.Context, accountID string) ([]types.Entity, error)
	FetchAdGroups(ctx context.Context, campaignID string) ([]types.Entity, error)
	FetchCreatives(ctx context.Context, adGroupID string) ([]types.Creative, error)
}

// Seeder loads a fixture into a writable catalog.
type Seeder interface {
	Seed(ctx context.Context, f *Fixture) error
}

// ErrEmptyID is returned when a fixture record has no id.
var ErrEmptyID = errors.New("catalog record without id")
