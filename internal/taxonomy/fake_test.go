package taxonomy

import (
	"context"
	"sync"

	"github.com/matthewbaird/adops/internal/types"
)

// fakeFetcher is an in-memory Fetcher with call recording, error injection
// and an optional hook run inside FetchAccounts.
type fakeFetcher struct {
	mu        sync.Mutex
	platforms []types.Entity
	brands    []types.Entity
	accounts  map[string][]types.Account
	campaigns map[string][]types.Entity
	adGroups  map[string][]types.Entity
	creatives map[string][]types.Creative
	errs      map[string]error
	calls     []string

	onAccounts func(brandID string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		platforms: []types.Entity{{ID: "meta", Name: "Meta"}, {ID: "google", Name: "Google"}},
		brands:    []types.Entity{{ID: "b1", Name: "Brand One"}, {ID: "b2", Name: "Brand Two"}},
		accounts: map[string][]types.Account{
			"b1": {
				{ID: "acc-meta-b1", Name: "B1 Meta", BrandID: "b1", PlatformID: "meta"},
				{ID: "acc-google-b1", Name: "B1 Google", BrandID: "b1", PlatformID: "google"},
			},
			"b2": {
				{ID: "a1", Name: "Zeta", BrandID: "b2", PlatformID: "meta"},
				{ID: "a2", Name: "Alpha", BrandID: "b2", PlatformID: "meta"},
			},
		},
		campaigns: map[string][]types.Entity{
			"acc-meta-b1": {{ID: "c2", Name: "winter sale"}, {ID: "c1", Name: "Summer Sale"}},
			"a2":          {{ID: "c9", Name: "Alpha Launch"}},
		},
		adGroups: map[string][]types.Entity{
			"c1": {{ID: "g1", Name: "Retargeting"}},
		},
		creatives: map[string][]types.Creative{
			"g1": {{ID: "cr1", AdGroupID: "g1", Titles: []string{"Buy now"}}, {ID: "cr2", AdGroupID: "g1"}},
		},
		errs: map[string]error{},
	}
}

func (f *fakeFetcher) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.errs[call]
}

func (f *fakeFetcher) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) FetchPlatforms(context.Context) ([]types.Entity, error) {
	if err := f.record("platforms"); err != nil {
		return nil, err
	}
	return append([]types.Entity(nil), f.platforms...), nil
}

func (f *fakeFetcher) FetchBrands(context.Context) ([]types.Entity, error) {
	if err := f.record("brands"); err != nil {
		return nil, err
	}
	return append([]types.Entity(nil), f.brands...), nil
}

func (f *fakeFetcher) FetchAccounts(_ context.Context, brandID string) ([]types.Account, error) {
	if f.onAccounts != nil {
		f.onAccounts(brandID)
	}
	if err := f.record("accounts:" + brandID); err != nil {
		return nil, err
	}
	return append([]types.Account(nil), f.accounts[brandID]...), nil
}

func (f *fakeFetcher) FetchCampaigns(_ context.Context, accountID string) ([]types.Entity, error) {
	if err := f.record("campaigns:" + accountID); err != nil {
		return nil, err
	}
	return append([]types.Entity(nil), f.campaigns[accountID]...), nil
}

func (f *fakeFetcher) FetchAdGroups(_ context.Context, campaignID string) ([]types.Entity, error) {
	if err := f.record("ad_groups:" + campaignID); err != nil {
		return nil, err
	}
	return append([]types.Entity(nil), f.adGroups[campaignID]...), nil
}

func (f *fakeFetcher) FetchCreatives(_ context.Context, adGroupID string) ([]types.Creative, error) {
	if err := f.record("creatives:" + adGroupID); err != nil {
		return nil, err
	}
	return append([]types.Creative(nil), f.creatives[adGroupID]...), nil
}

type harness struct {
	fetch      *fakeFetcher
	store      *Store
	resolver   *Resolver
	visibility *Visibility
}

func newHarness() *harness {
	f := newFakeFetcher()
	s := NewStore(DefaultGraph())
	r := NewResolver(s, f)
	return &harness{fetch: f, store: s, resolver: r, visibility: NewVisibility(r)}
}

func (h *harness) value(k FieldKey) *string {
	f, _ := h.store.Get(k)
	return f.Value
}

func ptr(s string) *string { return &s }
