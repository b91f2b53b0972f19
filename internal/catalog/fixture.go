package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/adops/internal/types"
)

//go:embed seed.yaml
var defaultSeed []byte

// Campaign is a catalog campaign scoped to an account.
type Campaign struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	AccountID string `yaml:"account_id"`
}

// Entity converts the campaign into an option item.
func (c Campaign) Entity() types.Entity {
	return types.Entity{ID: c.ID, Name: c.Name, ParentRefs: map[string]string{types.RefAccount: c.AccountID}}
}

// AdGroup is a catalog ad group scoped to a campaign.
type AdGroup struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	CampaignID string `yaml:"campaign_id"`
}

// Entity converts the ad group into an option item.
func (g AdGroup) Entity() types.Entity {
	return types.Entity{ID: g.ID, Name: g.Name, ParentRefs: map[string]string{types.RefCampaign: g.CampaignID}}
}

// Fixture is a complete catalog, as read from a YAML seed file.
type Fixture struct {
	Platforms []types.Entity   `yaml:"platforms"`
	Brands    []types.Entity   `yaml:"brands"`
	Accounts  []types.Account  `yaml:"accounts"`
	Campaigns []Campaign       `yaml:"campaigns"`
	AdGroups  []AdGroup        `yaml:"ad_groups"`
	Creatives []types.Creative `yaml:"creatives"`
}

// DefaultFixture returns the embedded demo catalog.
func DefaultFixture() (*Fixture, error) {
	return ParseFixture(defaultSeed)
}

// ReadFixture decodes and validates a fixture. Unknown keys are rejected.
func ReadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseFixture is ReadFixture over a byte slice.
func ParseFixture(b []byte) (*Fixture, error) {
	return ReadFixture(bytes.NewReader(b))
}

// Validate checks ids are present and unique per kind and that every
// parent reference points at a record in the fixture.
func (f *Fixture) Validate() error {
	var errs []error
	index := func(kind string, ids []string) map[string]bool {
		set := make(map[string]bool, len(ids))
		for i, id := range ids {
			switch {
			case id == "":
				errs = append(errs, fmt.Errorf("%s[%d]: %w", kind, i, ErrEmptyID))
			case set[id]:
				errs = append(errs, fmt.Errorf("%s: duplicate id %q", kind, id))
			}
			set[id] = true
		}
		return set
	}
	ref := func(kind, id, parentKind, parentID string, parents map[string]bool) {
		if !parents[parentID] {
			errs = append(errs, fmt.Errorf("%s %q: unknown %s %q", kind, id, parentKind, parentID))
		}
	}

	platforms := index("platforms", entityIDs(f.Platforms))
	brands := index("brands", entityIDs(f.Brands))

	accountIDs := make([]string, len(f.Accounts))
	for i, a := range f.Accounts {
		accountIDs[i] = a.ID
	}
	accounts := index("accounts", accountIDs)
	for _, a := range f.Accounts {
		ref("account", a.ID, "brand", a.BrandID, brands)
		ref("account", a.ID, "platform", a.PlatformID, platforms)
	}

	campaignIDs := make([]string, len(f.Campaigns))
	for i, c := range f.Campaigns {
		campaignIDs[i] = c.ID
		ref("campaign", c.ID, "account", c.AccountID, accounts)
	}
	campaigns := index("campaigns", campaignIDs)

	groupIDs := make([]string, len(f.AdGroups))
	for i, g := range f.AdGroups {
		groupIDs[i] = g.ID
		ref("ad group", g.ID, "campaign", g.CampaignID, campaigns)
	}
	groups := index("ad_groups", groupIDs)

	creativeIDs := make([]string, len(f.Creatives))
	for i, c := range f.Creatives {
		creativeIDs[i] = c.ID
		ref("creative", c.ID, "ad group", c.AdGroupID, groups)
	}
	index("creatives", creativeIDs)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid fixture: %w", err)
	}
	return nil
}

func entityIDs(es []types.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
