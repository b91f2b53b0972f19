// Package composition implements the Campaign → AdSet → Ad tree edited in
// a campaign session: structural edits with minimum-child enforcement,
// duplication with fresh ids, budget aggregation and the guided cursor.
package composition

// NodeKind identifies the level of a node in the tree.
type NodeKind string

const (
	KindCampaign NodeKind = "campaign"
	KindAdSet    NodeKind = "adset"
	KindAd       NodeKind = "ad"
)

// BudgetMode selects which level's budget is authoritative.
type BudgetMode string

const (
	// BudgetCampaign (CBO) uses the campaign budget.
	BudgetCampaign BudgetMode = "campaign"
	// BudgetAdSet (ABO) sums the ad set budgets.
	BudgetAdSet BudgetMode = "adset"
)

// Valid reports whether m is a known budget mode.
func (m BudgetMode) Valid() bool {
	return m == BudgetCampaign || m == BudgetAdSet
}

// Call-to-action values accepted on an Ad.
const (
	CTALearnMore       = "LEARN_MORE"
	CTAContactUs       = "CONTACT_US"
	CTASignUp          = "SIGN_UP"
	CTAWhatsAppMessage = "WHATSAPP_MESSAGE"
	CTAShopNow         = "SHOP_NOW"
)

var validCTAs = map[string]bool{
	CTALearnMore:       true,
	CTAContactUs:       true,
	CTASignUp:          true,
	CTAWhatsAppMessage: true,
	CTAShopNow:         true,
}

// Default names given to new nodes.
const (
	DefaultCampaignName = "New campaign"
	DefaultAdSetName    = "New ad set"
	DefaultAdName       = "New ad"
	copySuffix          = " (copy)"
)

// Campaign is the root of the tree. Budgets are in minor currency units.
type Campaign struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	BudgetMode BudgetMode `json:"budget_mode"`
	Budget     int64      `json:"budget"`
	AdSets     []*AdSet   `json:"ad_sets"`
}

// AdSet groups Ads under a campaign.
type AdSet struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Budget int64  `json:"budget"`
	Ads    []*Ad  `json:"ads"`
}

// AdContent is the editable copy of an Ad.
type AdContent struct {
	Titles       []string `json:"titles"`
	Bodies       []string `json:"bodies"`
	Descriptions []string `json:"descriptions"`
	CTA          string   `json:"cta"`
}

// Ad is a leaf of the tree.
type Ad struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	AdContent
}

func defaultContent() AdContent {
	return AdContent{
		Titles:       []string{""},
		Bodies:       []string{""},
		Descriptions: []string{""},
		CTA:          CTALearnMore,
	}
}

func (c AdContent) clone() AdContent {
	return AdContent{
		Titles:       append([]string(nil), c.Titles...),
		Bodies:       append([]string(nil), c.Bodies...),
		Descriptions: append([]string(nil), c.Descriptions...),
		CTA:          c.CTA,
	}
}

// clone copies the campaign, keeping ids.
func (c *Campaign) clone() *Campaign {
	out := *c
	out.AdSets = make([]*AdSet, len(c.AdSets))
	for i, as := range c.AdSets {
		out.AdSets[i] = as.clone(nil)
	}
	return &out
}

// clone copies the ad set. With a non-nil newID every id in the copy is
// replaced.
func (as *AdSet) clone(newID func(NodeKind) string) *AdSet {
	out := *as
	if newID != nil {
		out.ID = newID(KindAdSet)
	}
	out.Ads = make([]*Ad, len(as.Ads))
	for i, ad := range as.Ads {
		out.Ads[i] = ad.clone(newID)
	}
	return &out
}

func (ad *Ad) clone(newID func(NodeKind) string) *Ad {
	out := &Ad{ID: ad.ID, Name: ad.Name, AdContent: ad.AdContent.clone()}
	if newID != nil {
		out.ID = newID(KindAd)
	}
	return out
}
