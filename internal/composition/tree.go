package composition

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Tree owns one campaign, its cursor and its expanded nodes. All methods
// are safe for concurrent use.
type Tree struct {
	mu       sync.Mutex
	campaign *Campaign
	selected string
	expanded map[string]bool
	newID    func(NodeKind) string
}

// Option configures a Tree.
type Option func(*Tree)

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(fn func(NodeKind) string) Option {
	return func(t *Tree) { t.newID = fn }
}

func defaultID(kind NodeKind) string {
	return string(kind) + "-" + uuid.NewString()
}

// New returns a default tree: one campaign with one ad set holding one ad.
// The cursor starts on the campaign, which is expanded.
func New(opts ...Option) *Tree {
	t := newTree(opts)
	t.campaign = &Campaign{
		ID:         t.newID(KindCampaign),
		Name:       DefaultCampaignName,
		BudgetMode: BudgetAdSet,
	}
	t.campaign.AdSets = []*AdSet{defaultAdSet(t.freshIDs())}
	t.selected = t.campaign.ID
	t.expanded[t.campaign.ID] = true
	return t
}

// FromCampaign builds a tree around a stored campaign. The campaign is
// copied; missing ids are generated, and a campaign that breaks the
// minimum-child rules or repeats an id is rejected.
func FromCampaign(c *Campaign, opts ...Option) (*Tree, error) {
	if c == nil {
		return nil, fmt.Errorf("from campaign: nil campaign")
	}
	t := newTree(opts)
	t.campaign = c.clone()
	if t.campaign.ID == "" {
		t.campaign.ID = t.newID(KindCampaign)
	}
	if t.campaign.BudgetMode == "" {
		t.campaign.BudgetMode = BudgetAdSet
	}
	if !t.campaign.BudgetMode.Valid() {
		return nil, fmt.Errorf("from campaign: %w: %q", ErrInvalidBudgetMode, t.campaign.BudgetMode)
	}

	seen := map[string]bool{t.campaign.ID: true}
	claim := func(id *string, kind NodeKind) error {
		if *id == "" {
			*id = t.newID(kind)
		}
		if seen[*id] {
			return fmt.Errorf("from campaign: duplicate id %q", *id)
		}
		seen[*id] = true
		return nil
	}

	if len(t.campaign.AdSets) == 0 {
		return nil, &InvariantViolation{Op: "load", NodeID: t.campaign.ID, Reason: "campaign has no ad sets"}
	}
	for _, as := range t.campaign.AdSets {
		if err := claim(&as.ID, KindAdSet); err != nil {
			return nil, err
		}
		if len(as.Ads) == 0 {
			return nil, &InvariantViolation{Op: "load", NodeID: as.ID, Reason: "ad set has no ads"}
		}
		for _, ad := range as.Ads {
			if err := claim(&ad.ID, KindAd); err != nil {
				return nil, err
			}
		}
	}

	t.selected = t.campaign.ID
	t.expanded[t.campaign.ID] = true
	return t, nil
}

func newTree(opts []Option) *Tree {
	t := &Tree{expanded: map[string]bool{}, newID: defaultID}
	for _, o := range opts {
		o(t)
	}
	return t
}

func defaultAdSet(newID func(NodeKind) string) *AdSet {
	return &AdSet{
		ID:   newID(KindAdSet),
		Name: DefaultAdSetName,
		Ads:  []*Ad{defaultAd(newID)},
	}
}

func defaultAd(newID func(NodeKind) string) *Ad {
	return &Ad{ID: newID(KindAd), Name: DefaultAdName, AdContent: defaultContent()}
}

// location addresses a node. adSet and ad are -1 when not applicable.
type location struct {
	kind  NodeKind
	adSet int
	ad    int
}

func (t *Tree) locate(id string) (location, bool) {
	if id == "" {
		return location{}, false
	}
	if id == t.campaign.ID {
		return location{kind: KindCampaign, adSet: -1, ad: -1}, true
	}
	for i, as := range t.campaign.AdSets {
		if as.ID == id {
			return location{kind: KindAdSet, adSet: i, ad: -1}, true
		}
		for j, ad := range as.Ads {
			if ad.ID == id {
				return location{kind: KindAd, adSet: i, ad: j}, true
			}
		}
	}
	return location{}, false
}

func (t *Tree) parentID(loc location) string {
	switch loc.kind {
	case KindAdSet:
		return t.campaign.ID
	case KindAd:
		return t.campaign.AdSets[loc.adSet].ID
	}
	return ""
}

// Find reports the kind of the node with the given id.
func (t *Tree) Find(id string) (NodeKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	return loc.kind, ok
}

// ParentOf returns the id of the node's parent. The campaign has none.
func (t *Tree) ParentOf(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	if !ok || loc.kind == KindCampaign {
		return "", false
	}
	return t.parentID(loc), true
}

// IDs returns every node id in depth-first order.
func (t *Tree) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ids()
}

func (t *Tree) ids() []string {
	out := []string{t.campaign.ID}
	for _, as := range t.campaign.AdSets {
		out = append(out, as.ID)
		for _, ad := range as.Ads {
			out = append(out, ad.ID)
		}
	}
	return out
}

// CampaignID returns the id of the root node.
func (t *Tree) CampaignID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.campaign.ID
}

// AddAdSet appends an ad set holding one default ad to the campaign and
// returns the new ad set's id.
func (t *Tree) AddAdSet(campaignID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(campaignID)
	if !ok {
		return "", notFound(campaignID)
	}
	if loc.kind != KindCampaign {
		return "", wrongKind("add ad set", loc.kind)
	}
	as := defaultAdSet(t.freshIDs())
	t.campaign.AdSets = append(t.campaign.AdSets, as)
	return as.ID, nil
}

// AddAd appends a default ad to the ad set and returns its id.
func (t *Tree) AddAd(adSetID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(adSetID)
	if !ok {
		return "", notFound(adSetID)
	}
	if loc.kind != KindAdSet {
		return "", wrongKind("add ad", loc.kind)
	}
	ad := defaultAd(t.freshIDs())
	as := t.campaign.AdSets[loc.adSet]
	as.Ads = append(as.Ads, ad)
	return ad.ID, nil
}

// RemoveAdSet removes an ad set unless it is the campaign's only one. A
// cursor inside the removed subtree moves to the campaign.
func (t *Tree) RemoveAdSet(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	if !ok {
		return notFound(id)
	}
	if loc.kind != KindAdSet {
		return wrongKind("remove ad set", loc.kind)
	}
	if len(t.campaign.AdSets) <= 1 {
		return &InvariantViolation{Op: "remove ad set", NodeID: id, Reason: "a campaign must have at least one ad set"}
	}

	removed := t.campaign.AdSets[loc.adSet]
	t.campaign.AdSets = deleteAt(t.campaign.AdSets, loc.adSet)
	delete(t.expanded, removed.ID)
	if t.selected == removed.ID || containsAd(removed, t.selected) {
		t.selected = t.campaign.ID
	}
	return nil
}

// RemoveAd removes an ad unless it is its ad set's only one. A cursor on
// the removed ad moves to the ad set.
func (t *Tree) RemoveAd(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	if !ok {
		return notFound(id)
	}
	if loc.kind != KindAd {
		return wrongKind("remove ad", loc.kind)
	}
	as := t.campaign.AdSets[loc.adSet]
	if len(as.Ads) <= 1 {
		return &InvariantViolation{Op: "remove ad", NodeID: id, Reason: "an ad set must have at least one ad"}
	}

	as.Ads = deleteAt(as.Ads, loc.ad)
	if t.selected == id {
		t.selected = as.ID
	}
	return nil
}

// Duplicate deep-copies an ad set or ad with fresh ids for every node in
// the copy, suffixes the copy's name and appends it after its siblings.
// It returns the id of the copy.
func (t *Tree) Duplicate(id string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	if !ok {
		return "", notFound(id)
	}

	switch loc.kind {
	case KindAdSet:
		cp := t.campaign.AdSets[loc.adSet].clone(t.freshIDs())
		cp.Name += copySuffix
		t.campaign.AdSets = append(t.campaign.AdSets, cp)
		return cp.ID, nil
	case KindAd:
		as := t.campaign.AdSets[loc.adSet]
		cp := as.Ads[loc.ad].clone(t.freshIDs())
		cp.Name += copySuffix
		as.Ads = append(as.Ads, cp)
		return cp.ID, nil
	default:
		return "", wrongKind("duplicate", loc.kind)
	}
}

// freshIDs returns a generator for one operation. Its ids are unused in
// the tree and distinct from each other.
func (t *Tree) freshIDs() func(NodeKind) string {
	seen := map[string]bool{}
	return func(kind NodeKind) string {
		for {
			id := t.newID(kind)
			if _, taken := t.locate(id); taken || seen[id] {
				continue
			}
			seen[id] = true
			return id
		}
	}
}

// EffectiveBudget is the authoritative budget: the campaign budget in
// campaign mode, the sum of ad set budgets in ad set mode.
func (t *Tree) EffectiveBudget() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.campaign.effectiveBudget()
}

func (c *Campaign) effectiveBudget() int64 {
	if c.BudgetMode == BudgetCampaign {
		return c.Budget
	}
	var sum int64
	for _, as := range c.AdSets {
		sum += as.Budget
	}
	return sum
}

// SetBudgetMode switches budget authority. No budget value changes.
func (t *Tree) SetBudgetMode(mode BudgetMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBudgetMode, mode)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.campaign.BudgetMode = mode
	return nil
}

// SetBudget sets the budget of the campaign or of an ad set.
func (t *Tree) SetBudget(id string, amount int64) error {
	if amount < 0 {
		return ErrInvalidBudget
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	if !ok {
		return notFound(id)
	}
	switch loc.kind {
	case KindCampaign:
		t.campaign.Budget = amount
	case KindAdSet:
		t.campaign.AdSets[loc.adSet].Budget = amount
	default:
		return wrongKind("set budget", loc.kind)
	}
	return nil
}

// Rename sets the display name of any node.
func (t *Tree) Rename(id, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	if !ok {
		return notFound(id)
	}
	switch loc.kind {
	case KindCampaign:
		t.campaign.Name = name
	case KindAdSet:
		t.campaign.AdSets[loc.adSet].Name = name
	case KindAd:
		t.campaign.AdSets[loc.adSet].Ads[loc.ad].Name = name
	}
	return nil
}

// UpdateAd replaces the content of an ad. An empty CTA keeps the current one.
func (t *Tree) UpdateAd(id string, content AdContent) error {
	if content.CTA != "" && !validCTAs[content.CTA] {
		return fmt.Errorf("%w: %q", ErrInvalidCTA, content.CTA)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	if !ok {
		return notFound(id)
	}
	if loc.kind != KindAd {
		return wrongKind("update ad", loc.kind)
	}
	ad := t.campaign.AdSets[loc.adSet].Ads[loc.ad]
	next := content.clone()
	if next.CTA == "" {
		next.CTA = ad.CTA
	}
	ad.AdContent = next
	return nil
}

func containsAd(as *AdSet, id string) bool {
	for _, ad := range as.Ads {
		if ad.ID == id {
			return true
		}
	}
	return false
}

func deleteAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
