package composition

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequentialIDs yields kind-1, kind-2, ... for deterministic trees.
func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func(kind NodeKind) string {
		n++
		return fmt.Sprintf("%s-%d", kind, n)
	})
}

func TestNew_DefaultTree(t *testing.T) {
	tr := New(sequentialIDs())
	snap := tr.Snapshot()

	want := &Campaign{
		ID:         "campaign-1",
		Name:       "New campaign",
		BudgetMode: BudgetAdSet,
		AdSets: []*AdSet{{
			ID:   "adset-2",
			Name: "New ad set",
			Ads: []*Ad{{
				ID:   "ad-3",
				Name: "New ad",
				AdContent: AdContent{
					Titles:       []string{""},
					Bodies:       []string{""},
					Descriptions: []string{""},
					CTA:          CTALearnMore,
				},
			}},
		}},
	}
	if diff := cmp.Diff(want, snap.Campaign); diff != "" {
		t.Errorf("default campaign mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "campaign-1", snap.Selected)
	assert.Equal(t, []string{"campaign-1"}, snap.Expanded)
	assert.False(t, snap.LastStep)
}

func TestNew_UUIDIDs(t *testing.T) {
	tr := New()
	ids := tr.IDs()
	require.Len(t, ids, 3)
	assert.Regexp(t, `^campaign-[0-9a-f-]{36}$`, ids[0])
	assert.Regexp(t, `^adset-[0-9a-f-]{36}$`, ids[1])
	assert.Regexp(t, `^ad-[0-9a-f-]{36}$`, ids[2])
}

func TestRemoveLastChildRejected(t *testing.T) {
	tr := New(sequentialIDs())
	before := tr.Snapshot()

	err := tr.RemoveAdSet("adset-2")
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, "adset-2", iv.NodeID)
	if diff := cmp.Diff(before, tr.Snapshot()); diff != "" {
		t.Errorf("tree changed after rejected remove ad set (-before +after):\n%s", diff)
	}

	err = tr.RemoveAd("ad-3")
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, "ad-3", iv.NodeID)
	if diff := cmp.Diff(before, tr.Snapshot()); diff != "" {
		t.Errorf("tree changed after rejected remove ad (-before +after):\n%s", diff)
	}
}

func TestAddAndRemove(t *testing.T) {
	tr := New(sequentialIDs())

	asID, err := tr.AddAdSet("campaign-1")
	require.NoError(t, err)
	assert.Equal(t, "adset-4", asID)
	adID, err := tr.AddAd(asID)
	require.NoError(t, err)
	assert.Equal(t, "ad-6", adID)
	assert.Equal(t, []string{"campaign-1", "adset-2", "ad-3", "adset-4", "ad-5", "ad-6"}, tr.IDs())

	require.NoError(t, tr.Select("ad-6"))
	require.NoError(t, tr.RemoveAd("ad-6"))
	assert.Equal(t, "adset-4", tr.Selected())

	require.NoError(t, tr.RemoveAdSet("adset-4"))
	assert.Equal(t, "campaign-1", tr.Selected())
	assert.Equal(t, []string{"campaign-1", "adset-2", "ad-3"}, tr.IDs())

	_, err = tr.AddAd("campaign-1")
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = tr.AddAdSet("missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.ErrorIs(t, tr.RemoveAdSet("ad-3"), ErrWrongKind)
}

func TestDuplicateAdSet(t *testing.T) {
	tr := New(sequentialIDs())
	_, err := tr.AddAd("adset-2")
	require.NoError(t, err)
	require.NoError(t, tr.SetBudget("adset-2", 1500))
	require.NoError(t, tr.UpdateAd("ad-3", AdContent{Titles: []string{"Hello"}, CTA: CTAShopNow}))

	before := map[string]bool{}
	for _, id := range tr.IDs() {
		before[id] = true
	}

	cpID, err := tr.Duplicate("adset-2")
	require.NoError(t, err)

	snap := tr.Snapshot()
	require.Len(t, snap.Campaign.AdSets, 2)
	cp := snap.Campaign.AdSets[1]
	assert.Equal(t, cpID, cp.ID)
	assert.Equal(t, "New ad set (copy)", cp.Name)
	assert.Equal(t, int64(1500), cp.Budget)
	require.Len(t, cp.Ads, 2)
	assert.Equal(t, "New ad", cp.Ads[0].Name, "only the copied root is renamed")
	assert.Equal(t, []string{"Hello"}, cp.Ads[0].Titles)

	assert.False(t, before[cp.ID])
	for _, ad := range cp.Ads {
		assert.False(t, before[ad.ID], "ad id %s reused", ad.ID)
	}

	// The copy does not share slices with the original.
	require.NoError(t, tr.UpdateAd(cp.Ads[0].ID, AdContent{Titles: []string{"Changed"}}))
	orig := tr.Snapshot().Campaign.AdSets[0].Ads[0]
	assert.Equal(t, []string{"Hello"}, orig.Titles)
	assert.Equal(t, CTAShopNow, orig.CTA)
}

func TestDuplicateAd(t *testing.T) {
	tr := New(sequentialIDs())
	cpID, err := tr.Duplicate("ad-3")
	require.NoError(t, err)

	snap := tr.Snapshot()
	ads := snap.Campaign.AdSets[0].Ads
	require.Len(t, ads, 2)
	assert.Equal(t, cpID, ads[1].ID)
	assert.Equal(t, "New ad (copy)", ads[1].Name)
	assert.NotEqual(t, "ad-3", ads[1].ID)

	_, err = tr.Duplicate("campaign-1")
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestDuplicateSkipsTakenIDs(t *testing.T) {
	ids := []string{"campaign-1", "adset-1", "ad-1", "ad-1", "ad-2"}
	i := 0
	tr := New(WithIDGenerator(func(NodeKind) string {
		id := ids[i]
		i++
		return id
	}))

	cpID, err := tr.Duplicate("ad-1")
	require.NoError(t, err)
	assert.Equal(t, "ad-2", cpID)
}

func TestDuplicateAdSetNeverRepeatsIDsWithinCopy(t *testing.T) {
	ids := []string{"campaign-1", "adset-1", "ad-1", "ad-2", "adset-9", "ad-7", "ad-7", "ad-8"}
	i := 0
	tr := New(WithIDGenerator(func(NodeKind) string {
		id := ids[i]
		i++
		return id
	}))
	_, err := tr.AddAd("adset-1")
	require.NoError(t, err)

	cpID, err := tr.Duplicate("adset-1")
	require.NoError(t, err)
	assert.Equal(t, "adset-9", cpID)

	cp := tr.Snapshot().Campaign.AdSets[1]
	require.Len(t, cp.Ads, 2)
	assert.Equal(t, "ad-7", cp.Ads[0].ID)
	assert.Equal(t, "ad-8", cp.Ads[1].ID)

	all := tr.IDs()
	seen := map[string]bool{}
	for _, id := range all {
		assert.False(t, seen[id], "id %s used twice", id)
		seen[id] = true
	}
}

func TestEffectiveBudget(t *testing.T) {
	tr := New(sequentialIDs())
	asID, err := tr.AddAdSet("campaign-1")
	require.NoError(t, err)
	require.NoError(t, tr.SetBudget("adset-2", 100))
	require.NoError(t, tr.SetBudget(asID, 250))
	assert.Equal(t, int64(350), tr.EffectiveBudget())

	require.NoError(t, tr.SetBudget("campaign-1", 500))
	assert.Equal(t, int64(350), tr.EffectiveBudget(), "campaign budget ignored in ad set mode")

	require.NoError(t, tr.SetBudgetMode(BudgetCampaign))
	assert.Equal(t, int64(500), tr.EffectiveBudget())

	snap := tr.Snapshot()
	assert.Equal(t, int64(100), snap.Campaign.AdSets[0].Budget)
	assert.Equal(t, int64(250), snap.Campaign.AdSets[1].Budget)

	assert.ErrorIs(t, tr.SetBudgetMode("daily"), ErrInvalidBudgetMode)
	assert.ErrorIs(t, tr.SetBudget("ad-3", 10), ErrWrongKind)
	assert.ErrorIs(t, tr.SetBudget("campaign-1", -1), ErrInvalidBudget)
}

func TestRenameAndUpdateAd(t *testing.T) {
	tr := New(sequentialIDs())
	require.NoError(t, tr.Rename("campaign-1", "Black Friday"))
	require.NoError(t, tr.Rename("ad-3", "Carousel"))
	assert.ErrorIs(t, tr.Rename("nope", "x"), ErrNodeNotFound)

	assert.ErrorIs(t, tr.UpdateAd("ad-3", AdContent{CTA: "BUY_IT"}), ErrInvalidCTA)
	assert.ErrorIs(t, tr.UpdateAd("adset-2", AdContent{}), ErrWrongKind)

	require.NoError(t, tr.UpdateAd("ad-3", AdContent{Bodies: []string{"Body"}}))
	ad := tr.Snapshot().Campaign.AdSets[0].Ads[0]
	assert.Equal(t, "Carousel", ad.Name)
	assert.Equal(t, []string{"Body"}, ad.Bodies)
	assert.Equal(t, CTALearnMore, ad.CTA, "empty cta keeps the current one")
	assert.Equal(t, "Black Friday", tr.Snapshot().Campaign.Name)
}

func TestFromCampaign(t *testing.T) {
	stored := &Campaign{
		ID:   "c-1",
		Name: "Stored",
		AdSets: []*AdSet{
			{ID: "s-1", Name: "Set", Ads: []*Ad{{ID: "a-1", Name: "Ad"}, {Name: "No id"}}},
		},
	}
	tr, err := FromCampaign(stored, sequentialIDs())
	require.NoError(t, err)

	assert.Equal(t, BudgetAdSet, tr.Snapshot().Campaign.BudgetMode)
	assert.Equal(t, []string{"c-1", "s-1", "a-1", "ad-1"}, tr.IDs())
	assert.Empty(t, stored.AdSets[0].Ads[1].ID, "input is not modified")

	_, err = FromCampaign(&Campaign{ID: "c", AdSets: []*AdSet{{ID: "s"}}})
	var iv *InvariantViolation
	assert.ErrorAs(t, err, &iv)

	_, err = FromCampaign(&Campaign{ID: "c"})
	assert.ErrorAs(t, err, &iv)

	_, err = FromCampaign(&Campaign{ID: "c", AdSets: []*AdSet{{ID: "x", Ads: []*Ad{{ID: "x"}}}}})
	assert.ErrorContains(t, err, "duplicate id")

	_, err = FromCampaign(&Campaign{ID: "c", BudgetMode: "weekly", AdSets: []*AdSet{{ID: "s", Ads: []*Ad{{ID: "a"}}}}})
	assert.ErrorIs(t, err, ErrInvalidBudgetMode)
}

func TestFindAndParentOf(t *testing.T) {
	tr := New(sequentialIDs())

	kind, ok := tr.Find("adset-2")
	assert.True(t, ok)
	assert.Equal(t, KindAdSet, kind)

	parent, ok := tr.ParentOf("ad-3")
	assert.True(t, ok)
	assert.Equal(t, "adset-2", parent)

	parent, ok = tr.ParentOf("adset-2")
	assert.True(t, ok)
	assert.Equal(t, "campaign-1", parent)

	_, ok = tr.ParentOf("campaign-1")
	assert.False(t, ok)
	_, ok = tr.Find("zzz")
	assert.False(t, ok)
}
