package composition

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	tr := New(sequentialIDs())
	_, err := tr.AddAdSet("campaign-1")
	require.NoError(t, err)
	require.NoError(t, tr.Collapse("campaign-1"))

	id, moved := tr.Advance()
	assert.True(t, moved)
	assert.Equal(t, "adset-2", id)
	assert.True(t, tr.IsExpanded("campaign-1"), "advance expands the campaign")
	assert.False(t, tr.IsLastStep())

	id, moved = tr.Advance()
	assert.True(t, moved)
	assert.Equal(t, "ad-3", id)
	assert.True(t, tr.IsExpanded("adset-2"))
	assert.True(t, tr.IsLastStep())

	before := tr.Snapshot()
	id, moved = tr.Advance()
	assert.False(t, moved)
	assert.Equal(t, "ad-3", id)
	if diff := cmp.Diff(before, tr.Snapshot()); diff != "" {
		t.Errorf("advance on an ad changed state (-before +after):\n%s", diff)
	}
}

func TestSelectDoesNotMutateData(t *testing.T) {
	tr := New(sequentialIDs())
	before := tr.Snapshot().Campaign

	require.NoError(t, tr.Select("ad-3"))
	assert.Equal(t, "ad-3", tr.Selected())
	if diff := cmp.Diff(before, tr.Snapshot().Campaign); diff != "" {
		t.Errorf("select changed tree data (-before +after):\n%s", diff)
	}

	assert.ErrorIs(t, tr.Select("missing"), ErrNodeNotFound)
	assert.Equal(t, "ad-3", tr.Selected())
}

func TestExpandCollapseToggle(t *testing.T) {
	tr := New(sequentialIDs())

	require.NoError(t, tr.Expand("adset-2"))
	assert.Equal(t, []string{"campaign-1", "adset-2"}, tr.Snapshot().Expanded)

	require.NoError(t, tr.Toggle("campaign-1"))
	assert.False(t, tr.IsExpanded("campaign-1"))
	require.NoError(t, tr.Toggle("campaign-1"))
	assert.True(t, tr.IsExpanded("campaign-1"))

	require.NoError(t, tr.Collapse("adset-2"))
	assert.Equal(t, []string{"campaign-1"}, tr.Snapshot().Expanded)

	assert.ErrorIs(t, tr.Expand("ad-3"), ErrWrongKind)
}
