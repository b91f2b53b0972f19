package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGraph(t *testing.T) {
	g := DefaultGraph()

	assert.Equal(t, []FieldKey{Platform, Brand, Account, Campaign, AdGroup, Creative}, g.Keys())
	assert.Equal(t, []FieldKey{Platform, Brand}, g.Upstream(Account))
	assert.Equal(t, []FieldKey{Account, Campaign, AdGroup, Creative}, g.Downstream(Platform))
	assert.Equal(t, []FieldKey{AdGroup, Creative}, g.Downstream(Campaign))
	assert.Empty(t, g.Downstream(Creative))

	assert.True(t, g.Derived(Account))
	assert.False(t, g.Optional(Account))
	for _, k := range []FieldKey{Platform, Brand, Campaign, AdGroup, Creative} {
		assert.True(t, g.Optional(k), k)
		assert.False(t, g.Derived(k), k)
	}

	assert.Equal(t, []FieldKey{Campaign, AdGroup, Creative}, g.Clears(Platform))
	assert.Equal(t, []FieldKey{Campaign, AdGroup, Creative}, g.Clears(Brand))
	assert.Equal(t, []FieldKey{AdGroup, Creative}, g.Clears(Campaign))
	assert.Equal(t, []FieldKey{Creative}, g.Clears(AdGroup))
}

func TestLoadGraphRejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "upstream after dependent",
			src: `
order: ["a", "b"]
fields: {
	a: {upstream: ["b"], optional: true, clears: []}
	b: {upstream: [], optional: true, clears: []}
}`,
		},
		{
			name: "unknown upstream",
			src: `
order: ["a"]
fields: a: {upstream: ["zz"], optional: true, clears: []}`,
		},
		{
			name: "clears a field without toggle",
			src: `
order: ["a", "b"]
fields: {
	a: {upstream: [], optional: true, clears: ["b"]}
	b: {upstream: ["a"], optional: false, clears: []}
}`,
		},
		{
			name: "missing definition",
			src: `
order: ["a", "b"]
fields: a: {upstream: [], optional: true, clears: []}`,
		},
		{
			name: "not concrete",
			src: `
order: ["a"]
fields: a: {upstream: [], optional: bool, clears: []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGraph([]byte(tt.src))
			require.Error(t, err)
		})
	}
}
