package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/adops/internal/activity"
)

type capture struct{ events []DomainEvent }

func (c *capture) Publish(_ context.Context, evt DomainEvent) { c.events = append(c.events, evt) }

func TestActivityRecorder(t *testing.T) {
	ctx := context.Background()
	store := activity.NewMemoryStore()
	bus := &capture{}
	r := NewActivityRecorder(store)
	r.SetPublisher(bus)

	submitted := NewCampaignSubmitted(CampaignSubmittedPayload{
		SessionID:  "0123456789abcdef",
		CampaignID: "campaign-1",
		Name:       "Summer",
		Owner:      "ana",
	})
	require.NoError(t, r.Record(ctx, submitted))

	opened := NewSessionOpened(SessionOpenedPayload{SessionID: "0123456789abcdef", Mode: "new"})
	require.NoError(t, r.Record(ctx, opened))

	entries, _, total, err := store.QueryByCampaign(ctx, "campaign-1", activity.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, total, "events without a campaign are not written to history")
	assert.Equal(t, TypeCampaignSubmitted, entries[0].EventType)
	assert.Equal(t, `Campaign "Summer" submitted by ana`, entries[0].Summary)

	require.Len(t, bus.events, 2)
	assert.Equal(t, "Editor session 01234567 opened (new)", bus.events[1].Summary)
}

func TestNewNodeOperation_Rejected(t *testing.T) {
	evt := NewNodeOperation(NodeOperationPayload{
		SessionID: "s",
		Action:    "delete",
		NodeID:    "adset-1",
		Kind:      "adset",
		Error:     "a campaign must have at least one ad set",
	})
	assert.Equal(t, TypeNodeOperationFail, evt.EventType)
	assert.Equal(t, "structure", evt.Category)
	assert.Contains(t, evt.Summary, "rejected")
}
