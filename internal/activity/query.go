// Package activity stores the change history of campaigns: one entry per
// editor event that touched a stored campaign.
package activity

import (
	"encoding/json"
	"time"
)

// Entry is one line of a campaign's change history.
type Entry struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	CampaignID string          `json:"campaign_id"`
	SessionID  string          `json:"session_id"`
	Summary    string          `json:"summary"`
	Category   string          `json:"category"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// QueryOptions controls filtering and pagination for campaign history queries.
type QueryOptions struct {
	Since      *time.Time // default: 6 months ago
	Until      *time.Time // default: now
	Categories []string   // filter to specific categories
	Limit      int        // max results (default: 100, max: 500)
	Cursor     string     // cursor for pagination
}

// SearchOptions controls filtering for full-text history search.
type SearchOptions struct {
	CampaignID string     // restrict to one campaign
	Since      *time.Time // filter by time
	Categories []string   // filter to specific categories
	Limit      int        // max results (default: 20)
}

// DefaultQueryOptions returns QueryOptions with sensible defaults.
func DefaultQueryOptions() QueryOptions {
	sixMonthsAgo := time.Now().AddDate(0, -6, 0)
	now := time.Now()
	return QueryOptions{
		Since: &sixMonthsAgo,
		Until: &now,
		Limit: 100,
	}
}

// DefaultSearchOptions returns SearchOptions with sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit: 20,
	}
}

func queryLimit(n int) int {
	if n <= 0 || n > 500 {
		return 100
	}
	return n
}
