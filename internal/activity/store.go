package activity

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/adops/internal/database"
)

// Store is the interface for reading and writing campaign history.
type Store interface {
	// WriteEntries writes entries, skipping event ids already stored.
	WriteEntries(ctx context.Context, entries []Entry) error

	// QueryByCampaign returns history entries of one campaign, newest first.
	QueryByCampaign(ctx context.Context, campaignID string, opts QueryOptions) (entries []Entry, nextCursor string, totalCount int, err error)

	// Search performs case-insensitive search across entry summaries.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []Entry, totalCount int, err error)
}

// SQLStore implements Store over a SQLite table.
type SQLStore struct {
	drv *entsql.Driver
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(drv *entsql.Driver) *SQLStore {
	return &SQLStore{drv: drv}
}

// CreateTable creates the activity_entries table if it does not exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	return database.ExecAll(ctx, s.drv, []string{
		`CREATE TABLE IF NOT EXISTS activity_entries (
			event_id    TEXT PRIMARY KEY,
			event_type  TEXT NOT NULL,
			occurred_at INTEGER NOT NULL,
			campaign_id TEXT NOT NULL,
			session_id  TEXT NOT NULL,
			summary     TEXT NOT NULL,
			category    TEXT NOT NULL,
			payload     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_campaign_time
			ON activity_entries (campaign_id, occurred_at DESC)`,
	})
}

// WriteEntries inserts entries; existing event ids are left untouched.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ins := database.Builder().
		Insert("activity_entries").
		Columns("event_id", "event_type", "occurred_at", "campaign_id", "session_id", "summary", "category", "payload")
	for _, e := range entries {
		ins.Values(e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.CampaignID, e.SessionID, e.Summary, e.Category, string(e.Payload))
	}
	q, args := ins.OnConflict(entsql.ConflictColumns("event_id"), entsql.DoNothing()).Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

// QueryByCampaign returns history entries of one campaign with filtering and pagination.
func (s *SQLStore) QueryByCampaign(ctx context.Context, campaignID string, opts QueryOptions) ([]Entry, string, int, error) {
	limit := queryLimit(opts.Limit)

	preds := []*entsql.Predicate{entsql.EQ("campaign_id", campaignID)}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if opts.Until != nil {
		preds = append(preds, entsql.LTE("occurred_at", opts.Until.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
	}

	total, err := s.count(ctx, preds)
	if err != nil {
		return nil, "", 0, err
	}

	if opts.Cursor != "" {
		// Cursor is the occurred_at timestamp of the last result.
		if cursorTime, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			preds = append(preds, entsql.LT("occurred_at", cursorTime.UnixNano()))
		}
	}

	entries, err := s.list(ctx, preds, limit+1) // fetch one extra for cursor
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = entries[len(entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return entries, nextCursor, total, nil
}

// Search performs case-insensitive search across entry summaries.
func (s *SQLStore) Search(ctx context.Context, query string, opts SearchOptions) ([]Entry, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	preds := []*entsql.Predicate{entsql.ContainsFold("summary", query)}
	if opts.CampaignID != "" {
		preds = append(preds, entsql.EQ("campaign_id", opts.CampaignID))
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
	}

	total, err := s.count(ctx, preds)
	if err != nil {
		return nil, 0, err
	}
	entries, err := s.list(ctx, preds, limit)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *SQLStore) count(ctx context.Context, preds []*entsql.Predicate) (int, error) {
	b := database.Builder()
	q, args := b.Select(entsql.Count("*")).
		From(b.Table("activity_entries")).
		Where(entsql.And(preds...)).
		Query()

	var n int
	err := database.QueryRows(ctx, s.drv, q, args, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("counting activity entries: %w", err)
	}
	return n, nil
}

func (s *SQLStore) list(ctx context.Context, preds []*entsql.Predicate, limit int) ([]Entry, error) {
	b := database.Builder()
	q, args := b.Select("event_id", "event_type", "occurred_at", "campaign_id", "session_id", "summary", "category", "payload").
		From(b.Table("activity_entries")).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(limit).
		Query()

	var entries []Entry
	err := database.QueryRows(ctx, s.drv, q, args, func(rows *entsql.Rows) error {
		var (
			e       Entry
			nanos   int64
			payload entsql.NullString
		)
		if err := rows.Scan(&e.EventID, &e.EventType, &nanos, &e.CampaignID, &e.SessionID, &e.Summary, &e.Category, &payload); err != nil {
			return fmt.Errorf("scanning activity entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, nanos).UTC()
		if payload.Valid && payload.String != "" {
			e.Payload = []byte(payload.String)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	return entries, nil
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
