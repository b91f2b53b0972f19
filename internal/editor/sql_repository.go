package editor

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/database"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

// fieldColumns maps taxonomy fields to editor_campaigns columns.
var fieldColumns = []struct {
	key taxonomy.FieldKey
	col string
}{
	{taxonomy.Platform, "platform_id"},
	{taxonomy.Brand, "brand_id"},
	{taxonomy.Account, "account_id"},
	{taxonomy.Campaign, "catalog_campaign_id"},
	{taxonomy.AdGroup, "ad_group_id"},
	{taxonomy.Creative, "creative_id"},
}

var repositorySchema = []string{
	`CREATE TABLE IF NOT EXISTS editor_campaigns (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL,
		budget_mode         TEXT NOT NULL,
		budget              INTEGER NOT NULL DEFAULT 0,
		platform_id         TEXT,
		brand_id            TEXT,
		account_id          TEXT,
		catalog_campaign_id TEXT,
		ad_group_id         TEXT,
		creative_id         TEXT,
		visible             TEXT NOT NULL DEFAULT '{}',
		description         TEXT NOT NULL,
		owner               TEXT NOT NULL,
		hypothesis          TEXT NOT NULL DEFAULT '',
		change_type         TEXT NOT NULL DEFAULT '',
		submitted_at        INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS editor_ad_sets (
		id          TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL REFERENCES editor_campaigns(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		name        TEXT NOT NULL,
		budget      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_editor_ad_sets_campaign ON editor_ad_sets (campaign_id, position)`,
	`CREATE TABLE IF NOT EXISTS editor_ads (
		id           TEXT PRIMARY KEY,
		ad_set_id    TEXT NOT NULL REFERENCES editor_ad_sets(id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		name         TEXT NOT NULL,
		titles       TEXT NOT NULL DEFAULT '[]',
		bodies       TEXT NOT NULL DEFAULT '[]',
		descriptions TEXT NOT NULL DEFAULT '[]',
		cta          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_editor_ads_ad_set ON editor_ads (ad_set_id, position)`,
}

// Repository implements Persister and Loader over SQLite.
type Repository struct {
	drv *entsql.Driver
}

// NewRepository creates a repository over drv.
func NewRepository(drv *entsql.Driver) *Repository {
	return &Repository{drv: drv}
}

// CreateTables creates the editor tables if they do not exist.
func (r *Repository) CreateTables(ctx context.Context) error {
	if err := database.ExecAll(ctx, r.drv, repositorySchema); err != nil {
		return fmt.Errorf("creating editor tables: %w", err)
	}
	return nil
}

// Persist writes the submission in one transaction, replacing the ad sets
// and ads of an existing campaign with the same id.
func (r *Repository) Persist(ctx context.Context, sub *Submission) (err error) {
	visible, err := json.Marshal(sub.Visible)
	if err != nil {
		return fmt.Errorf("encoding visibility: %w", err)
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin persist: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	b := database.Builder()
	c := sub.Campaign
	cols := []string{"id", "name", "budget_mode", "budget"}
	vals := []any{sub.CampaignID, c.Name, string(c.BudgetMode), c.Budget}
	for _, fc := range fieldColumns {
		cols = append(cols, fc.col)
		vals = append(vals, nullable(sub.Fields[fc.key]))
	}
	cols = append(cols, "visible", "description", "owner", "hypothesis", "change_type", "submitted_at")
	vals = append(vals, string(visible), sub.Details.Description, sub.Details.Owner,
		sub.Details.Hypothesis, sub.Details.ChangeType, sub.SubmittedAt.UnixNano())

	q, args := b.Insert("editor_campaigns").
		Columns(cols...).
		Values(vals...).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err = tx.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("writing campaign: %w", err)
	}

	q, args = b.Delete("editor_ad_sets").Where(entsql.EQ("campaign_id", sub.CampaignID)).Query()
	if err = tx.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("clearing ad sets: %w", err)
	}

	for i, as := range c.AdSets {
		q, args = b.Insert("editor_ad_sets").
			Columns("id", "campaign_id", "position", "name", "budget").
			Values(as.ID, sub.CampaignID, i, as.Name, as.Budget).
			Query()
		if err = tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("writing ad set %s: %w", as.ID, err)
		}
		for j, ad := range as.Ads {
			var titles, bodies, descriptions []byte
			if titles, err = json.Marshal(ad.Titles); err != nil {
				return err
			}
			if bodies, err = json.Marshal(ad.Bodies); err != nil {
				return err
			}
			if descriptions, err = json.Marshal(ad.Descriptions); err != nil {
				return err
			}
			q, args = b.Insert("editor_ads").
				Columns("id", "ad_set_id", "position", "name", "titles", "bodies", "descriptions", "cta").
				Values(ad.ID, as.ID, j, ad.Name, string(titles), string(bodies), string(descriptions), ad.CTA).
				Query()
			if err = tx.Exec(ctx, q, args, nil); err != nil {
				return fmt.Errorf("writing ad %s: %w", ad.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit persist: %w", err)
	}
	return nil
}

// Load reads a stored campaign. Ads of each ad set are loaded concurrently.
func (r *Repository) Load(ctx context.Context, campaignID string) (*Stored, error) {
	st, err := r.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if st.Campaign.AdSets, err = r.loadAdSets(ctx, campaignID); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, as := range st.Campaign.AdSets {
		g.Go(func() error {
			ads, err := r.loadAds(gctx, as.ID)
			if err != nil {
				return err
			}
			as.Ads = ads
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *Repository) loadCampaign(ctx context.Context, id string) (*Stored, error) {
	b := database.Builder()
	cols := []string{"id", "name", "budget_mode", "budget"}
	for _, fc := range fieldColumns {
		cols = append(cols, fc.col)
	}
	cols = append(cols, "visible", "description", "owner", "hypothesis", "change_type")
	q, args := b.Select(cols...).From(b.Table("editor_campaigns")).Where(entsql.EQ("id", id)).Query()

	var st *Stored
	err := database.QueryRows(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		var (
			c       composition.Campaign
			mode    string
			taxo    = make([]entsql.NullString, len(fieldColumns))
			visible string
			d       Details
		)
		dest := []any{&c.ID, &c.Name, &mode, &c.Budget}
		for i := range taxo {
			dest = append(dest, &taxo[i])
		}
		dest = append(dest, &visible, &d.Description, &d.Owner, &d.Hypothesis, &d.ChangeType)
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		c.BudgetMode = composition.BudgetMode(mode)

		st = &Stored{Campaign: &c, Fields: map[taxonomy.FieldKey]string{}, Details: d}
		for i, fc := range fieldColumns {
			if taxo[i].Valid {
				st.Fields[fc.key] = taxo[i].String
			}
		}
		if err := json.Unmarshal([]byte(visible), &st.Visible); err != nil {
			return fmt.Errorf("decoding visibility: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading campaign %s: %w", id, err)
	}
	if st == nil {
		return nil, ErrCampaignNotFound
	}
	return st, nil
}

func (r *Repository) loadAdSets(ctx context.Context, campaignID string) ([]*composition.AdSet, error) {
	b := database.Builder()
	q, args := b.Select("id", "name", "budget").
		From(b.Table("editor_ad_sets")).
		Where(entsql.EQ("campaign_id", campaignID)).
		OrderBy("position").
		Query()

	var out []*composition.AdSet
	err := database.QueryRows(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		as := &composition.AdSet{}
		if err := rows.Scan(&as.ID, &as.Name, &as.Budget); err != nil {
			return err
		}
		out = append(out, as)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading ad sets of %s: %w", campaignID, err)
	}
	return out, nil
}

func (r *Repository) loadAds(ctx context.Context, adSetID string) ([]*composition.Ad, error) {
	b := database.Builder()
	q, args := b.Select("id", "name", "titles", "bodies", "descriptions", "cta").
		From(b.Table("editor_ads")).
		Where(entsql.EQ("ad_set_id", adSetID)).
		OrderBy("position").
		Query()

	var out []*composition.Ad
	err := database.QueryRows(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		var (
			ad                           composition.Ad
			titles, bodies, descriptions string
		)
		if err := rows.Scan(&ad.ID, &ad.Name, &titles, &bodies, &descriptions, &ad.CTA); err != nil {
			return err
		}
		for _, f := range []struct {
			raw string
			dst *[]string
		}{{titles, &ad.Titles}, {bodies, &ad.Bodies}, {descriptions, &ad.Descriptions}} {
			if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
				return fmt.Errorf("decoding ad %s: %w", ad.ID, err)
			}
		}
		out = append(out, &ad)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading ads of %s: %w", adSetID, err)
	}
	return out, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
