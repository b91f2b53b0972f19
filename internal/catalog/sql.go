package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/adops/internal/database"
	"github.com/matthewbaird/adops/internal/types"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS platforms (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS brands (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		brand_id    TEXT NOT NULL REFERENCES brands(id),
		platform_id TEXT NOT NULL REFERENCES platforms(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_brand ON accounts (brand_id)`,
	`CREATE TABLE IF NOT EXISTS catalog_campaigns (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_campaigns_account ON catalog_campaigns (account_id)`,
	`CREATE TABLE IF NOT EXISTS ad_groups (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		campaign_id TEXT NOT NULL REFERENCES catalog_campaigns(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ad_groups_campaign ON ad_groups (campaign_id)`,
	`CREATE TABLE IF NOT EXISTS creatives (
		id          TEXT PRIMARY KEY,
		ad_group_id TEXT NOT NULL REFERENCES ad_groups(id),
		titles      TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_creatives_ad_group ON creatives (ad_group_id)`,
}

// SQLCatalog implements Catalog over SQLite tables.
type SQLCatalog struct {
	drv *entsql.Driver
}

// NewSQLCatalog creates a catalog over drv.
func NewSQLCatalog(drv *entsql.Driver) *SQLCatalog {
	return &SQLCatalog{drv: drv}
}

// CreateTables creates the catalog tables if they do not exist.
func (c *SQLCatalog) CreateTables(ctx context.Context) error {
	if err := database.ExecAll(ctx, c.drv, schema); err != nil {
		return fmt.Errorf("creating catalog tables: %w", err)
	}
	return nil
}

// Seed upserts every record of f in one transaction.
func (c *SQLCatalog) Seed(ctx context.Context, f *Fixture) (err error) {
	if err := f.Validate(); err != nil {
		return err
	}
	tx, err := c.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	upsert := func(table string, cols []string, vals ...any) error {
		q, args := database.Builder().
			Insert(table).
			Columns(cols...).
			Values(vals...).
			OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
			Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("seeding %s %v: %w", table, vals[0], err)
		}
		return nil
	}

	for _, p := range f.Platforms {
		if err = upsert("platforms", []string{"id", "name"}, p.ID, p.Name); err != nil {
			return err
		}
	}
	for _, b := range f.Brands {
		if err = upsert("brands", []string{"id", "name"}, b.ID, b.Name); err != nil {
			return err
		}
	}
	for _, a := range f.Accounts {
		if err = upsert("accounts", []string{"id", "name", "brand_id", "platform_id"}, a.ID, a.Name, a.BrandID, a.PlatformID); err != nil {
			return err
		}
	}
	for _, cp := range f.Campaigns {
		if err = upsert("catalog_campaigns", []string{"id", "name", "account_id"}, cp.ID, cp.Name, cp.AccountID); err != nil {
			return err
		}
	}
	for _, g := range f.AdGroups {
		if err = upsert("ad_groups", []string{"id", "name", "campaign_id"}, g.ID, g.Name, g.CampaignID); err != nil {
			return err
		}
	}
	for _, cr := range f.Creatives {
		titles, jerr := json.Marshal(nonNil(cr.Titles))
		if jerr != nil {
			err = fmt.Errorf("encoding titles of %s: %w", cr.ID, jerr)
			return err
		}
		if err = upsert("creatives", []string{"id", "ad_group_id", "titles"}, cr.ID, cr.AdGroupID, string(titles)); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

func (c *SQLCatalog) FetchPlatforms(ctx context.Context) ([]types.Entity, error) {
	return c.entities(ctx, "platforms", "", "", "")
}

func (c *SQLCatalog) FetchBrands(ctx context.Context) ([]types.Entity, error) {
	return c.entities(ctx, "brands", "", "", "")
}

func (c *SQLCatalog) FetchAccounts(ctx context.Context, brandID string) ([]types.Account, error) {
	b := database.Builder()
	q, args := b.Select("id", "name", "brand_id", "platform_id").
		From(b.Table("accounts")).
		Where(entsql.EQ("brand_id", brandID)).
		OrderBy("id").
		Query()

	var out []types.Account
	err := c.query(ctx, q, args, func(rows *entsql.Rows) error {
		var a types.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.BrandID, &a.PlatformID); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching accounts of %s: %w", brandID, err)
	}
	return out, nil
}

func (c *SQLCatalog) FetchCampaigns(ctx context.Context, accountID string) ([]types.Entity, error) {
	return c.entities(ctx, "catalog_campaigns", "account_id", types.RefAccount, accountID)
}

func (c *SQLCatalog) FetchAdGroups(ctx context.Context, campaignID string) ([]types.Entity, error) {
	return c.entities(ctx, "ad_groups", "campaign_id", types.RefCampaign, campaignID)
}

func (c *SQLCatalog) FetchCreatives(ctx context.Context, adGroupID string) ([]types.Creative, error) {
	b := database.Builder()
	q, args := b.Select("id", "ad_group_id", "titles").
		From(b.Table("creatives")).
		Where(entsql.EQ("ad_group_id", adGroupID)).
		OrderBy("id").
		Query()

	var out []types.Creative
	err := c.query(ctx, q, args, func(rows *entsql.Rows) error {
		var (
			cr     types.Creative
			titles string
		)
		if err := rows.Scan(&cr.ID, &cr.AdGroupID, &titles); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(titles), &cr.Titles); err != nil {
			return fmt.Errorf("decoding titles of %s: %w", cr.ID, err)
		}
		out = append(out, cr)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching creatives of %s: %w", adGroupID, err)
	}
	return out, nil
}

// entities lists id/name rows of table, optionally scoped by parentCol.
func (c *SQLCatalog) entities(ctx context.Context, table, parentCol, refKey, parentID string) ([]types.Entity, error) {
	b := database.Builder()
	sel := b.Select("id", "name").From(b.Table(table)).OrderBy("id")
	if parentCol != "" {
		sel.Where(entsql.EQ(parentCol, parentID))
	}
	q, args := sel.Query()

	var out []types.Entity
	err := c.query(ctx, q, args, func(rows *entsql.Rows) error {
		var e types.Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return err
		}
		if refKey != "" {
			e.ParentRefs = map[string]string{refKey: parentID}
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", table, err)
	}
	return out, nil
}

func (c *SQLCatalog) query(ctx context.Context, q string, args []any, scan func(*entsql.Rows) error) error {
	return database.QueryRows(ctx, c.drv, q, args, scan)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
