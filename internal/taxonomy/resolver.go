package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/matthewbaird/adops/internal/ctxlog"
	"github.com/matthewbaird/adops/internal/types"
)

// Fetcher is the catalog collaborator the resolver issues lookups through.
type Fetcher interface {
	FetchPlatforms(ctx context.Context) ([]types.Entity, error)
	FetchBrands(ctx context.Context) ([]types.Entity, error)
	FetchAccounts(ctx context.Context, brandID string) ([]types.Account, error)
	FetchCampaigns(ctx context.Context, accountID string) ([]types.Entity, error)
	FetchAdGroups(ctx context.Context, campaignID string) ([]types.Entity, error)
	FetchCreatives(ctx context.Context, adGroupID string) ([]types.Creative, error)
}

// Lookup outcomes reported to a LookupHook.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeStale = "stale"
)

// LookupHook observes every finished lookup.
type LookupHook func(field FieldKey, outcome string, elapsed time.Duration)

// Resolver keeps taxonomy fields consistent with the dependency graph.
type Resolver struct {
	store  *Store
	graph  *Graph
	fetch  Fetcher
	locale language.Tag
	hook   LookupHook
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocale sets the collation locale used to order options.
func WithLocale(tag language.Tag) Option {
	return func(r *Resolver) { r.locale = tag }
}

// WithLookupHook installs an observer for finished lookups.
func WithLookupHook(h LookupHook) Option {
	return func(r *Resolver) { r.hook = h }
}

// NewResolver creates a resolver over store issuing lookups through fetch.
func NewResolver(store *Store, fetch Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		graph:  store.graph,
		fetch:  fetch,
		locale: language.Und,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetValue writes value into key, synchronously invalidates every
// downstream field, then resolves the direct dependents of key. Lookup
// failures are recorded on the failing field and returned as
// *ResolutionError; they never revert value.
func (r *Resolver) SetValue(ctx context.Context, key FieldKey, value *string) error {
	f, ok := r.store.Get(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if value != nil && *value == "" {
		value = nil
	}
	if !f.Visible {
		return fmt.Errorf("setting %s: %w", key, ErrFieldHidden)
	}
	if value != nil {
		_, known := f.Option(*value)
		if r.graph.Derived(key) && !known {
			return fmt.Errorf("setting %s: %w", key, ErrDerivedField)
		}
		if !known && len(f.Options) > 0 {
			return fmt.Errorf("setting %s to %q: %w", key, *value, ErrUnknownOption)
		}
		value = strPtr(*value)
	}

	ctxlog.FromContext(ctx).Debug("taxonomy: set value", "field", key, "value", deref(value))
	r.store.write(key, value)
	return r.resolveDependents(ctx, key)
}

// Hydrate rebuilds the fields of an edit session from stored values and
// resolves the whole graph. Stored values survive only if the lookups
// still offer them.
func (r *Resolver) Hydrate(ctx context.Context, values map[FieldKey]string, visible map[FieldKey]bool) error {
	r.store.hydrate(values, visible)

	var errs []error
	var roots []FieldKey
	for _, k := range r.graph.order {
		if len(r.graph.Upstream(k)) > 0 {
			continue
		}
		roots = append(roots, k)
		if f, _ := r.store.Get(k); f.Visible {
			if err := r.resolve(ctx, k); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := r.resolveDependents(ctx, roots...); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Prime resolves key if every upstream field has a value, and empties it
// otherwise. A root field loads its option list.
func (r *Resolver) Prime(ctx context.Context, key FieldKey) error {
	if !r.graph.Has(key) {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return r.resolve(ctx, key)
}

func (r *Resolver) resolveDependents(ctx context.Context, keys ...FieldKey) error {
	var errs []error
	for _, d := range r.graph.dependentsOf(keys...) {
		if err := r.resolve(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Resolver) resolve(ctx context.Context, key FieldKey) error {
	gen, up, ok := r.store.beginLookup(key)
	if !ok {
		return nil
	}

	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	options, err := r.lookup(ctx, key, up)
	if err != nil {
		if r.store.failLookup(key, gen, err) {
			r.observe(key, OutcomeError, start)
			logger.Warn("taxonomy: lookup failed", "field", key, "error", err)
			return &ResolutionError{Field: key, Err: err}
		}
		r.observe(key, OutcomeStale, start)
		return nil
	}

	r.sortByName(options)
	applied, changed := r.store.completeLookup(key, gen, options, r.selectorFor(key))
	if !applied {
		r.observe(key, OutcomeStale, start)
		logger.Debug("taxonomy: discarded stale lookup", "field", key)
		return nil
	}
	r.observe(key, OutcomeOK, start)
	logger.Debug("taxonomy: lookup landed", "field", key, "options", len(options))

	if changed {
		return r.resolveDependents(ctx, key)
	}
	return nil
}

func (r *Resolver) lookup(ctx context.Context, key FieldKey, up map[FieldKey]string) ([]types.Entity, error) {
	switch key {
	case Platform:
		return r.fetch.FetchPlatforms(ctx)
	case Brand:
		return r.fetch.FetchBrands(ctx)
	case Account:
		accounts, err := r.fetch.FetchAccounts(ctx, up[Brand])
		if err != nil {
			return nil, err
		}
		var out []types.Entity
		for _, a := range accounts {
			if a.PlatformID == up[Platform] {
				out = append(out, a.Entity())
			}
		}
		return out, nil
	case Campaign:
		return r.fetch.FetchCampaigns(ctx, up[Account])
	case AdGroup:
		return r.fetch.FetchAdGroups(ctx, up[Campaign])
	case Creative:
		creatives, err := r.fetch.FetchCreatives(ctx, up[AdGroup])
		if err != nil {
			return nil, err
		}
		out := make([]types.Entity, 0, len(creatives))
		for _, c := range creatives {
			out = append(out, c.Entity())
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: no lookup for %q", ErrUnknownField, key)
	}
}

// selectorFor returns the selection rule for key. A still-offered current
// value is kept, then a pending rehydration value is adopted. Derived
// fields otherwise take the first candidate in collation order, which
// auto-selects a single match and breaks ties alphabetically.
func (r *Resolver) selectorFor(key FieldKey) selector {
	derived := r.graph.Derived(key)
	return func(options []types.Entity, current, pending *string, visible bool) *string {
		if !visible {
			return nil
		}
		for _, candidate := range []*string{current, pending} {
			if candidate == nil {
				continue
			}
			for _, o := range options {
				if o.ID == *candidate {
					return strPtr(o.ID)
				}
			}
		}
		if derived && len(options) > 0 {
			return strPtr(options[0].ID)
		}
		return nil
	}
}

// sortByName orders options by display name, case-insensitively, using
// the resolver's collation locale. Ties fall back to id.
func (r *Resolver) sortByName(items []types.Entity) {
	c := collate.New(r.locale, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		if d := c.CompareString(items[i].Name, items[j].Name); d != 0 {
			return d < 0
		}
		return items[i].ID < items[j].ID
	})
}

func (r *Resolver) observe(key FieldKey, outcome string, start time.Time) {
	if r.hook != nil {
		r.hook(key, outcome, time.Since(start))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
