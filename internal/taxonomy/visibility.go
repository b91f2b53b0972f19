package taxonomy

import (
	"context"
	"fmt"

	"github.com/matthewbaird/adops/internal/ctxlog"
)

// Visibility toggles optional fields. Hiding a field clears it and,
// through the graph's clear table, hides and clears every optional field
// depending on it. Showing a field primes its options immediately.
type Visibility struct {
	store    *Store
	graph    *Graph
	resolver *Resolver
}

// NewVisibility creates a controller over the resolver's store.
func NewVisibility(r *Resolver) *Visibility {
	return &Visibility{store: r.store, graph: r.graph, resolver: r}
}

// SetVisible shows or hides key.
func (v *Visibility) SetVisible(ctx context.Context, key FieldKey, visible bool) error {
	if !v.graph.Has(key) {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if !v.graph.Optional(key) {
		return fmt.Errorf("toggling %s: %w", key, ErrNotToggleable)
	}

	ctxlog.FromContext(ctx).Debug("taxonomy: set visible", "field", key, "visible", visible)
	if !visible {
		v.hide(key)
		return nil
	}

	v.store.mutate(func(tx *txn) {
		tx.field(key).Visible = true
	})
	return v.resolver.Prime(ctx, key)
}

func (v *Visibility) hide(key FieldKey) {
	v.store.mutate(func(tx *txn) {
		var walk func(FieldKey)
		walk = func(k FieldKey) {
			tx.field(k).Visible = false
			tx.clearValue(k)
			for _, c := range v.graph.Clears(k) {
				walk(c)
			}
		}
		walk(key)

		// Derived fields have no toggle of their own; they lose their
		// value together with any field they are computed from.
		for _, d := range v.graph.Downstream(key) {
			if v.graph.Derived(d) {
				tx.invalidate(d)
			}
		}
	})
}
