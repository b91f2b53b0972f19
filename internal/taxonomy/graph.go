// Package taxonomy keeps the campaign taxonomy selectors (platform, brand,
// account, campaign, ad group, creative) consistent with their dependency
// graph: values invalidate downstream fields, lookups repopulate options,
// and hidden fields never carry a value.
package taxonomy

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// FieldKey names a taxonomy field.
type FieldKey string

const (
	Platform FieldKey = "platform"
	Brand    FieldKey = "brand"
	Account  FieldKey = "account"
	Campaign FieldKey = "campaign"
	AdGroup  FieldKey = "ad_group"
	Creative FieldKey = "creative"
)

//go:embed taxonomy.cue
var defaultTable []byte

type fieldDef struct {
	Upstream []string `json:"upstream"`
	Optional bool     `json:"optional"`
	Clears   []string `json:"clears"`
}

type tableDoc struct {
	Order  []string            `json:"order"`
	Fields map[string]fieldDef `json:"fields"`
}

// Graph is the static field dependency table. It is immutable once built.
type Graph struct {
	order      []FieldKey
	index      map[FieldKey]int
	upstream   map[FieldKey][]FieldKey
	dependents map[FieldKey][]FieldKey
	clears     map[FieldKey][]FieldKey
	optional   map[FieldKey]bool
}

var (
	defaultOnce  sync.Once
	defaultGraph *Graph
	defaultErr   error
)

// DefaultGraph returns the graph compiled from the embedded table.
// It panics if the embedded table is invalid.
func DefaultGraph() *Graph {
	defaultOnce.Do(func() {
		defaultGraph, defaultErr = LoadGraph(defaultTable)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("taxonomy: embedded table: %v", defaultErr))
	}
	return defaultGraph
}

// LoadGraph compiles a CUE dependency table and checks that it describes
// a DAG whose order lists every upstream field before its dependents.
func LoadGraph(src []byte) (*Graph, error) {
	cctx := cuecontext.New()
	v := cctx.CompileBytes(src, cue.Filename("taxonomy.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling table: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating table: %w", err)
	}

	var doc tableDoc
	if err := v.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding table: %w", err)
	}
	return buildGraph(doc)
}

func buildGraph(doc tableDoc) (*Graph, error) {
	g := &Graph{
		index:      make(map[FieldKey]int, len(doc.Order)),
		upstream:   make(map[FieldKey][]FieldKey),
		dependents: make(map[FieldKey][]FieldKey),
		clears:     make(map[FieldKey][]FieldKey),
		optional:   make(map[FieldKey]bool),
	}

	for i, name := range doc.Order {
		k := FieldKey(name)
		if _, dup := g.index[k]; dup {
			return nil, fmt.Errorf("field %q listed twice in order", name)
		}
		if _, ok := doc.Fields[name]; !ok {
			return nil, fmt.Errorf("field %q in order has no definition", name)
		}
		g.index[k] = i
		g.order = append(g.order, k)
	}
	if len(doc.Fields) != len(g.order) {
		return nil, fmt.Errorf("order lists %d fields, table defines %d", len(g.order), len(doc.Fields))
	}

	for _, k := range g.order {
		def := doc.Fields[string(k)]
		g.optional[k] = def.Optional
		for _, up := range def.Upstream {
			u := FieldKey(up)
			ui, ok := g.index[u]
			if !ok {
				return nil, fmt.Errorf("field %q: unknown upstream %q", k, up)
			}
			if ui >= g.index[k] {
				return nil, fmt.Errorf("field %q: upstream %q must precede it in order", k, up)
			}
			g.upstream[k] = append(g.upstream[k], u)
			g.dependents[u] = append(g.dependents[u], k)
		}
		for _, c := range def.Clears {
			ck := FieldKey(c)
			if _, ok := g.index[ck]; !ok {
				return nil, fmt.Errorf("field %q: unknown cleared field %q", k, c)
			}
			if !doc.Fields[c].Optional {
				return nil, fmt.Errorf("field %q: cleared field %q has no visibility toggle", k, c)
			}
			g.clears[k] = append(g.clears[k], ck)
		}
	}
	return g, nil
}

// Keys returns every field in topological order.
func (g *Graph) Keys() []FieldKey {
	return append([]FieldKey(nil), g.order...)
}

// Has reports whether k is a field of the graph.
func (g *Graph) Has(k FieldKey) bool {
	_, ok := g.index[k]
	return ok
}

// Upstream returns the fields k depends on directly.
func (g *Graph) Upstream(k FieldKey) []FieldKey { return g.upstream[k] }

// Dependents returns the fields that depend on k directly.
func (g *Graph) Dependents(k FieldKey) []FieldKey { return g.dependents[k] }

// Clears returns the optional fields hidden along with k.
func (g *Graph) Clears(k FieldKey) []FieldKey { return g.clears[k] }

// Optional reports whether k has a visibility toggle.
func (g *Graph) Optional(k FieldKey) bool { return g.optional[k] }

// Derived reports whether k is auto-selected from its upstream fields
// rather than chosen by the user.
func (g *Graph) Derived(k FieldKey) bool {
	return !g.optional[k] && len(g.upstream[k]) > 0
}

// Downstream returns every field strictly downstream of k, in
// topological order.
func (g *Graph) Downstream(k FieldKey) []FieldKey {
	seen := map[FieldKey]bool{}
	var walk func(FieldKey)
	walk = func(f FieldKey) {
		for _, d := range g.dependents[f] {
			if !seen[d] {
				seen[d] = true
				walk(d)
			}
		}
	}
	walk(k)
	return g.sorted(seen)
}

// dependentsOf returns the union of direct dependents of keys in
// topological order.
func (g *Graph) dependentsOf(keys ...FieldKey) []FieldKey {
	set := map[FieldKey]bool{}
	for _, k := range keys {
		for _, d := range g.dependents[k] {
			set[d] = true
		}
	}
	return g.sorted(set)
}

func (g *Graph) sorted(set map[FieldKey]bool) []FieldKey {
	out := make([]FieldKey, 0, len(set))
	for _, k := range g.order {
		if set[k] {
			out = append(out, k)
		}
	}
	return out
}
