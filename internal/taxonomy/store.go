package taxonomy

import (
	"sync"

	"github.com/matthewbaird/adops/internal/types"
)

// Listener receives a copy of a field after a mutation commits.
type Listener func(Field)

type subscription struct {
	keys     map[FieldKey]bool // nil means every field
	listener Listener
}

type fieldState struct {
	Field
	gen     uint64
	pending *string
}

// Store is the selection store: the value, option list, visibility and
// lookup status of every field in a Graph. Every lookup issued for a field
// is tagged with the field's generation; a landing response whose
// generation is no longer current is discarded.
type Store struct {
	graph *Graph

	mu     sync.Mutex
	fields map[FieldKey]*fieldState
	subs   map[int]subscription
	nextID int
}

// NewStore creates a store with every field empty. Optional fields start
// hidden; fields without a toggle are always visible.
func NewStore(g *Graph) *Store {
	s := &Store{
		graph:  g,
		fields: make(map[FieldKey]*fieldState, len(g.order)),
		subs:   make(map[int]subscription),
	}
	for _, k := range g.order {
		s.fields[k] = &fieldState{Field: Field{
			Key:     k,
			Visible: !g.Optional(k),
			Status:  StatusIdle,
		}}
	}
	return s
}

// Graph returns the dependency graph the store was built from.
func (s *Store) Graph() *Graph { return s.graph }

// Get returns a copy of the field k.
func (s *Store) Get(k FieldKey) (Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.fields[k]
	if !ok {
		return Field{}, false
	}
	return st.Field.clone(), true
}

// Snapshot returns copies of every field in topological order.
func (s *Store) Snapshot() []Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Field, 0, len(s.graph.order))
	for _, k := range s.graph.order {
		out = append(out, s.fields[k].Field.clone())
	}
	return out
}

// Subscribe registers l for changes to keys (every field when keys is
// empty). The returned function removes the subscription.
func (s *Store) Subscribe(keys []FieldKey, l Listener) (unsubscribe func()) {
	sub := subscription{listener: l}
	if len(keys) > 0 {
		sub.keys = make(map[FieldKey]bool, len(keys))
		for _, k := range keys {
			sub.keys[k] = true
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Serialize returns the submit-time value of every field. Hidden fields
// are always nil, and a derived field is nil unless all of its upstream
// fields serialize to a value.
func (s *Store) Serialize() map[FieldKey]*string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[FieldKey]*string, len(s.graph.order))
	for _, k := range s.graph.order {
		st := s.fields[k]
		if !st.Visible || !st.HasValue() {
			out[k] = nil
			continue
		}
		if s.graph.Derived(k) {
			missing := false
			for _, up := range s.graph.Upstream(k) {
				if out[up] == nil {
					missing = true
					break
				}
			}
			if missing {
				out[k] = nil
				continue
			}
		}
		out[k] = strPtr(*st.Value)
	}
	return out
}

// txn collects the fields touched by one mutation so listeners can be
// notified after the lock is released.
type txn struct {
	s       *Store
	changed map[FieldKey]bool
}

func (tx *txn) field(k FieldKey) *fieldState {
	tx.changed[k] = true
	return tx.s.fields[k]
}

// invalidate clears a field's value and options, resets its status and
// advances its generation so in-flight lookups are discarded.
func (tx *txn) invalidate(k FieldKey) {
	st := tx.field(k)
	st.Value = nil
	st.Options = nil
	st.Status = StatusIdle
	st.Error = ""
	st.pending = nil
	st.gen++
}

// clearValue drops the value and advances the generation but keeps the
// option list.
func (tx *txn) clearValue(k FieldKey) {
	st := tx.field(k)
	st.Value = nil
	st.pending = nil
	st.gen++
	if st.Status == StatusLoading {
		st.Status = StatusIdle
	}
}

func (s *Store) mutate(fn func(tx *txn)) {
	s.mu.Lock()
	tx := &txn{s: s, changed: map[FieldKey]bool{}}
	fn(tx)

	type delivery struct {
		field     Field
		listeners []Listener
	}
	var out []delivery
	for _, k := range s.graph.order {
		if !tx.changed[k] {
			continue
		}
		d := delivery{field: s.fields[k].Field.clone()}
		for _, sub := range s.subs {
			if sub.keys == nil || sub.keys[k] {
				d.listeners = append(d.listeners, sub.listener)
			}
		}
		out = append(out, d)
	}
	s.mu.Unlock()

	for _, d := range out {
		for _, l := range d.listeners {
			l(d.field)
		}
	}
}

// write stores v into k and invalidates every field strictly downstream.
func (s *Store) write(k FieldKey, v *string) {
	s.mutate(func(tx *txn) {
		st := tx.field(k)
		st.Value = v
		st.pending = nil
		for _, d := range s.graph.Downstream(k) {
			tx.invalidate(d)
		}
	})
}

// beginLookup reads the values of k's upstream fields and, if all of them
// are set, marks k as loading in the same mutation. It returns the
// generation the lookup must present when it lands together with the
// upstream values the lookup is built on. When an upstream field is empty,
// k is emptied instead and ok is false.
func (s *Store) beginLookup(k FieldKey) (gen uint64, up map[FieldKey]string, ok bool) {
	s.mutate(func(tx *txn) {
		up = make(map[FieldKey]string)
		for _, u := range s.graph.Upstream(k) {
			f := s.fields[u]
			if !f.HasValue() {
				tx.reset(k)
				up = nil
				return
			}
			up[u] = *f.Value
		}
		st := tx.field(k)
		st.gen++
		st.Status = StatusLoading
		st.Error = ""
		gen, ok = st.gen, true
	})
	return gen, up, ok
}

// selector picks the value a field takes when its options land. current
// is the value before the lookup, pending a value awaiting rehydration.
type selector func(options []types.Entity, current, pending *string, visible bool) *string

// completeLookup applies a landed lookup. It returns applied=false when the
// generation is stale, and changed=true when the field's value differs from
// its value before the lookup.
func (s *Store) completeLookup(k FieldKey, gen uint64, options []types.Entity, pick selector) (applied, changed bool) {
	s.mutate(func(tx *txn) {
		st := s.fields[k]
		if st.gen != gen {
			return
		}
		st = tx.field(k)
		applied = true

		prev := st.Value
		next := pick(options, st.Value, st.pending, st.Visible)
		st.Options = options
		st.Status = StatusIdle
		st.Error = ""
		st.Value = next
		if next != nil && st.pending != nil && *next == *st.pending {
			st.pending = nil
		}
		changed = !sameValue(prev, next)
	})
	return applied, changed
}

// failLookup records a lookup failure on k if gen is still current. A root
// field keeps its value so its dependents can still resolve; any other
// field parks its value as pending so a later lookup can restore it.
func (s *Store) failLookup(k FieldKey, gen uint64, err error) bool {
	applied := false
	s.mutate(func(tx *txn) {
		if s.fields[k].gen != gen {
			return
		}
		st := tx.field(k)
		applied = true
		st.Options = nil
		st.Status = StatusError
		st.Error = err.Error()
		if len(s.graph.Upstream(k)) == 0 {
			return
		}
		if st.Value != nil && st.pending == nil {
			st.pending = st.Value
		}
		st.Value = nil
	})
	return applied
}

// reset empties k because one of its upstream fields has no value. A
// pending rehydration value survives.
func (tx *txn) reset(k FieldKey) {
	st := tx.s.fields[k]
	if st.Value == nil && st.Options == nil && st.Status == StatusIdle {
		return
	}
	pending := st.pending
	tx.invalidate(k)
	st.pending = pending
}

// hydrate seeds values for an edit session. Root fields take their values
// directly; other fields keep them pending until a lookup confirms them.
func (s *Store) hydrate(values map[FieldKey]string, visible map[FieldKey]bool) {
	s.mutate(func(tx *txn) {
		for _, k := range s.graph.order {
			st := tx.field(k)
			if s.graph.Optional(k) {
				st.Visible = visible[k]
			}
			v, ok := values[k]
			if !ok || v == "" || !st.Visible {
				continue
			}
			if len(s.graph.Upstream(k)) == 0 {
				st.Value = strPtr(v)
			} else {
				st.pending = strPtr(v)
			}
		}
	})
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
