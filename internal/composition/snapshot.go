package composition

// Snapshot is a read-only copy of the tree for rendering and submission.
type Snapshot struct {
	Campaign        *Campaign `json:"campaign"`
	EffectiveBudget int64     `json:"effective_budget"`
	Selected        string    `json:"selected"`
	SelectedKind    NodeKind  `json:"selected_kind"`
	Expanded        []string  `json:"expanded"`
	LastStep        bool      `json:"last_step"`
}

// Snapshot returns a deep copy of the tree state. Expanded ids are listed
// in tree order.
func (t *Tree) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	loc, _ := t.locate(t.selected)
	s := Snapshot{
		Campaign:        t.campaign.clone(),
		EffectiveBudget: t.campaign.effectiveBudget(),
		Selected:        t.selected,
		SelectedKind:    loc.kind,
		LastStep:        loc.kind == KindAd,
		Expanded:        []string{},
	}
	for _, id := range t.ids() {
		if t.expanded[id] {
			s.Expanded = append(s.Expanded, id)
		}
	}
	return s
}
