package composition

// Selected returns the id of the node under the cursor.
func (t *Tree) Selected() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// Select moves the cursor. Tree data is never modified.
func (t *Tree) Select(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.locate(id); !ok {
		return notFound(id)
	}
	t.selected = id
	return nil
}

// Advance moves the cursor one level down to the first child, expanding
// the node it leaves. On an ad it does nothing. It returns the cursor and
// whether it moved.
func (t *Tree) Advance() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(t.selected)
	if !ok {
		t.selected = t.campaign.ID
		return t.selected, true
	}

	switch loc.kind {
	case KindCampaign:
		t.expanded[t.campaign.ID] = true
		t.selected = t.campaign.AdSets[0].ID
	case KindAdSet:
		as := t.campaign.AdSets[loc.adSet]
		t.expanded[t.campaign.ID] = true
		t.expanded[as.ID] = true
		t.selected = as.Ads[0].ID
	default:
		return t.selected, false
	}
	return t.selected, true
}

// IsLastStep reports whether the cursor is on an ad.
func (t *Tree) IsLastStep() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(t.selected)
	return ok && loc.kind == KindAd
}

// Expand opens a campaign or ad set.
func (t *Tree) Expand(id string) error { return t.setExpanded(id, func(bool) bool { return true }) }

// Collapse closes a campaign or ad set.
func (t *Tree) Collapse(id string) error { return t.setExpanded(id, func(bool) bool { return false }) }

// Toggle flips a campaign or ad set between expanded and collapsed.
func (t *Tree) Toggle(id string) error { return t.setExpanded(id, func(cur bool) bool { return !cur }) }

func (t *Tree) setExpanded(id string, next func(bool) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.locate(id)
	if !ok {
		return notFound(id)
	}
	if loc.kind == KindAd {
		return wrongKind("expand", loc.kind)
	}
	if next(t.expanded[id]) {
		t.expanded[id] = true
	} else {
		delete(t.expanded, id)
	}
	return nil
}

// IsExpanded reports whether a node is expanded.
func (t *Tree) IsExpanded(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expanded[id]
}
