// Package types provides the catalog shapes shared by the taxonomy resolver,
// the catalog implementations and the wire protocol. These are option items
// offered to the editor, not the editor's own state.
package types

// Parent reference keys carried in Entity.ParentRefs.
const (
	RefBrand    = "brand_id"
	RefPlatform = "platform_id"
	RefAccount  = "account_id"
	RefCampaign = "campaign_id"
	RefAdGroup  = "ad_group_id"
)

// UntitledCreative is the display name for a creative without titles.
const UntitledCreative = "Untitled creative"

// Entity is a selectable option item. ParentRefs records the ids of the
// records it belongs to, e.g. an Account carries brand_id and platform_id.
type Entity struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	ParentRefs map[string]string `json:"parent_refs,omitempty" yaml:"parent_refs,omitempty"`
}

// Ref returns the parent reference stored under key, or "".
func (e Entity) Ref(key string) string {
	if e.ParentRefs == nil {
		return ""
	}
	return e.ParentRefs[key]
}

// Clone returns a copy that shares no maps with e.
func (e Entity) Clone() Entity {
	out := Entity{ID: e.ID, Name: e.Name}
	if len(e.ParentRefs) > 0 {
		out.ParentRefs = make(map[string]string, len(e.ParentRefs))
		for k, v := range e.ParentRefs {
			out.ParentRefs[k] = v
		}
	}
	return out
}

// Account is an ad account owned by a brand on one platform.
type Account struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	BrandID    string `json:"brand_id" yaml:"brand_id"`
	PlatformID string `json:"platform_id" yaml:"platform_id"`
}

// Entity converts the account into an option item.
func (a Account) Entity() Entity {
	return Entity{
		ID:   a.ID,
		Name: a.Name,
		ParentRefs: map[string]string{
			RefBrand:    a.BrandID,
			RefPlatform: a.PlatformID,
		},
	}
}

// Creative is a stored creative. Its display name is its first title.
type Creative struct {
	ID        string   `json:"id" yaml:"id"`
	AdGroupID string   `json:"ad_group_id" yaml:"ad_group_id"`
	Titles    []string `json:"titles" yaml:"titles"`
}

// Title returns the first non-empty title, or UntitledCreative.
func (c Creative) Title() string {
	for _, t := range c.Titles {
		if t != "" {
			return t
		}
	}
	return UntitledCreative
}

// Entity converts the creative into an option item.
func (c Creative) Entity() Entity {
	e := Entity{ID: c.ID, Name: c.Title()}
	if c.AdGroupID != "" {
		e.ParentRefs = map[string]string{RefAdGroup: c.AdGroupID}
	}
	return e
}
