package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

// ErrCampaignNotFound is returned by a Loader for an unknown campaign id.
var ErrCampaignNotFound = errors.New("campaign not found")

// Persister stores a validated submission. Storing a campaign id that
// already exists replaces it.
type Persister interface {
	Persist(ctx context.Context, sub *Submission) error
}

// Loader reads a stored campaign back for an edit session.
type Loader interface {
	Load(ctx context.Context, campaignID string) (*Stored, error)
}

// Stored is a campaign as read back from storage.
type Stored struct {
	Campaign *composition.Campaign
	Fields   map[taxonomy.FieldKey]string
	Visible  map[taxonomy.FieldKey]bool
	Details  Details
}

// MemoryRepository implements Persister and Loader in memory.
// Intended for demos and testing; no database required.
type MemoryRepository struct {
	mu   sync.RWMutex
	subs map[string]*Submission
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{subs: make(map[string]*Submission)}
}

func (r *MemoryRepository) Persist(_ context.Context, sub *Submission) error {
	cp := *sub
	snap, err := composition.FromCampaign(sub.Campaign)
	if err != nil {
		return err
	}
	cp.Campaign = snap.Snapshot().Campaign

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.CampaignID] = &cp
	return nil
}

func (r *MemoryRepository) Load(_ context.Context, campaignID string) (*Stored, error) {
	r.mu.RLock()
	sub, ok := r.subs[campaignID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrCampaignNotFound
	}

	tree, err := composition.FromCampaign(sub.Campaign)
	if err != nil {
		return nil, err
	}
	st := &Stored{
		Campaign: tree.Snapshot().Campaign,
		Fields:   map[taxonomy.FieldKey]string{},
		Visible:  map[taxonomy.FieldKey]bool{},
		Details:  sub.Details,
	}
	for k, v := range sub.Fields {
		if v != nil {
			st.Fields[k] = *v
		}
	}
	for k, v := range sub.Visible {
		st.Visible[k] = v
	}
	return st, nil
}

// Submissions returns how many campaigns are stored.
func (r *MemoryRepository) Submissions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
