package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/ctxlog"
	"github.com/matthewbaird/adops/internal/event"
	"github.com/matthewbaird/adops/internal/nodeops"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

// ErrSessionNotFound is returned for an unknown or expired session id.
var ErrSessionNotFound = errors.New("editor session not found")

// Config wires a Manager to its collaborators.
type Config struct {
	Catalog     taxonomy.Fetcher
	Persister   Persister
	Loader      Loader
	Recorder    event.Recorder
	Graph       *taxonomy.Graph
	Locale      language.Tag
	MaxAge      time.Duration
	IdleTimeout time.Duration

	// Optional observers, e.g. metrics.
	LookupHook   taxonomy.LookupHook
	NodeObserver nodeops.Observer
	TreeOptions  []composition.Option
}

// Receipt acknowledges a persisted submission.
type Receipt struct {
	SessionID       string    `json:"session_id"`
	CampaignID      string    `json:"campaign_id"`
	EffectiveBudget int64     `json:"effective_budget"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Manager handles session creation, lookup, submission and cleanup.
type Manager struct {
	cfg      Config
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	if cfg.Graph == nil {
		cfg.Graph = taxonomy.DefaultGraph()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}
}

func (m *Manager) newSession(mode Mode, tree *composition.Tree) *Session {
	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		Mode:       mode,
		CreatedAt:  now,
		lastActive: now,
		tree:       tree,
		recorder:   m.cfg.Recorder,
		listeners:  make(map[int]func(nodeops.Notice)),
	}

	opts := []taxonomy.Option{taxonomy.WithLocale(m.cfg.Locale)}
	if m.cfg.LookupHook != nil {
		opts = append(opts, taxonomy.WithLookupHook(m.cfg.LookupHook))
	}
	s.fields = taxonomy.NewStore(m.cfg.Graph)
	s.resolver = taxonomy.NewResolver(s.fields, m.cfg.Catalog, opts...)
	s.visibility = taxonomy.NewVisibility(s.resolver)
	s.engine = nodeops.NewEngine(tree, s)
	if m.cfg.NodeObserver != nil {
		s.engine.SetObserver(m.cfg.NodeObserver)
	}
	return s
}

func (m *Manager) register(ctx context.Context, s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	p := event.SessionOpenedPayload{SessionID: s.ID, Mode: string(s.Mode)}
	if s.Mode == ModeEdit {
		p.CampaignID = s.CampaignID()
	}
	s.record(ctx, event.NewSessionOpened(p))
	ctxlog.FromContext(ctx).Info("editor: session opened", "session", s.ID, "mode", s.Mode, "campaign", s.CampaignID())
}

// Create opens a session for a new campaign with a default tree.
func (m *Manager) Create(ctx context.Context) *Session {
	s := m.newSession(ModeNew, composition.New(m.cfg.TreeOptions...))
	m.register(ctx, s)
	return s
}

// Open starts an edit session for a stored campaign. Stored taxonomy values
// are re-resolved against the catalog; values no longer offered are
// dropped. Lookup failures are logged and do not prevent opening.
func (m *Manager) Open(ctx context.Context, campaignID string) (*Session, error) {
	if m.cfg.Loader == nil {
		return nil, fmt.Errorf("open %s: %w", campaignID, ErrCampaignNotFound)
	}
	stored, err := m.cfg.Loader.Load(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", campaignID, err)
	}
	tree, err := composition.FromCampaign(stored.Campaign, m.cfg.TreeOptions...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", campaignID, err)
	}

	s := m.newSession(ModeEdit, tree)
	s.details = stored.Details
	if err := s.resolver.Hydrate(ctx, stored.Fields, stored.Visible); err != nil {
		ctxlog.FromContext(ctx).Warn("editor: hydrate lookups failed", "campaign", campaignID, "error", err)
	}
	m.register(ctx, s)
	return s, nil
}

// Get retrieves a session by ID. Expired and idle sessions are removed.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if m.stale(s) {
		m.remove(context.Background(), s, "expired")
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Discard closes a session without saving.
func (m *Manager) Discard(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	m.remove(ctx, s, "cancelled")
	return nil
}

// Submit validates and persists a session, then closes it. A failed
// validation or persist leaves the session open.
func (m *Manager) Submit(ctx context.Context, id string) (*Receipt, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	sub, err := s.Submission()
	if err != nil {
		return nil, err
	}
	if m.cfg.Persister == nil {
		return nil, errors.New("submit: no persister configured")
	}

	// Claim the session so a concurrent submit or discard sees it gone.
	m.mu.Lock()
	if cur, ok := m.sessions[s.ID]; !ok || cur != s {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, s.ID)
	m.mu.Unlock()

	if err := m.cfg.Persister.Persist(ctx, sub); err != nil {
		m.mu.Lock()
		if _, taken := m.sessions[s.ID]; !taken {
			m.sessions[s.ID] = s
		}
		m.mu.Unlock()
		return nil, fmt.Errorf("persisting campaign %s: %w", sub.CampaignID, err)
	}

	adSets, ads := 0, 0
	for _, as := range sub.Campaign.AdSets {
		adSets++
		ads += len(as.Ads)
	}
	s.record(ctx, event.NewCampaignSubmitted(event.CampaignSubmittedPayload{
		SessionID:       s.ID,
		CampaignID:      sub.CampaignID,
		Name:            sub.Campaign.Name,
		BudgetMode:      string(sub.Campaign.BudgetMode),
		EffectiveBudget: sub.EffectiveBudget,
		AdSets:          adSets,
		Ads:             ads,
		Owner:           sub.Details.Owner,
		ChangeType:      sub.Details.ChangeType,
		Description:     sub.Details.Description,
	}))
	ctxlog.FromContext(ctx).Info("editor: campaign submitted", "session", s.ID, "campaign", sub.CampaignID)

	return &Receipt{
		SessionID:       s.ID,
		CampaignID:      sub.CampaignID,
		EffectiveBudget: sub.EffectiveBudget,
		SubmittedAt:     sub.SubmittedAt,
	}, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions and returns how many.
func (m *Manager) Cleanup(ctx context.Context) int {
	m.mu.RLock()
	var stale []*Session
	for _, s := range m.sessions {
		if m.stale(s) {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		m.remove(ctx, s, "expired")
	}
	return len(stale)
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(ctx); n > 0 {
				ctxlog.FromContext(ctx).Info("editor: expired sessions removed", "count", n)
			}
		}
	}
}

func (m *Manager) stale(s *Session) bool {
	return s.IsExpired(m.cfg.MaxAge) || s.IsIdle(m.cfg.IdleTimeout)
}

func (m *Manager) remove(ctx context.Context, s *Session, reason string) {
	m.mu.Lock()
	_, ok := m.sessions[s.ID]
	delete(m.sessions, s.ID)
	m.mu.Unlock()
	if !ok {
		return
	}

	p := event.SessionDiscardedPayload{SessionID: s.ID, Reason: reason}
	if s.Mode == ModeEdit {
		p.CampaignID = s.CampaignID()
	}
	s.record(ctx, event.NewSessionDiscarded(p))
}
