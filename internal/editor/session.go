// Package editor owns campaign editing sessions: the taxonomy fields, the
// composition tree and the change details of one campaign being created or
// edited, from opening through submission.
package editor

import (
	"context"
	"sync"
	"time"

	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/ctxlog"
	"github.com/matthewbaird/adops/internal/event"
	"github.com/matthewbaird/adops/internal/nodeops"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

// Mode tells whether a session creates a campaign or edits a stored one.
type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
)

// Session holds the editor state of one campaign. Field lookups may run
// concurrently with other edits; the store and tree guard themselves.
type Session struct {
	ID        string
	Mode      Mode
	CreatedAt time.Time

	fields     *taxonomy.Store
	resolver   *taxonomy.Resolver
	visibility *taxonomy.Visibility
	tree       *composition.Tree
	engine     *nodeops.Engine
	recorder   event.Recorder

	mu         sync.Mutex
	details    Details
	lastActive time.Time
	listeners  map[int]func(nodeops.Notice)
	nextID     int
}

// View is a read-only rendering of a session.
type View struct {
	ID           string               `json:"id"`
	Mode         Mode                 `json:"mode"`
	CampaignID   string               `json:"campaign_id"`
	Fields       []taxonomy.Field     `json:"fields"`
	Tree         composition.Snapshot `json:"tree"`
	Details      Details              `json:"details"`
	CreatedAt    time.Time            `json:"created_at"`
	LastActiveAt time.Time            `json:"last_active_at"`
}

// Fields returns the session's selection store. Use it to read and
// subscribe; write through SetValue and SetVisible.
func (s *Session) Fields() *taxonomy.Store { return s.fields }

// Tree returns the session's composition tree.
func (s *Session) Tree() *composition.Tree { return s.tree }

// CampaignID returns the id the campaign is stored under.
func (s *Session) CampaignID() string { return s.tree.CampaignID() }

// SetValue changes a taxonomy field and resolves everything downstream.
func (s *Session) SetValue(ctx context.Context, key taxonomy.FieldKey, value *string) error {
	s.Touch()
	return s.resolver.SetValue(ctx, key, value)
}

// SetVisible shows or hides an optional taxonomy field.
func (s *Session) SetVisible(ctx context.Context, key taxonomy.FieldKey, visible bool) error {
	s.Touch()
	return s.visibility.SetVisible(ctx, key, visible)
}

// Details returns the change details.
func (s *Session) Details() Details {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.details
}

// SetDetails replaces the change details.
func (s *Session) SetDetails(d Details) {
	s.mu.Lock()
	s.details = d
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// ApplyNodeOp runs a context-menu action on the tree and records it.
func (s *Session) ApplyNodeOp(ctx context.Context, action nodeops.Action, nodeID string) (nodeops.Result, error) {
	s.Touch()
	res, err := s.engine.Apply(ctx, action, nodeID)

	p := event.NodeOperationPayload{
		SessionID: s.ID,
		Action:    string(action),
		NodeID:    nodeID,
		Kind:      string(res.Kind),
		Created:   res.Created,
	}
	if s.Mode == ModeEdit {
		p.CampaignID = s.CampaignID()
	}
	if err != nil {
		p.Error = err.Error()
	}
	s.record(ctx, event.NewNodeOperation(p))
	return res, err
}

// Notify fans a notice out to every listener. It makes the session the
// notifier of its node operation engine.
func (s *Session) Notify(_ context.Context, n nodeops.Notice) {
	s.mu.Lock()
	ls := make([]func(nodeops.Notice), 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(n)
	}
}

// OnNotice registers fn for notices. The returned function removes it.
func (s *Session) OnNotice(fn func(nodeops.Notice)) (remove func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// IsExpired returns true if the session has exceeded the given max age.
func (s *Session) IsExpired(maxAge time.Duration) bool {
	return time.Since(s.CreatedAt) > maxAge
}

// IsIdle returns true if the session has been idle longer than the timeout.
func (s *Session) IsIdle(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActive) > timeout
}

// View renders the current session state.
func (s *Session) View() View {
	s.mu.Lock()
	details, last := s.details, s.lastActive
	s.mu.Unlock()

	return View{
		ID:           s.ID,
		Mode:         s.Mode,
		CampaignID:   s.CampaignID(),
		Fields:       s.fields.Snapshot(),
		Tree:         s.tree.Snapshot(),
		Details:      details,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: last,
	}
}

// Submission validates the session and builds its persisted form. Hidden
// taxonomy fields are always null; lookup failures never block it.
func (s *Session) Submission() (*Submission, error) {
	snap := s.tree.Snapshot()
	details := s.Details()
	if err := validateSubmission(details, snap.Campaign); err != nil {
		return nil, err
	}

	visible := map[taxonomy.FieldKey]bool{}
	graph := s.fields.Graph()
	for _, f := range s.fields.Snapshot() {
		if graph.Optional(f.Key) {
			visible[f.Key] = f.Visible
		}
	}

	return &Submission{
		SessionID:       s.ID,
		CampaignID:      snap.Campaign.ID,
		Fields:          s.fields.Serialize(),
		Visible:         visible,
		Campaign:        snap.Campaign,
		EffectiveBudget: snap.EffectiveBudget,
		Details:         details,
		SubmittedAt:     time.Now().UTC(),
	}, nil
}

func (s *Session) record(ctx context.Context, evt event.DomainEvent) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, evt); err != nil {
		ctxlog.FromContext(ctx).Warn("editor: recording event failed", "event_type", evt.EventType, "error", err)
	}
}
