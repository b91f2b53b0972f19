package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DomainEvent carries the canonical shape of every editor event.
type DomainEvent struct {
	ID         string
	EventType  string
	OccurredAt time.Time
	SessionID  string
	CampaignID string
	Summary    string
	Category   string // "session", "structure", "submission"
	Payload    json.RawMessage
}

// Event types.
const (
	TypeSessionOpened     = "session_opened"
	TypeSessionDiscarded  = "session_discarded"
	TypeNodeOperation     = "node_operation"
	TypeNodeOperationFail = "node_operation_rejected"
	TypeCampaignSubmitted = "campaign_submitted"
)

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ── Session events ───────────────────────────────────────────────────────────

// SessionOpenedPayload carries event-specific data for SessionOpened.
type SessionOpenedPayload struct {
	SessionID  string `json:"session_id"`
	CampaignID string `json:"campaign_id"`
	Mode       string `json:"mode"` // "new" or "edit"
}

func NewSessionOpened(p SessionOpenedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeSessionOpened,
		OccurredAt: time.Now(),
		SessionID:  p.SessionID,
		CampaignID: p.CampaignID,
		Summary:    fmt.Sprintf("Editor session %s opened (%s)", short(p.SessionID), p.Mode),
		Category:   "session",
		Payload:    mustJSON(p),
	}
}

// SessionDiscardedPayload carries event-specific data for SessionDiscarded.
type SessionDiscardedPayload struct {
	SessionID  string `json:"session_id"`
	CampaignID string `json:"campaign_id"`
	Reason     string `json:"reason"` // "cancelled" or "expired"
}

func NewSessionDiscarded(p SessionDiscardedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeSessionDiscarded,
		OccurredAt: time.Now(),
		SessionID:  p.SessionID,
		CampaignID: p.CampaignID,
		Summary:    fmt.Sprintf("Editor session %s discarded: %s", short(p.SessionID), p.Reason),
		Category:   "session",
		Payload:    mustJSON(p),
	}
}

// ── Structure events ─────────────────────────────────────────────────────────

// NodeOperationPayload carries event-specific data for node operations.
type NodeOperationPayload struct {
	SessionID  string `json:"session_id"`
	CampaignID string `json:"campaign_id"`
	Action     string `json:"action"`
	NodeID     string `json:"node_id"`
	Kind       string `json:"kind,omitempty"`
	Created    string `json:"created,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewNodeOperation records an applied node operation, or a rejected one
// when p.Error is set.
func NewNodeOperation(p NodeOperationPayload) DomainEvent {
	evt := DomainEvent{
		ID:         newID(),
		EventType:  TypeNodeOperation,
		OccurredAt: time.Now(),
		SessionID:  p.SessionID,
		CampaignID: p.CampaignID,
		Summary:    fmt.Sprintf("%s on %s %s", p.Action, p.Kind, short(p.NodeID)),
		Category:   "structure",
		Payload:    mustJSON(p),
	}
	if p.Error != "" {
		evt.EventType = TypeNodeOperationFail
		evt.Summary = fmt.Sprintf("%s on %s rejected: %s", p.Action, short(p.NodeID), p.Error)
	}
	return evt
}

// ── Submission events ────────────────────────────────────────────────────────

// CampaignSubmittedPayload carries event-specific data for CampaignSubmitted.
type CampaignSubmittedPayload struct {
	SessionID       string `json:"session_id"`
	CampaignID      string `json:"campaign_id"`
	Name            string `json:"name"`
	BudgetMode      string `json:"budget_mode"`
	EffectiveBudget int64  `json:"effective_budget"`
	AdSets          int    `json:"ad_sets"`
	Ads             int    `json:"ads"`
	Owner           string `json:"owner"`
	ChangeType      string `json:"change_type,omitempty"`
	Description     string `json:"description"`
}

func NewCampaignSubmitted(p CampaignSubmittedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeCampaignSubmitted,
		OccurredAt: time.Now(),
		SessionID:  p.SessionID,
		CampaignID: p.CampaignID,
		Summary:    fmt.Sprintf("Campaign %q submitted by %s", p.Name, p.Owner),
		Category:   "submission",
		Payload:    mustJSON(p),
	}
}
