// Package wire defines the WebSocket protocol of an editor session.
package wire

import (
	"encoding/json"

	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

// ── Client → Server messages ────────────────────────────────────────────────

// Client message types.
const (
	TypeSetValue      = "set_value"
	TypeSetVisible    = "set_visible"
	TypeSetDetails    = "set_details"
	TypeNodeOp        = "node_op"
	TypeSelect        = "select"
	TypeAdvance       = "advance"
	TypeToggle        = "toggle"
	TypeRename        = "rename"
	TypeSetBudget     = "set_budget"
	TypeSetBudgetMode = "set_budget_mode"
	TypeUpdateAd      = "update_ad"
	TypeSubmit        = "submit"
	TypePing          = "ping"
)

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id"` // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// SetValueData is the payload for "set_value". A null value clears the field.
type SetValueData struct {
	Field taxonomy.FieldKey `json:"field"`
	Value *string           `json:"value"`
}

// SetVisibleData is the payload for "set_visible".
type SetVisibleData struct {
	Field   taxonomy.FieldKey `json:"field"`
	Visible bool              `json:"visible"`
}

// NodeOpData is the payload for "node_op".
type NodeOpData struct {
	Action string `json:"action"`
	NodeID string `json:"node_id"`
}

// NodeData is the payload for "select" and "toggle".
type NodeData struct {
	NodeID string `json:"node_id"`
}

// RenameData is the payload for "rename".
type RenameData struct {
	NodeID string `json:"node_id"`
	Name   string `json:"name"`
}

// SetBudgetData is the payload for "set_budget". Amount is in minor units.
type SetBudgetData struct {
	NodeID string `json:"node_id"`
	Amount int64  `json:"amount"`
}

// SetBudgetModeData is the payload for "set_budget_mode".
type SetBudgetModeData struct {
	Mode composition.BudgetMode `json:"mode"`
}

// UpdateAdData is the payload for "update_ad".
type UpdateAdData struct {
	NodeID string `json:"node_id"`
	composition.AdContent
}

// ── Server → Client messages ────────────────────────────────────────────────

// Server message types.
const (
	TypeSnapshot  = "snapshot"
	TypeField     = "field"
	TypeNotice    = "notice"
	TypeError     = "error"
	TypeSubmitted = "submitted"
	TypePong      = "pong"
)

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// ErrorData carries an error message. Field is set for validation errors.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
