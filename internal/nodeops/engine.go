// Package nodeops dispatches context-menu actions against a composition
// tree and reports their outcome to a Notifier.
package nodeops

import (
	"context"
	"errors"
	"fmt"

	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/ctxlog"
)

// Action is a context-menu operation on a node.
type Action string

const (
	ActionDuplicate Action = "duplicate"
	ActionDelete    Action = "delete"
	ActionAddChild  Action = "add_child"
)

// Outcomes passed to an Observer.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// ErrUnknownAction is returned for an action the engine does not handle.
var ErrUnknownAction = errors.New("unknown node action")

// Level classifies a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a user-facing message about an operation.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives notices, e.g. to show a toast.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Observer is called after every dispatched action.
type Observer func(action Action, outcome string)

// Result describes a successful operation.
type Result struct {
	Action   Action               `json:"action"`
	NodeID   string               `json:"node_id"`
	Kind     composition.NodeKind `json:"kind"`
	Created  string               `json:"created,omitempty"`
	Selected string               `json:"selected"`
}

// Engine applies node actions to one tree.
type Engine struct {
	tree     *composition.Tree
	notifier Notifier
	observe  Observer
}

// NewEngine creates an engine. A nil notifier discards notices.
func NewEngine(tree *composition.Tree, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Notice) {})
	}
	return &Engine{tree: tree, notifier: notifier}
}

// SetObserver installs an observer for dispatched actions.
func (e *Engine) SetObserver(o Observer) { e.observe = o }

// Apply runs action on nodeID. Failures leave the tree unchanged, are
// reported to the notifier with LevelError and returned.
func (e *Engine) Apply(ctx context.Context, action Action, nodeID string) (Result, error) {
	logger := ctxlog.FromContext(ctx).With("component", "nodeops", "action", string(action), "node", nodeID)

	res, msg, err := e.apply(action, nodeID)
	if err != nil {
		outcome := OutcomeError
		var iv *composition.InvariantViolation
		if errors.As(err, &iv) {
			outcome = OutcomeRejected
			msg = capitalize(iv.Reason) + "."
		} else {
			msg = err.Error()
		}
		logger.Info("node operation rejected", "error", err)
		e.notifier.Notify(ctx, Notice{Level: LevelError, Message: msg})
		e.record(action, outcome)
		return Result{}, err
	}

	logger.Debug("node operation applied", "created", res.Created, "selected", res.Selected)
	e.notifier.Notify(ctx, Notice{Level: LevelSuccess, Message: msg})
	e.record(action, OutcomeOK)
	return res, nil
}

func (e *Engine) apply(action Action, nodeID string) (Result, string, error) {
	kind, ok := e.tree.Find(nodeID)
	if !ok {
		return Result{}, "", fmt.Errorf("%s: %w: %q", action, composition.ErrNodeNotFound, nodeID)
	}
	res := Result{Action: action, NodeID: nodeID, Kind: kind}

	var msg string
	switch action {
	case ActionDuplicate:
		id, err := e.tree.Duplicate(nodeID)
		if err != nil {
			return Result{}, "", err
		}
		res.Created = id
		msg = label(kind) + " duplicated."

	case ActionDelete:
		parent, _ := e.tree.ParentOf(nodeID)
		wasSelected := e.selectedWithin(nodeID)
		var err error
		switch kind {
		case composition.KindAdSet:
			err = e.tree.RemoveAdSet(nodeID)
		case composition.KindAd:
			err = e.tree.RemoveAd(nodeID)
		default:
			err = fmt.Errorf("delete %s: %w", kind, composition.ErrWrongKind)
		}
		if err != nil {
			return Result{}, "", err
		}
		if wasSelected {
			if err := e.tree.Select(parent); err != nil {
				return Result{}, "", err
			}
		}
		msg = label(kind) + " removed."

	case ActionAddChild:
		var (
			id  string
			err error
		)
		switch kind {
		case composition.KindCampaign:
			id, err = e.tree.AddAdSet(nodeID)
		case composition.KindAdSet:
			id, err = e.tree.AddAd(nodeID)
		default:
			err = fmt.Errorf("add child to %s: %w", kind, composition.ErrWrongKind)
		}
		if err != nil {
			return Result{}, "", err
		}
		if err := e.tree.Expand(nodeID); err != nil {
			return Result{}, "", err
		}
		if err := e.tree.Select(id); err != nil {
			return Result{}, "", err
		}
		res.Created = id
		childKind, _ := e.tree.Find(id)
		msg = label(childKind) + " added."

	default:
		return Result{}, "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	res.Selected = e.tree.Selected()
	return res, msg, nil
}

// selectedWithin reports whether the cursor is on id or one of its children.
func (e *Engine) selectedWithin(id string) bool {
	sel := e.tree.Selected()
	if sel == id {
		return true
	}
	parent, ok := e.tree.ParentOf(sel)
	return ok && parent == id
}

func (e *Engine) record(action Action, outcome string) {
	if e.observe != nil {
		e.observe(action, outcome)
	}
}

func label(kind composition.NodeKind) string {
	switch kind {
	case composition.KindCampaign:
		return "Campaign"
	case composition.KindAdSet:
		return "Ad set"
	default:
		return "Ad"
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
