package composition

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound is returned for an id not present in the tree.
	ErrNodeNotFound = errors.New("node not found")
	// ErrWrongKind is returned when an operation targets the wrong level.
	ErrWrongKind = errors.New("operation not supported for node kind")
	// ErrInvalidBudget is returned for a negative budget.
	ErrInvalidBudget = errors.New("budget must not be negative")
	// ErrInvalidBudgetMode is returned for an unknown budget mode.
	ErrInvalidBudgetMode = errors.New("unknown budget mode")
	// ErrInvalidCTA is returned for an unknown call to action.
	ErrInvalidCTA = errors.New("unknown call to action")
)

// InvariantViolation rejects a structural edit that would leave a node
// without children. The tree is unchanged when it is returned.
type InvariantViolation struct {
	Op     string
	NodeID string
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.NodeID, e.Reason)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
}

func wrongKind(op string, kind NodeKind) error {
	return fmt.Errorf("%s on %s: %w", op, kind, ErrWrongKind)
}
