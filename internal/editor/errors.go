package editor

import (
	"errors"

	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/nodeops"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

// Error codes reported to API clients.
const (
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeResolution         = "RESOLUTION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorCode classifies an error returned by a session or the manager.
func ErrorCode(err error) string {
	var (
		iv   *composition.InvariantViolation
		verr *ValidationError
		rerr *taxonomy.ResolutionError
	)
	switch {
	case errors.As(err, &iv):
		return CodeInvariantViolation
	case errors.As(err, &verr):
		return CodeValidation
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrCampaignNotFound),
		errors.Is(err, composition.ErrNodeNotFound):
		return CodeNotFound
	case errors.As(err, &rerr):
		return CodeResolution
	case errors.Is(err, taxonomy.ErrUnknownField),
		errors.Is(err, taxonomy.ErrFieldHidden),
		errors.Is(err, taxonomy.ErrDerivedField),
		errors.Is(err, taxonomy.ErrUnknownOption),
		errors.Is(err, taxonomy.ErrNotToggleable),
		errors.Is(err, composition.ErrWrongKind),
		errors.Is(err, composition.ErrInvalidBudget),
		errors.Is(err, composition.ErrInvalidBudgetMode),
		errors.Is(err, composition.ErrInvalidCTA),
		errors.Is(err, nodeops.ErrUnknownAction):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}
