package taxonomy

import (
	"errors"
	"fmt"

	"github.com/matthewbaird/adops/internal/types"
)

// Status is the lookup state of a field's option list.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// Field is the presentation view of one taxonomy field.
type Field struct {
	Key     FieldKey       `json:"key"`
	Value   *string        `json:"value"`
	Options []types.Entity `json:"options"`
	Visible bool           `json:"visible"`
	Status  Status         `json:"status"`
	Error   string         `json:"error,omitempty"`
}

// HasValue reports whether the field holds a non-empty value.
func (f Field) HasValue() bool { return f.Value != nil && *f.Value != "" }

// Option returns the option with the given id.
func (f Field) Option(id string) (types.Entity, bool) {
	for _, o := range f.Options {
		if o.ID == id {
			return o, true
		}
	}
	return types.Entity{}, false
}

func (f Field) clone() Field {
	out := f
	if f.Value != nil {
		v := *f.Value
		out.Value = &v
	}
	if f.Options != nil {
		out.Options = make([]types.Entity, len(f.Options))
		for i, o := range f.Options {
			out.Options[i] = o.Clone()
		}
	}
	return out
}

var (
	// ErrUnknownField is returned for a key outside the dependency graph.
	ErrUnknownField = errors.New("unknown taxonomy field")
	// ErrFieldHidden is returned when writing a hidden optional field.
	ErrFieldHidden = errors.New("field is hidden")
	// ErrDerivedField is returned when a derived field is set to a value
	// outside its resolved candidates.
	ErrDerivedField = errors.New("field is derived from its upstream fields")
	// ErrUnknownOption is returned when a value is not among loaded options.
	ErrUnknownOption = errors.New("value is not one of the field's options")
	// ErrNotToggleable is returned when toggling a field without a checkbox.
	ErrNotToggleable = errors.New("field has no visibility toggle")
)

// ResolutionError reports a failed option lookup. It is recovered locally:
// the field shows empty options with StatusError and nothing else is
// blocked.
type ResolutionError struct {
	Field FieldKey
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Field, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func strPtr(s string) *string { return &s }
