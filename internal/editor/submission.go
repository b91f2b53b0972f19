package editor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

// Details is the free-form change record attached to a submission.
type Details struct {
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Hypothesis  string `json:"hypothesis,omitempty"`
	ChangeType  string `json:"change_type,omitempty"`
}

// Submission is the persisted representation of a session.
type Submission struct {
	SessionID       string                        `json:"session_id"`
	CampaignID      string                        `json:"campaign_id"`
	Fields          map[taxonomy.FieldKey]*string `json:"fields"`
	Visible         map[taxonomy.FieldKey]bool    `json:"visible"`
	Campaign        *composition.Campaign         `json:"campaign"`
	EffectiveBudget int64                         `json:"effective_budget"`
	Details         Details                       `json:"details"`
	SubmittedAt     time.Time                     `json:"submitted_at"`
}

// ValidationError reports the first required field left empty at submit
// time. Field is a dotted path such as "campaign.ad_sets[1].name".
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s is %s", e.Field, e.Rule)
}

// submitForm mirrors the required parts of a submission in the order they
// are checked.
type submitForm struct {
	Details  detailsForm  `json:"details"`
	Campaign campaignForm `json:"campaign"`
}

type detailsForm struct {
	Description string `json:"description" validate:"required"`
	Owner       string `json:"owner" validate:"required"`
}

type campaignForm struct {
	Name   string      `json:"name" validate:"required"`
	AdSets []adSetForm `json:"ad_sets" validate:"min=1,dive"`
}

type adSetForm struct {
	Name string   `json:"name" validate:"required"`
	Ads  []adForm `json:"ads" validate:"min=1,dive"`
}

type adForm struct {
	Name string `json:"name" validate:"required"`
}

// submitValidate is the validator instance for submissions. Field names
// are reported by their json tag.
var submitValidate *validator.Validate

func init() {
	submitValidate = validator.New()
	submitValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateSubmission checks required fields and returns a *ValidationError
// for the first one that is empty. Taxonomy fields are never required.
func validateSubmission(d Details, c *composition.Campaign) error {
	form := submitForm{
		Details: detailsForm{
			Description: strings.TrimSpace(d.Description),
			Owner:       strings.TrimSpace(d.Owner),
		},
		Campaign: campaignForm{Name: strings.TrimSpace(c.Name)},
	}
	for _, as := range c.AdSets {
		asf := adSetForm{Name: strings.TrimSpace(as.Name)}
		for _, ad := range as.Ads {
			asf.Ads = append(asf.Ads, adForm{Name: strings.TrimSpace(ad.Name)})
		}
		form.Campaign.AdSets = append(form.Campaign.AdSets, asf)
	}

	err := submitValidate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating submission: %w", err)
	}
	first := verrs[0]
	field := first.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return &ValidationError{Field: field, Rule: first.Tag()}
}
