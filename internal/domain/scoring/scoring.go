package scoring

import (
	"fmt"

	"github.com/okian/paddock/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Outcome is the result of scoring one pick.
type Outcome struct {
	Points     int
	Margin     decimal.NullDecimal
	ExactMatch bool
	Details    model.ScoreDetails
	// Warning is set when a value could not be parsed; the pick then scores zero.
	Warning *DataQualityWarning
}

func (o *Outcome) warn(w *DataQualityWarning) {
	o.Points = 0
	o.ExactMatch = false
	o.Margin = decimal.NullDecimal{}
	o.Warning = w
	o.Details.Warning = w.Error()
}

// Values returns the (points, margin, exact_match) triple.
func (o Outcome) Values() model.ScoreValues {
	return model.ScoreValues{Points: o.Points, Margin: o.Margin, ExactMatch: o.ExactMatch}
}

// Label classifies the outcome for metrics: exact, partial, miss or warning.
func (o Outcome) Label() string {
	switch {
	case o.Warning != nil:
		return "warning"
	case o.ExactMatch:
		return "exact"
	case o.Points > 0:
		return "partial"
	default:
		return "miss"
	}
}

// Evaluate dispatches on the rule's strategy.
func Evaluate(rule Rule, predicted, actual string) (Outcome, error) {
	switch rule.Strategy {
	case Categorical:
		return ScoreCategorical(rule, predicted, actual), nil
	case Numeric:
		return ScoreNumeric(rule, predicted, actual), nil
	default:
		return Outcome{}, fmt.Errorf("%w: %s: unknown strategy %q", ErrInvalidRule, rule.PropType, rule.Strategy)
	}
}

// ValidateActual checks that a result value fits the rule's value space.
// It returns nil or a *DataQualityWarning for the actual side.
func ValidateActual(rule Rule, actual string) error {
	v := extractValue(actual, rule.ValueKeys)
	switch rule.Strategy {
	case Numeric:
		if _, err := parseNumber(v); err != nil {
			return &DataQualityWarning{PropType: rule.PropType, Side: SideActual, Value: actual, Reason: err.Error()}
		}
	default:
		if normalizeLabel(v) == "" {
			return &DataQualityWarning{PropType: rule.PropType, Side: SideActual, Value: actual, Reason: errEmptyValue.Error()}
		}
	}
	return nil
}
