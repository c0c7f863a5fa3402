package scoring

import (
	"github.com/okian/paddock/internal/domain/model"
	"github.com/shopspring/decimal"
)

// ScoreNumeric scores by proximity: an exact hit earns ExactPoints, any other
// margin earns MaxMarginPoints scaled by the rule's decay curve, rounded half-up.
// Unparseable values on either side score zero with a DataQualityWarning.
func ScoreNumeric(rule Rule, predicted, actual string) Outcome {
	out := Outcome{Details: model.ScoreDetails{
		Strategy:    string(Numeric),
		Predicted:   predicted,
		Actual:      actual,
		MarginUnit:  rule.MarginUnit,
		Decay:       string(rule.Decay.Kind),
		RuleVersion: rule.Version,
	}}

	a, err := parseNumber(extractValue(actual, rule.ValueKeys))
	if err != nil {
		out.warn(&DataQualityWarning{PropType: rule.PropType, Side: SideActual, Value: actual, Reason: err.Error()})
		return out
	}
	out.Details.NormalizedActual = a.String()

	p, err := parseNumber(extractValue(predicted, rule.ValueKeys))
	if err != nil {
		out.warn(&DataQualityWarning{PropType: rule.PropType, Side: SidePredicted, Value: predicted, Reason: err.Error()})
		return out
	}
	out.Details.NormalizedPredicted = p.String()

	margin := p.Sub(a).Abs()
	out.Margin = decimal.NewNullDecimal(margin)

	if margin.IsZero() {
		out.Points = rule.ExactPoints
		out.ExactMatch = true
		out.Details.Fraction = one.String()
		return out
	}

	fraction := rule.Decay.Fraction(margin)
	out.Details.Fraction = fraction.String()
	out.Points = roundHalfUp(rule.MaxMarginPoints, fraction)
	return out
}
