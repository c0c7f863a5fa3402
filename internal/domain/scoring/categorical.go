package scoring

import (
	"github.com/okian/paddock/internal/domain/model"
	"github.com/shopspring/decimal"
)

// ScoreCategorical awards ExactPoints when both labels are equal after
// normalization and aliasing. There is no partial credit and no margin on a miss.
func ScoreCategorical(rule Rule, predicted, actual string) Outcome {
	p := canonicalLabel(rule, extractValue(predicted, rule.ValueKeys))
	a := canonicalLabel(rule, extractValue(actual, rule.ValueKeys))

	out := Outcome{Details: model.ScoreDetails{
		Strategy:            string(Categorical),
		Predicted:           predicted,
		Actual:              actual,
		NormalizedPredicted: p,
		NormalizedActual:    a,
		RuleVersion:         rule.Version,
	}}

	switch {
	case a == "":
		out.warn(&DataQualityWarning{PropType: rule.PropType, Side: SideActual, Value: actual, Reason: errEmptyValue.Error()})
	case p == "":
		out.warn(&DataQualityWarning{PropType: rule.PropType, Side: SidePredicted, Value: predicted, Reason: errEmptyValue.Error()})
	case p == a:
		out.Points = rule.ExactPoints
		out.ExactMatch = true
		out.Margin = decimal.NewNullDecimal(decimal.Zero)
	}
	return out
}

func canonicalLabel(rule Rule, v string) string {
	n := normalizeLabel(v)
	if alias, ok := rule.Aliases[n]; ok {
		return alias
	}
	return n
}
