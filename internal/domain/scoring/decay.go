package scoring

import (
	"math"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Fraction returns the share of partial credit a margin earns, in [0, 1].
func (d Decay) Fraction(margin decimal.Decimal) decimal.Decimal {
	m := margin.Abs()
	if m.GreaterThanOrEqual(d.Cutoff) {
		return decimal.Zero
	}

	var f decimal.Decimal
	switch d.Kind {
	case DecayLinear:
		f = one.Sub(m.Div(d.Cutoff))
	case DecayExponential:
		f = decimal.NewFromFloat(math.Exp(-d.Rate * m.InexactFloat64()))
	case DecayStep:
		f = decimal.Zero
		for _, s := range d.Steps {
			if m.LessThanOrEqual(s.Within) {
				f = s.Fraction
				break
			}
		}
	default:
		return decimal.Zero
	}
	return clampUnit(f)
}

func clampUnit(f decimal.Decimal) decimal.Decimal {
	switch {
	case f.IsNegative():
		return decimal.Zero
	case f.GreaterThan(one):
		return one
	default:
		return f
	}
}

// roundHalfUp rounds budget*fraction to an integer, ties away from zero,
// and clips the result to [0, budget]. Inputs are non-negative, so ties go up.
func roundHalfUp(budget int, fraction decimal.Decimal) int {
	if budget <= 0 {
		return 0
	}
	p := int(decimal.NewFromInt(int64(budget)).Mul(clampUnit(fraction)).Round(0).IntPart())
	return max(0, min(p, budget))
}
