package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/okian/paddock/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Strategy tags the scoring family of a rule.
type Strategy string

// Scoring strategies.
const (
	Categorical Strategy = "categorical"
	Numeric     Strategy = "numeric"
)

// DefaultExactPoints is awarded for an exact match when a rule does not say otherwise.
const DefaultExactPoints = 10

const fingerprintLen = 12

// Rule describes how picks of one prop type are scored.
type Rule struct {
	PropType        model.PropType    `json:"prop_type"`
	Strategy        Strategy          `json:"strategy"`
	ExactPoints     int               `json:"exact_points"`
	MaxMarginPoints int               `json:"max_margin_points,omitempty"`
	MarginUnit      string            `json:"margin_unit,omitempty"`
	Decay           Decay             `json:"decay"`
	ValueKeys       []string          `json:"value_keys,omitempty"`
	Aliases         map[string]string `json:"aliases,omitempty"`

	// Version is assigned by the registry from the ruleset label and the rule content.
	Version string `json:"-"`
}

// validate checks the invariants a rule must hold before it can score anything.
func (r Rule) validate() error {
	if r.PropType == "" {
		return invalidRule(r.PropType, "prop type is empty")
	}
	if r.ExactPoints < 0 || r.MaxMarginPoints < 0 {
		return invalidRule(r.PropType, "points must not be negative")
	}
	switch r.Strategy {
	case Categorical:
		return nil
	case Numeric:
		return r.Decay.validate(r.PropType)
	default:
		return invalidRule(r.PropType, "unknown strategy %q", r.Strategy)
	}
}

// fingerprint hashes the canonical JSON form of the rule.
// encoding/json sorts map keys, so equal rules hash equally.
func (r Rule) fingerprint() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:fingerprintLen], nil
}

// DecayKind names a margin decay curve.
type DecayKind string

// Decay curves.
const (
	DecayLinear      DecayKind = "linear"
	DecayExponential DecayKind = "exponential"
	DecayStep        DecayKind = "step"
)

// Step is one tier of a step curve: margins up to Within earn Fraction.
type Step struct {
	Within   decimal.Decimal `json:"within"`
	Fraction decimal.Decimal `json:"fraction"`
}

// Decay turns a margin into a fraction of the partial-credit budget.
// Every curve is non-increasing and reaches zero at Cutoff.
type Decay struct {
	Kind   DecayKind       `json:"kind,omitempty"`
	Cutoff decimal.Decimal `json:"cutoff"`
	Rate   float64         `json:"rate,omitempty"`
	Steps  []Step          `json:"steps,omitempty"`
}

func (d Decay) validate(pt model.PropType) error {
	if !d.Cutoff.IsPositive() {
		return invalidRule(pt, "decay cutoff must be positive")
	}
	switch d.Kind {
	case DecayLinear:
		return nil
	case DecayExponential:
		if d.Rate <= 0 {
			return invalidRule(pt, "exponential decay needs a positive rate")
		}
		return nil
	case DecayStep:
		if len(d.Steps) == 0 {
			return invalidRule(pt, "step decay needs at least one step")
		}
		for i, s := range d.Steps {
			if s.Within.IsNegative() || s.Within.GreaterThanOrEqual(d.Cutoff) {
				return invalidRule(pt, "step %d: within must be in [0, cutoff)", i)
			}
			if s.Fraction.IsNegative() || s.Fraction.GreaterThan(one) {
				return invalidRule(pt, "step %d: fraction must be in [0, 1]", i)
			}
			if i == 0 {
				continue
			}
			prev := d.Steps[i-1]
			if !s.Within.GreaterThan(prev.Within) {
				return invalidRule(pt, "step %d: within must increase", i)
			}
			if s.Fraction.GreaterThan(prev.Fraction) {
				return invalidRule(pt, "step %d: fraction must not increase", i)
			}
		}
		return nil
	default:
		return invalidRule(pt, "unknown decay kind %q", d.Kind)
	}
}
