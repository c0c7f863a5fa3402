package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/domain/scoring"
)

// DefaultRulesVersion labels the built-in ruleset.
const DefaultRulesVersion = "2025.1"

// RulesConfig is the scoring ruleset as configured.
type RulesConfig struct {
	// Version labels the ruleset; it prefixes every rule version.
	Version string `koanf:"version"`
	// Props maps a prop type to its rule.
	Props map[string]RuleConfig `koanf:"props"`
}

// RuleConfig mirrors scoring.Rule with decimals as strings.
type RuleConfig struct {
	Strategy        string            `koanf:"strategy"`
	// ExactPoints falls back to scoring.DefaultExactPoints when unset.
	ExactPoints     *int              `koanf:"exact_points"`
	MaxMarginPoints int               `koanf:"max_margin_points"`
	MarginUnit      string            `koanf:"margin_unit"`
	Decay           DecayConfig       `koanf:"decay"`
	ValueKeys       []string          `koanf:"value_keys"`
	Aliases         map[string]string `koanf:"aliases"`
}

// DecayConfig mirrors scoring.Decay.
type DecayConfig struct {
	Kind   string       `koanf:"kind"`
	Cutoff string       `koanf:"cutoff"`
	Rate   float64      `koanf:"rate"`
	Steps  []StepConfig `koanf:"steps"`
}

// StepConfig is one tier of a step decay.
type StepConfig struct {
	Within   string `koanf:"within"`
	Fraction string `koanf:"fraction"`
}

// Points returns a pointer to n for RuleConfig.ExactPoints.
func Points(n int) *int { return &n }

func categorical() RuleConfig {
	return RuleConfig{Strategy: string(scoring.Categorical)}
}

func pitWindow() RuleConfig {
	return RuleConfig{
		Strategy:        string(scoring.Numeric),
		ExactPoints:     Points(10),
		MaxMarginPoints: 10,
		MarginUnit:      "laps",
		Decay: DecayConfig{
			Kind:   string(scoring.DecayStep),
			Cutoff: "6",
			Steps: []StepConfig{
				{Within: "1", Fraction: "0.7"},
				{Within: "2", Fraction: "0.5"},
				{Within: "3", Fraction: "0.3"},
				{Within: "5", Fraction: "0.1"},
			},
		},
	}
}

// DefaultRules returns the built-in ruleset covering every known prop type.
func DefaultRules() RulesConfig {
	safetyCar := categorical()
	safetyCar.Aliases = map[string]string{
		"true": "yes", "1": "yes", "y": "yes",
		"false": "no", "0": "no", "n": "no",
	}

	return RulesConfig{
		Version: DefaultRulesVersion,
		Props: map[string]RuleConfig{
			string(model.RaceWinner):      categorical(),
			string(model.PodiumP1):        categorical(),
			string(model.PodiumP2):        categorical(),
			string(model.PodiumP3):        categorical(),
			string(model.FastestLap):      categorical(),
			string(model.PolePosition):    categorical(),
			string(model.FirstRetirement): categorical(),
			string(model.SafetyCar):       safetyCar,
			string(model.FastestLapTime): {
				Strategy: string(scoring.Numeric), ExactPoints: Points(10), MaxMarginPoints: 10, MarginUnit: "seconds",
				Decay: DecayConfig{Kind: string(scoring.DecayLinear), Cutoff: "2.0"},
			},
			string(model.LapTimePrediction): {
				Strategy: string(scoring.Numeric), ExactPoints: Points(10), MaxMarginPoints: 10, MarginUnit: "seconds",
				Decay: DecayConfig{Kind: string(scoring.DecayLinear), Cutoff: "3.0"},
			},
			string(model.SectorTimePrediction): {
				Strategy: string(scoring.Numeric), ExactPoints: Points(10), MaxMarginPoints: 10, MarginUnit: "seconds",
				Decay: DecayConfig{Kind: string(scoring.DecayExponential), Cutoff: "1.5", Rate: 2},
			},
			string(model.PitWindowStart): pitWindow(),
			string(model.PitWindowEnd):   pitWindow(),
			string(model.TotalPitStops): {
				Strategy: string(scoring.Numeric), ExactPoints: Points(10), MaxMarginPoints: 10, MarginUnit: "stops",
				Decay: DecayConfig{
					Kind:   string(scoring.DecayStep),
					Cutoff: "3",
					Steps:  []StepConfig{{Within: "1", Fraction: "0.6"}, {Within: "2", Fraction: "0.3"}},
				},
			},
		},
	}
}

// Registry builds the scoring registry. Any malformed rule fails the whole
// ruleset so the engine never starts half-configured.
func (rc RulesConfig) Registry() (*scoring.Registry, error) {
	rules := make([]scoring.Rule, 0, len(rc.Props))
	for _, pt := range slices.Sorted(maps.Keys(rc.Props)) {
		rule, err := rc.Props[pt].rule(model.PropType(pt))
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	reg, err := scoring.NewRegistry(rc.Version, rules...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return reg, nil
}

func (c RuleConfig) rule(pt model.PropType) (scoring.Rule, error) {
	r := scoring.Rule{
		PropType:        pt,
		Strategy:        scoring.Strategy(c.Strategy),
		ExactPoints:     scoring.DefaultExactPoints,
		MaxMarginPoints: c.MaxMarginPoints,
		MarginUnit:      c.MarginUnit,
		ValueKeys:       c.ValueKeys,
		Aliases:         c.Aliases,
	}
	if c.ExactPoints != nil {
		r.ExactPoints = *c.ExactPoints
	}
	if r.Strategy != scoring.Numeric {
		return r, nil
	}

	cutoff, err := parseDecimal(pt, "decay.cutoff", c.Decay.Cutoff)
	if err != nil {
		return scoring.Rule{}, err
	}
	r.Decay = scoring.Decay{Kind: scoring.DecayKind(c.Decay.Kind), Cutoff: cutoff, Rate: c.Decay.Rate}
	for i, s := range c.Decay.Steps {
		within, err := parseDecimal(pt, fmt.Sprintf("decay.steps[%d].within", i), s.Within)
		if err != nil {
			return scoring.Rule{}, err
		}
		fraction, err := parseDecimal(pt, fmt.Sprintf("decay.steps[%d].fraction", i), s.Fraction)
		if err != nil {
			return scoring.Rule{}, err
		}
		r.Decay.Steps = append(r.Decay.Steps, scoring.Step{Within: within, Fraction: fraction})
	}
	return r, nil
}

func parseDecimal(pt model.PropType, field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: rules.props.%s.%s: %q is not a number", ErrInvalidConfig, pt, field, v)
	}
	return d, nil
}
