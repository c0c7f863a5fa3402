// Package scoring turns a (predicted, actual) value pair into points under a
// per-prop-type rule. Rules are data; Evaluate is the single dispatch point.
package scoring

import (
	"fmt"
	"maps"
	"slices"

	"github.com/okian/paddock/internal/domain/model"
)

// Registry maps prop types to their scoring rules. It is immutable once built.
type Registry struct {
	label string
	rules map[model.PropType]Rule
}

// NewRegistry validates the rules and stamps each with a version derived
// from label and the rule content.
func NewRegistry(label string, rules ...Rule) (*Registry, error) {
	r := &Registry{label: label, rules: make(map[model.PropType]Rule, len(rules))}
	for _, rule := range rules {
		if _, dup := r.rules[rule.PropType]; dup {
			return nil, invalidRule(rule.PropType, "defined twice")
		}
		if err := rule.validate(); err != nil {
			return nil, err
		}
		rule = prepare(rule)
		fp, err := rule.fingerprint()
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", rule.PropType, err)
		}
		rule.Version = label + "+" + fp
		r.rules[rule.PropType] = rule
	}
	return r, nil
}

// prepare fills defaults and folds alias keys so lookups match normalized values.
func prepare(rule Rule) Rule {
	if len(rule.ValueKeys) == 0 {
		if rule.Strategy == Numeric {
			rule.ValueKeys = slices.Clone(defaultNumericKeys)
		} else {
			rule.ValueKeys = slices.Clone(defaultCategoricalKeys)
		}
	}
	if len(rule.Aliases) > 0 {
		aliases := make(map[string]string, len(rule.Aliases))
		for from, to := range rule.Aliases {
			aliases[normalizeLabel(from)] = normalizeLabel(to)
		}
		rule.Aliases = aliases
	}
	if rule.Decay.Kind == DecayStep {
		rule.Decay.Steps = slices.Clone(rule.Decay.Steps)
	}
	return rule
}

// Lookup returns the rule for a prop type or a *ConfigurationError.
func (r *Registry) Lookup(pt model.PropType) (Rule, error) {
	rule, ok := r.rules[pt]
	if !ok {
		return Rule{}, &ConfigurationError{PropType: pt}
	}
	return rule, nil
}

// Version returns the rule version for a prop type, or "" when unknown.
func (r *Registry) Version(pt model.PropType) string {
	return r.rules[pt].Version
}

// Rules returns every rule ordered by prop type.
func (r *Registry) Rules() []Rule {
	keys := slices.Sorted(maps.Keys(r.rules))
	out := make([]Rule, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.rules[k])
	}
	return out
}

// Label returns the ruleset label the registry was built with.
func (r *Registry) Label() string { return r.label }

// Len returns the number of configured prop types.
func (r *Registry) Len() int { return len(r.rules) }
