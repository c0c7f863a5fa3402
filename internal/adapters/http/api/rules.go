package api

import (
	"net/http"

	"github.com/okian/paddock/internal/domain/scoring"
)

// RulesHandler lists the active scoring rules.
type RulesHandler struct {
	scorer Scorer
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(s Scorer) *RulesHandler {
	return &RulesHandler{scorer: s}
}

type ruleView struct {
	scoring.Rule
	Version string `json:"version"`
}

type rulesResponse struct {
	RuleSet string     `json:"rule_set"`
	Rules   []ruleView `json:"rules"`
}

// HandleRules handles GET /v1/rules.
func (h *RulesHandler) HandleRules(w http.ResponseWriter, _ *http.Request) {
	reg := h.scorer.Rules()
	rules := reg.Rules()
	views := make([]ruleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, ruleView{Rule: rule, Version: rule.Version})
	}
	writeJSON(w, http.StatusOK, rulesResponse{RuleSet: reg.Label(), Rules: views})
}
