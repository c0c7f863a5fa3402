package api

import (
	"context"
	"net/http"

	"github.com/okian/paddock/internal/adapters/repository"
)

// StatsProvider defines the interface for getting store statistics.
type StatsProvider interface {
	Counts(ctx context.Context) (repository.Counts, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	scorer        Scorer
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, scorer Scorer) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, scorer: scorer}
}

type statsResponse struct {
	repository.Counts
	BatchRunning bool   `json:"batch_running"`
	RuleSet      string `json:"rule_set"`
	PropTypes    int    `json:"prop_types"`
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.statsProvider.Counts(r.Context())
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	rules := h.scorer.Rules()
	writeJSON(w, http.StatusOK, statsResponse{
		Counts:       counts,
		BatchRunning: h.scorer.Running(),
		RuleSet:      rules.Label(),
		PropTypes:    rules.Len(),
	})
}
