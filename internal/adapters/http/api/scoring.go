package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/paddock/internal/domain/audit"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/pkg/logger"
)

const apiActor = "api"

// ScoringHandler triggers scoring passes.
type ScoringHandler struct {
	scorer Scorer
	logger logger.Logger
}

// NewScoringHandler creates a new scoring handler.
func NewScoringHandler(s Scorer, l logger.Logger) *ScoringHandler {
	return &ScoringHandler{scorer: s, logger: l}
}

// HandleRun handles POST /v1/scoring/runs. With force=true every pair with a
// result is rescored, not only the pending ones.
func (h *ScoringHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var opts []engine.RunOption
	if raw := r.URL.Query().Get("force"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: force must be a boolean", ErrBadRequest))
			return
		}
		if force {
			opts = append(opts, engine.WithForce())
		}
	}

	summary, err := h.scorer.ScorePendingResults(audit.WithActor(r.Context(), apiActor), opts...)
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "scoring run failed", logger.Error(err))
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleScorePair handles POST /v1/scoring/pairs/{event_id}/{prop_type}.
func (h *ScoringHandler) HandleScorePair(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("event_id"))
	propType := strings.TrimSpace(r.PathValue("prop_type"))
	if eventID == "" || propType == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: event_id and prop_type are required", ErrBadRequest))
		return
	}

	report, err := h.scorer.ScoreResult(audit.WithActor(r.Context(), apiActor), eventID, model.PropType(propType))
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "pair scoring failed",
				logger.String("event_id", eventID),
				logger.String("prop_type", propType),
				logger.Error(err),
			)
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
