package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/pkg/logger"
)

// QueryHandler serves read-only score and audit listings.
type QueryHandler struct {
	reader repository.Reader
	logger logger.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(reader repository.Reader, l logger.Logger) *QueryHandler {
	return &QueryHandler{reader: reader, logger: l}
}

type scoresResponse struct {
	Scores []model.Score `json:"scores"`
	Count  int           `json:"count"`
}

type auditResponse struct {
	Entries []model.AuditEntry `json:"entries"`
	Count   int                `json:"count"`
}

// HandleScores handles GET /v1/scores?event_id=&user_id=&prop_type=&pick_id=&limit=.
// pick_id may repeat or hold a comma-separated list.
func (h *QueryHandler) HandleScores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	scores, err := h.reader.ListScores(r.Context(), repository.ScoreFilter{
		EventID:  strings.TrimSpace(q.Get("event_id")),
		UserID:   strings.TrimSpace(q.Get("user_id")),
		PropType: model.PropType(strings.TrimSpace(q.Get("prop_type"))),
		PickIDs:  splitList(q["pick_id"]),
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, "list scores", err)
		return
	}
	if scores == nil {
		scores = []model.Score{}
	}
	writeJSON(w, http.StatusOK, scoresResponse{Scores: scores, Count: len(scores)})
}

// HandleAudit handles GET /v1/audit?entity_id=&pick_id=&event_id=&limit=.
// Entries come newest first.
func (h *QueryHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	entries, err := h.reader.ListAudit(r.Context(), repository.AuditFilter{
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		PickID:   strings.TrimSpace(q.Get("pick_id")),
		EventID:  strings.TrimSpace(q.Get("event_id")),
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, "list audit", err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, auditResponse{Entries: entries, Count: len(entries)})
}

func (h *QueryHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), op+" failed", logger.Error(err))
	}
	writeError(w, status, code, err)
}

func parseLimit(q url.Values) (int, error) {
	raw := q.Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", ErrBadRequest)
	}
	if _, err := repository.NormalizeLimit(n); err != nil || n == 0 {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrBadRequest, repository.MaxListLimit)
	}
	return n, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
