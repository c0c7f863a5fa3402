// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/domain/scoring"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/pkg/logger"
)

// Scorer is the part of the engine the HTTP layer drives.
type Scorer interface {
	ScoreResult(ctx context.Context, eventID string, propType model.PropType) (engine.PairReport, error)
	ScorePendingResults(ctx context.Context, opts ...engine.RunOption) (engine.Summary, error)
	Rules() *scoring.Registry
	Running() bool
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Scorer
	repository.Reader
	Pinger
}

// Server wires HTTP routes for the scoring API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scoringHandler *ScoringHandler
	queryHandler   *QueryHandler
	rulesHandler   *RulesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	log := logger.Get().Named("http")
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(deps, deps),
		scoringHandler: NewScoringHandler(deps, log),
		queryHandler:   NewQueryHandler(deps, log),
		rulesHandler:   NewRulesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/scoring/runs", MetricsMiddleware(s.scoringHandler.HandleRun, "scoring_runs"))
	mux.HandleFunc("POST /v1/scoring/pairs/{event_id}/{prop_type}", MetricsMiddleware(s.scoringHandler.HandleScorePair, "scoring_pairs"))
	mux.HandleFunc("GET /v1/scores", MetricsMiddleware(s.queryHandler.HandleScores, "scores"))
	mux.HandleFunc("GET /v1/audit", MetricsMiddleware(s.queryHandler.HandleAudit, "audit"))
	mux.HandleFunc("GET /v1/rules", MetricsMiddleware(s.rulesHandler.HandleRules, "rules"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
