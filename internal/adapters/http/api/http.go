// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sigil-labs/prophet/internal/domain/learning"
	"github.com/sigil-labs/prophet/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Enqueue pushes a signal for async processing. Returns false on backpressure.
	Enqueue(ctx context.Context, sig model.Signal) bool

	// SubmitFeedback records a human decision on a generated strategy.
	SubmitFeedback(ctx context.Context, marketID, category, action, reason string) error

	// Result returns the cached finished run for a market id.
	Result(ctx context.Context, marketID string) (*model.Opportunity, bool)

	// CategoryStats exposes per-category feedback history.
	CategoryStats(ctx context.Context) (map[string]learning.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	signalsHandler  *SignalsHandler
	feedbackHandler *FeedbackHandler
	resultsHandler  *ResultsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps, statsProvider),
		signalsHandler:  NewSignalsHandler(deps),
		feedbackHandler: NewFeedbackHandler(deps),
		resultsHandler:  NewResultsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/signals", MetricsMiddleware(s.signalsHandler.HandlePostSignal, "signals"))
	mux.HandleFunc("/feedback", MetricsMiddleware(s.feedbackHandler.HandlePostFeedback, "feedback"))
	mux.HandleFunc("/results/", MetricsMiddleware(s.resultsHandler.HandleGetResult, "results"))
}

// signalRequest mirrors the wire schema for POST /signals.
type signalRequest struct {
	MarketID      string             `json:"market_id"`
	Name          string             `json:"name"`
	Kind          string             `json:"kind"`
	Probabilities map[string]float64 `json:"probabilities"`
	Source        string             `json:"source"`
	RawConfidence float64            `json:"raw_confidence"`
	VolumeUSD     float64            `json:"volume_usd"`
}

func (s signalRequest) validate() error {
	switch {
	case strings.TrimSpace(s.MarketID) == "":
		return errors.New("missing market_id")
	case strings.TrimSpace(s.Name) == "":
		return errors.New("missing name")
	case len(s.Probabilities) == 0:
		return errors.New("missing probabilities")
	}
	return nil
}

func (s signalRequest) toModel() model.Signal {
	return model.Signal{
		MarketID:      s.MarketID,
		Name:          s.Name,
		Kind:          s.Kind,
		Probabilities: s.Probabilities,
		Source:        s.Source,
		RawConfidence: s.RawConfidence,
		VolumeUSD:     s.VolumeUSD,
	}
}

// feedbackRequest mirrors the wire schema for POST /feedback.
type feedbackRequest struct {
	MarketID string `json:"market_id"`
	Category string `json:"category"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
}

func (f feedbackRequest) validate() error {
	switch {
	case strings.TrimSpace(f.MarketID) == "":
		return errors.New("missing market_id")
	case strings.TrimSpace(f.Category) == "":
		return errors.New("missing category")
	case strings.TrimSpace(f.Action) == "":
		return errors.New("missing action")
	}
	return nil
}

type ackResponse struct {
	Status string `json:"status"`
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
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
