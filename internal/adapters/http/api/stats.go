// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/sigil-labs/prophet/internal/domain/learning"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsDependencies defines the interface for category history lookups.
type StatsDependencies interface {
	CategoryStats(ctx context.Context) (map[string]learning.Stats, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	deps          StatsDependencies
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps StatsDependencies, statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{deps: deps, statsProvider: statsProvider}
}

type categoryStats struct {
	Total         int     `json:"total"`
	Rejected      int     `json:"rejected"`
	RejectionRate float64 `json:"rejection_rate"`
}

type statsResponse struct {
	Service    map[string]interface{}   `json:"service"`
	Categories map[string]categoryStats `json:"categories"`
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	history, err := h.deps.CategoryStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	resp := statsResponse{
		Service:    h.statsProvider.GetStats(),
		Categories: make(map[string]categoryStats, len(history)),
	}
	for category, s := range history {
		resp.Categories[category] = categoryStats{
			Total:         s.Total,
			Rejected:      s.Rejected,
			RejectionRate: s.RejectionRate(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
