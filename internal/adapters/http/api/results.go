// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/sigil-labs/prophet/internal/domain/model"
)

// ResultDependencies defines the interface for result lookups.
type ResultDependencies interface {
	Result(ctx context.Context, marketID string) (*model.Opportunity, bool)
}

// ResultsHandler handles finished-run lookups.
type ResultsHandler struct {
	deps ResultDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// HandleGetResult handles GET /results/{market_id} requests.
func (h *ResultsHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	marketID := strings.TrimPrefix(r.URL.Path, "/results/")
	if marketID == "" || strings.Contains(marketID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	opp, ok := h.deps.Result(r.Context(), marketID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	writeJSON(w, http.StatusOK, opp)
}
