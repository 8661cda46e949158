// Package generation defines the contract for the external text-generation
// service the pipeline consults, plus typed decoding of its structured
// responses.
//
// The pipeline never sees raw model output: each stage's expected response is
// a validated record type, and parse failures surface as ErrBadResponse so
// the caller can apply its deterministic fallback or fail the run.
package generation

import (
	"context"
	"encoding/json"

	"github.com/sigil-labs/prophet/internal/domain/model"
)

// Client is the low-level text-generation transport: one system instruction,
// one user context, one structured record back.
type Client interface {
	// Generate performs a single completion, honoring ctx for cancellation
	// and deadline. The returned payload is the raw structured record.
	Generate(ctx context.Context, system, user string) (json.RawMessage, error)
}

// Service is the narrow per-stage interface the pipeline consumes.
type Service interface {
	// Classify decides whether the signal can become safe, sellable
	// products, and names the category.
	Classify(ctx context.Context, sig model.Signal) (model.Classification, error)

	// Ideate brainstorms a bounded list of candidate product ideas with
	// stable identifiers.
	Ideate(ctx context.Context, sig model.Signal, category string) ([]model.ProductIdea, error)

	// ScoreRisk scores each idea 0-100 and decides allowed true or false.
	ScoreRisk(ctx context.Context, sig model.Signal, ideas []model.ProductIdea) ([]model.RiskScore, error)

	// BuildProducts produces finalized drafts for the given ideas.
	BuildProducts(ctx context.Context, sig model.Signal, category string, ideas []model.ProductIdea) ([]model.ProductDraft, error)
}
