// Package media defines the contract for the external visual asset
// generator. Asset generation is best-effort enrichment: per-draft failures
// are reported to the caller but never abort a pipeline run.
package media

import (
	"context"
	"errors"
)

// Sentinel kinds for media errors.
var (
	ErrGenerate = errors.New("asset generation failed")
)

// Generator produces a visual asset reference for a prompt.
type Generator interface {
	// GenerateAsset renders one asset and returns its reference (a URL or
	// storage path), honoring ctx for cancellation and deadline.
	GenerateAsset(ctx context.Context, prompt string) (string, error)
}
