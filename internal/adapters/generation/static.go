package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sigil-labs/prophet/internal/domain/model"
)

// unsafeKinds lists signal kinds the static service refuses to merchandise.
var unsafeKinds = map[string]bool{
	"politics": true,
	"medical":  true,
	"violence": true,
}

// Static implements Service deterministically with no backend. Used in demo
// mode when no API key is configured, mirroring the behavior a healthy
// generation backend would produce for safe signals.
type Static struct{}

// NewStatic creates the offline generation service.
func NewStatic() *Static {
	return &Static{}
}

// Classify marks known-unsafe kinds unshoppable and everything else
// sellable under its own kind as category.
func (s *Static) Classify(_ context.Context, sig model.Signal) (model.Classification, error) {
	kind := strings.ToLower(strings.TrimSpace(sig.Kind))
	if unsafeKinds[kind] {
		return model.Classification{
			Shoppable: false,
			Reason:    "kind is on the unsafe list",
			Category:  sig.Kind,
		}, nil
	}
	category := sig.Kind
	if category == "" {
		category = "Unknown"
	}
	return model.Classification{
		Shoppable: true,
		Reason:    "safe, generic merchandise opportunity",
		Category:  category,
	}, nil
}

// Ideate returns a fixed slate of generic ideas themed on the signal name.
func (s *Static) Ideate(_ context.Context, sig model.Signal, category string) ([]model.ProductIdea, error) {
	themes := []string{"poster", "t-shirt", "mug", "sticker pack", "tote bag"}
	ideas := make([]model.ProductIdea, 0, len(themes))
	for i, theme := range themes {
		ideas = append(ideas, model.ProductIdea{
			IdeaID:      fmt.Sprintf("i%d", i+1),
			Title:       fmt.Sprintf("%s commemorative %s", sig.Name, theme),
			Description: fmt.Sprintf("Generic %s celebrating the %s trend.", theme, category),
			Tags:        []string{strings.ToLower(category), "trending", theme},
		})
	}
	return ideas, nil
}

// ScoreRisk allows every idea with a mid-high score and no flags.
func (s *Static) ScoreRisk(_ context.Context, _ model.Signal, ideas []model.ProductIdea) ([]model.RiskScore, error) {
	scores := make([]model.RiskScore, 0, len(ideas))
	for i, idea := range ideas {
		scores = append(scores, model.RiskScore{
			IdeaID:  idea.IdeaID,
			Allowed: true,
			Score:   90 - i*5,
			Flags:   []string{},
			Notes:   "generic merchandise, no sensitive content",
		})
	}
	return scores, nil
}

// BuildProducts produces a draft per idea with a flat demo price.
func (s *Static) BuildProducts(_ context.Context, _ model.Signal, _ string, ideas []model.ProductIdea) ([]model.ProductDraft, error) {
	drafts := make([]model.ProductDraft, 0, len(ideas))
	for _, idea := range ideas {
		drafts = append(drafts, model.ProductDraft{
			IdeaID:       idea.IdeaID,
			Title:        idea.Title,
			Price:        24.99,
			Description:  idea.Description,
			Tags:         idea.Tags,
			VisualPrompt: fmt.Sprintf("Clean studio product photo of a %s, plain background, no text, no logos", idea.Title),
		})
	}
	return drafts, nil
}
