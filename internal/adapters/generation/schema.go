package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sigil-labs/prophet/internal/domain/model"
)

// maxIdeas bounds the candidate list a single ideation call may yield.
const maxIdeas = 5

// decodeClassification validates a Classify response.
func decodeClassification(raw json.RawMessage) (model.Classification, error) {
	var out struct {
		Shoppable *bool  `json:"shoppable"`
		Reason    string `json:"reason"`
		Category  string `json:"category"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.Classification{}, fmt.Errorf("%w: classify: %w", ErrBadResponse, err)
	}
	if out.Shoppable == nil {
		return model.Classification{}, fmt.Errorf("%w: classify: missing shoppable", ErrBadResponse)
	}
	if strings.TrimSpace(out.Category) == "" {
		return model.Classification{}, fmt.Errorf("%w: classify: missing category", ErrBadResponse)
	}
	return model.Classification{
		Shoppable: *out.Shoppable,
		Reason:    out.Reason,
		Category:  out.Category,
	}, nil
}

// decodeIdeas validates an Ideate response and truncates it to the bounded
// idea count.
func decodeIdeas(raw json.RawMessage) ([]model.ProductIdea, error) {
	var out struct {
		Ideas []model.ProductIdea `json:"ideas"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: ideate: %w", ErrBadResponse, err)
	}
	if len(out.Ideas) == 0 {
		return nil, fmt.Errorf("%w: ideate: empty idea list", ErrBadResponse)
	}
	if len(out.Ideas) > maxIdeas {
		out.Ideas = out.Ideas[:maxIdeas]
	}
	for i, idea := range out.Ideas {
		if strings.TrimSpace(idea.IdeaID) == "" {
			return nil, fmt.Errorf("%w: ideate: idea %d missing idea_id", ErrBadResponse, i)
		}
		if strings.TrimSpace(idea.Title) == "" {
			return nil, fmt.Errorf("%w: ideate: idea %s missing title", ErrBadResponse, idea.IdeaID)
		}
	}
	return out.Ideas, nil
}

// decodeRiskScores validates a ScoreRisk response against the known ideas.
func decodeRiskScores(raw json.RawMessage, ideas []model.ProductIdea) ([]model.RiskScore, error) {
	var out struct {
		Scores []model.RiskScore `json:"scores"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: risk: %w", ErrBadResponse, err)
	}
	if len(out.Scores) == 0 {
		return nil, fmt.Errorf("%w: risk: empty score list", ErrBadResponse)
	}
	known := make(map[string]bool, len(ideas))
	for _, idea := range ideas {
		known[idea.IdeaID] = true
	}
	for _, r := range out.Scores {
		if !known[r.IdeaID] {
			return nil, fmt.Errorf("%w: risk: unknown idea_id %q", ErrBadResponse, r.IdeaID)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: risk: %w", ErrBadResponse, err)
		}
	}
	return out.Scores, nil
}

// decodeDrafts validates a BuildProducts response.
func decodeDrafts(raw json.RawMessage) ([]model.ProductDraft, error) {
	var out struct {
		Products []model.ProductDraft `json:"products"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: build: %w", ErrBadResponse, err)
	}
	for _, p := range out.Products {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: build: %w", ErrBadResponse, err)
		}
	}
	return out.Products, nil
}

// extractJSON pulls the outermost JSON object out of a completion that may
// carry prose around it. Models occasionally wrap their JSON despite the
// instructions.
func extractJSON(text string) (json.RawMessage, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in completion", ErrBadResponse)
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("%w: invalid JSON object in completion", ErrBadResponse)
	}
	return json.RawMessage(candidate), nil
}
