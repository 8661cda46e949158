package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sigil-labs/prophet/internal/domain/model"
	"github.com/sigil-labs/prophet/pkg/metrics"
)

// System instructions per stage. Each demands JSON-only output matching the
// schema the decoders in schema.go validate.
const (
	classifySystem = "You are the shoppability oracle. Decide if the market can be turned into " +
		"shoppable products that are safe, non-sensitive, and sellable within 24 to 72 hours. " +
		"Return JSON only with: shoppable (bool), reason (string), category (string). " +
		"If sports, entertainment, or holiday event, set shoppable=true. " +
		"If medical claims, violence, hate, or real-person likeness, set shoppable=false."

	ideateSystem = "You are the merchandiser. Brainstorm 5 product ideas for an online store. " +
		"No trademarked logos, no copyrighted art, no direct celebrity name use. " +
		"Return JSON only with: ideas: [{idea_id, title, description, tags[]}]. " +
		"Use idea_id values i1..i5."

	riskSystem = "You are risk and compliance. Score each idea 0-100 and decide allowed true or false. " +
		"Flag: politics persuasion, medical claims, hate symbols, violence, adult content, " +
		"IP infringement, real-person likeness. " +
		"Return JSON only with: scores: [{idea_id, allowed, score, flags[], notes}]."

	buildSystem = "You are the product builder. For each idea, produce title, price, description, " +
		"tags and visual_prompt. No brand names, no copyrighted logos, no celebrity names, " +
		"no political messaging. " +
		"Return JSON only with: products: [{idea_id, title, price, description, tags[], visual_prompt}]."
)

// LLM implements Service on top of a text-generation Client.
type LLM struct {
	client Client
}

// NewLLM creates the generation service over the given client.
func NewLLM(client Client) *LLM {
	return &LLM{client: client}
}

// Classify decides shoppability for a signal.
func (l *LLM) Classify(ctx context.Context, sig model.Signal) (model.Classification, error) {
	user := fmt.Sprintf("Market name: %s\nMarket kind: %s\nOutcome probabilities: %s\n\nReturn JSON only.",
		sig.Name, sig.Kind, formatProbabilities(sig.Probabilities))

	raw, err := l.generate(ctx, "classify", classifySystem, user)
	if err != nil {
		return model.Classification{}, err
	}
	return decodeClassification(raw)
}

// Ideate brainstorms candidate product ideas.
func (l *LLM) Ideate(ctx context.Context, sig model.Signal, category string) ([]model.ProductIdea, error) {
	user := fmt.Sprintf("Event: %s\nCategory: %s\n\nGive ideas that match the hype but stay generic and safe.\nReturn JSON only.",
		sig.Name, category)

	raw, err := l.generate(ctx, "ideate", ideateSystem, user)
	if err != nil {
		return nil, err
	}
	return decodeIdeas(raw)
}

// ScoreRisk scores each idea for compliance.
func (l *LLM) ScoreRisk(ctx context.Context, sig model.Signal, ideas []model.ProductIdea) ([]model.RiskScore, error) {
	var sb strings.Builder
	for _, idea := range ideas {
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", idea.IdeaID, idea.Title, idea.Description)
	}
	user := fmt.Sprintf("Market: %s\nIdeas:\n%s\nReturn JSON only.", sig.Name, sb.String())

	raw, err := l.generate(ctx, "risk", riskSystem, user)
	if err != nil {
		return nil, err
	}
	return decodeRiskScores(raw, ideas)
}

// BuildProducts produces finalized drafts for the selected ideas.
func (l *LLM) BuildProducts(ctx context.Context, sig model.Signal, category string, ideas []model.ProductIdea) ([]model.ProductDraft, error) {
	var sb strings.Builder
	for _, idea := range ideas {
		fmt.Fprintf(&sb, "- %s: %s (%s) tags=%s\n", idea.IdeaID, idea.Title, idea.Description, strings.Join(idea.Tags, ","))
	}
	user := fmt.Sprintf("Market: %s\nCategory: %s\nAllowed ideas:\n%s\nReturn JSON only.",
		sig.Name, category, sb.String())

	raw, err := l.generate(ctx, "build", buildSystem, user)
	if err != nil {
		return nil, err
	}
	return decodeDrafts(raw)
}

func (l *LLM) generate(ctx context.Context, stageName, system, user string) (raw []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordGenerationLatency(stageName, float64(time.Since(start).Milliseconds()))
	}()
	return l.client.Generate(ctx, system, user)
}

// formatProbabilities renders outcome probabilities in a stable order for
// reproducible prompts.
func formatProbabilities(probs map[string]float64) string {
	outcomes := make([]string, 0, len(probs))
	for o := range probs {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)

	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("%s=%.2f", o, probs[o]))
	}
	return strings.Join(parts, " ")
}
