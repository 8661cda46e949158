// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// probabilitySumEpsilon allows for float rounding when validating that the
// outcome probabilities of a signal sum to at most one.
const probabilitySumEpsilon = 1e-6

// Signal represents an incoming prediction-market observation.
type Signal struct {
	MarketID      string             `json:"market_id"`
	Name          string             `json:"market_name"`
	Kind          string             `json:"market_kind"` // e.g. "sports", "crypto"
	Probabilities map[string]float64 `json:"outcome_probabilities"`
	Source        string             `json:"source,omitempty"`
	RawConfidence float64            `json:"raw_confidence"`
	VolumeUSD     float64            `json:"volume_usd,omitempty"`
}

// TopProbability returns the highest outcome probability, or 0 if the
// signal carries no outcomes.
func (s Signal) TopProbability() float64 {
	top := 0.0
	for _, p := range s.Probabilities {
		if p > top {
			top = p
		}
	}
	return top
}

// Validate checks the signal invariants before a pipeline run.
func (s Signal) Validate() error {
	if strings.TrimSpace(s.MarketID) == "" {
		return errors.New("missing market_id")
	}
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("missing market_name")
	}
	sum := 0.0
	for outcome, p := range s.Probabilities {
		if p < 0 || p > 1 {
			return fmt.Errorf("probability for %q out of range [0,1]: %v", outcome, p)
		}
		sum += p
	}
	if sum > 1+probabilitySumEpsilon {
		return fmt.Errorf("outcome probabilities sum above 1: %v", sum)
	}
	if s.RawConfidence < 0 || s.RawConfidence > 1 {
		return fmt.Errorf("raw_confidence out of range [0,1]: %v", s.RawConfidence)
	}
	return nil
}

// Classification is the shoppability verdict for a signal.
type Classification struct {
	Shoppable bool   `json:"shoppable"`
	Reason    string `json:"reason"`
	Category  string `json:"category"`
}

// ProductIdea is a single candidate product for a trend.
type ProductIdea struct {
	IdeaID      string   `json:"idea_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// RiskScore is the compliance verdict for one idea. Score lies in [0,100];
// an idea is eligible for product building iff Allowed is true.
type RiskScore struct {
	IdeaID  string   `json:"idea_id"`
	Allowed bool     `json:"allowed"`
	Score   int      `json:"score"`
	Flags   []string `json:"flags"`
	Notes   string   `json:"notes"`
}

// Validate checks the risk score range invariant.
func (r RiskScore) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("risk score for %s out of range [0,100]: %d", r.IdeaID, r.Score)
	}
	return nil
}

// ProductDraft is a finalized product ready for media and publishing.
type ProductDraft struct {
	IdeaID       string   `json:"idea_id"`
	Title        string   `json:"title"`
	Price        float64  `json:"price"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	VisualPrompt string   `json:"visual_prompt"`
	AssetRef     string   `json:"asset_ref,omitempty"` // attached by the media stage; may stay empty
}

// Validate checks the draft invariants.
func (p ProductDraft) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("draft for %s has empty title", p.IdeaID)
	}
	if p.Price < 0 {
		return fmt.Errorf("draft for %s has negative price: %v", p.IdeaID, p.Price)
	}
	return nil
}

// Listing is the publisher's acknowledgement for one draft.
type Listing struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PublishError records one draft's publish failure without aborting siblings.
type PublishError struct {
	IdeaID  string `json:"idea_id"`
	Message string `json:"message"`
}

// PublishReport aggregates per-draft publish outcomes.
type PublishReport struct {
	Created []Listing      `json:"created"`
	Errors  []PublishError `json:"errors"`
}

// Status is the terminal status of an opportunity.
type Status string

// Terminal statuses.
const (
	StatusPending   Status = "pending"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// Opportunity is the mutable unit of work flowing through the pipeline.
// It is owned exclusively by one pipeline run and never shared across
// concurrent runs.
type Opportunity struct {
	RunID          string
	Signal         Signal
	Classification *Classification
	Ideas          []ProductIdea
	Risk           []RiskScore
	Drafts         []ProductDraft
	Publish        *PublishReport

	RawConfidence      float64
	AdjustedConfidence float64
	BiasMultiplier     float64
	BiasExplanation    string
	Recommendation     string

	Audit     []string
	Status    Status
	StartedAt time.Time
}

// NewOpportunity creates a fresh opportunity for one signal.
func NewOpportunity(runID string, sig Signal) *Opportunity {
	return &Opportunity{
		RunID:         runID,
		Signal:        sig,
		RawConfidence: sig.RawConfidence,
		Status:        StatusPending,
		StartedAt:     time.Now().UTC(),
	}
}

// Log appends one human-readable audit line.
func (o *Opportunity) Log(format string, args ...any) {
	o.Audit = append(o.Audit, fmt.Sprintf(format, args...))
}

// LastAudit returns the final audit line, or "" for an empty trail.
func (o *Opportunity) LastAudit() string {
	if len(o.Audit) == 0 {
		return ""
	}
	return o.Audit[len(o.Audit)-1]
}

// Category returns the classified category, falling back to the signal kind
// when classification has not happened yet.
func (o *Opportunity) Category() string {
	if o.Classification != nil && o.Classification.Category != "" {
		return o.Classification.Category
	}
	if o.Signal.Kind != "" {
		return o.Signal.Kind
	}
	return "Unknown"
}
