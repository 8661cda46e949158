// Package learning derives per-category statistics and confidence bias from
// the feedback history in the event log.
//
// Everything here is a pure function of log contents: stats are recomputed
// on demand and never cached, so each query reflects the latest log state.
package learning

import (
	"context"
	"fmt"

	"github.com/sigil-labs/prophet/internal/adapters/eventlog"
)

// Bias table boundaries. Comparisons are strict, first match wins, so e.g. a
// rejection rate of exactly 0.50 is neutral, not a heavy penalty.
const (
	heavyPenaltyAbove    = 0.50
	moderatePenaltyAbove = 0.30
	strongBoostBelow     = 0.05
	moderateBoostBelow   = 0.10
)

// Bias labels, one per row of the multiplier table.
const (
	LabelNoHistory       = "no_history"
	LabelHeavyPenalty    = "heavy_penalty"
	LabelModeratePenalty = "moderate_penalty"
	LabelStrongBoost     = "strong_boost"
	LabelModerateBoost   = "moderate_boost"
	LabelNeutral         = "neutral"
)

// ActionReject is the feedback action counted as a rejection.
const ActionReject = "reject"

// unknownCategory buckets feedback events that carry no category.
const unknownCategory = "Unknown"

// Stats holds the derived counts for one category.
type Stats struct {
	Total    int
	Rejected int
}

// RejectionRate returns rejected/total, or 0 when there is no history.
func (s Stats) RejectionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Rejected) / float64(s.Total)
}

// Bias is the learned adjustment for one category.
type Bias struct {
	Multiplier    float64
	Label         string
	RejectionRate float64
	SampleSize    int
}

// multiplierFor converts a rejection rate into a confidence multiplier and
// label. Boosts apply only when history exists.
func multiplierFor(rejectionRate float64, hasHistory bool) (float64, string) {
	if !hasHistory {
		return 1.0, LabelNoHistory
	}
	switch {
	case rejectionRate > heavyPenaltyAbove:
		return 0.5, LabelHeavyPenalty
	case rejectionRate > moderatePenaltyAbove:
		return 0.7, LabelModeratePenalty
	case rejectionRate < strongBoostBelow:
		return 1.5, LabelStrongBoost
	case rejectionRate < moderateBoostBelow:
		return 1.2, LabelModerateBoost
	default:
		return 1.0, LabelNeutral
	}
}

// Engine computes merchant preferences from feedback events.
type Engine struct {
	store eventlog.Store
}

// NewEngine creates a learning engine over the given event store.
func NewEngine(store eventlog.Store) *Engine {
	return &Engine{store: store}
}

// CategoryStats scans all feedback events for the subject and groups counts
// by category.
func (e *Engine) CategoryStats(ctx context.Context, subjectID string) (map[string]Stats, error) {
	events, err := e.store.Query(ctx, eventlog.Filter{
		SubjectID: subjectID,
		EventType: eventlog.TypeFeedback,
	})
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}

	stats := make(map[string]Stats)
	for _, ev := range events {
		cat := unknownCategory
		if c, ok := ev.Properties["category"].(string); ok && c != "" {
			cat = c
		}
		s := stats[cat]
		s.Total++
		if action, ok := ev.Properties["action"].(string); ok && action == ActionReject {
			s.Rejected++
		}
		stats[cat] = s
	}
	return stats, nil
}

// BiasForCategory derives the multiplier, label, rejection rate and sample
// size for one category. A category with no feedback yields multiplier 1.0
// and the no_history label regardless of other categories' history.
func (e *Engine) BiasForCategory(ctx context.Context, subjectID, category string) (Bias, error) {
	stats, err := e.CategoryStats(ctx, subjectID)
	if err != nil {
		return Bias{}, err
	}

	cat := stats[category]
	rr := cat.RejectionRate()
	mult, label := multiplierFor(rr, cat.Total > 0)
	return Bias{
		Multiplier:    mult,
		Label:         label,
		RejectionRate: rr,
		SampleSize:    cat.Total,
	}, nil
}
