// Package brain connects the event stream to the learning bias the pipeline
// consults. One Adjuster serves one learning subject (a merchant account);
// subjects never see each other's history.
package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/sigil-labs/prophet/internal/adapters/eventlog"
	"github.com/sigil-labs/prophet/internal/domain/learning"
	"github.com/sigil-labs/prophet/internal/domain/model"
	"github.com/sigil-labs/prophet/pkg/metrics"
)

// Closed set of merchant feedback actions.
const (
	ActionPublish = "publish"
	ActionReject  = "reject"
)

// tagSampleLimit bounds the tag sample stored on strategy events.
const tagSampleLimit = 5

const defaultModelVersion = "v1.0"

// Adjustment is the result of applying the learned bias to a raw score.
type Adjustment struct {
	Adjusted    float64
	Multiplier  float64
	Label       string
	Explanation string
	SampleSize  int
}

// Adjuster is the facade over the event store and learning engine for one
// subject. Construct one per process or per test and inject it; there is no
// package-level instance.
type Adjuster struct {
	subjectID    string
	store        eventlog.Store
	engine       *learning.Engine
	modelVersion string
}

// Option applies a configuration option to the Adjuster.
type Option func(*Adjuster)

// WithModelVersion tags recorded strategy events with a model version.
func WithModelVersion(v string) Option {
	return func(a *Adjuster) {
		if v != "" {
			a.modelVersion = v
		}
	}
}

// New creates an Adjuster for one subject over the given store.
func New(subjectID string, store eventlog.Store, opts ...Option) *Adjuster {
	a := &Adjuster{
		subjectID:    subjectID,
		store:        store,
		engine:       learning.NewEngine(store),
		modelVersion: defaultModelVersion,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// SubjectID returns the learning subject this adjuster serves.
func (a *Adjuster) SubjectID() string {
	return a.subjectID
}

// Stats exposes the subject's per-category feedback statistics.
func (a *Adjuster) Stats(ctx context.Context) (map[string]learning.Stats, error) {
	return a.engine.CategoryStats(ctx, a.subjectID)
}

// AdjustConfidence applies the category's learned bias to a raw score and
// clamps the result to [0,1]. The explanation text is deterministic for a
// given history and is meant for audit trails, not parsing.
func (a *Adjuster) AdjustConfidence(ctx context.Context, category string, rawScore float64) (Adjustment, error) {
	bias, err := a.engine.BiasForCategory(ctx, a.subjectID, category)
	if err != nil {
		return Adjustment{}, fmt.Errorf("adjust confidence: %w", err)
	}

	adjusted := clamp01(rawScore * bias.Multiplier)

	var explanation string
	if bias.SampleSize == 0 {
		explanation = fmt.Sprintf("No history for %s so no bias applied", category)
	} else {
		explanation = fmt.Sprintf("%s rejection_rate=%.0f%% history=%d so bias=%s multiplier=%g",
			category, bias.RejectionRate*100, bias.SampleSize, bias.Label, bias.Multiplier)
	}

	metrics.RecordBiasApplied(bias.Label)

	return Adjustment{
		Adjusted:    adjusted,
		Multiplier:  bias.Multiplier,
		Label:       bias.Label,
		Explanation: explanation,
		SampleSize:  bias.SampleSize,
	}, nil
}

// RecordSignal appends a signal_detected event for the incoming market
// signal.
func (a *Adjuster) RecordSignal(ctx context.Context, sig model.Signal, category string) error {
	props := map[string]any{
		"market_id":      sig.MarketID,
		"source":         sig.Source,
		"category":       category,
		"raw_confidence": sig.RawConfidence,
		"title":          sig.Name,
	}
	if sig.VolumeUSD > 0 {
		props["volume_usd"] = sig.VolumeUSD
	}
	if err := a.store.Append(ctx, a.subjectID, eventlog.TypeSignalDetected, props); err != nil {
		return fmt.Errorf("record signal: %w", err)
	}
	return nil
}

// RecordStrategy appends a strategy_generated event carrying the adjustment
// outcome and final recommendation. The tag list is truncated to a bounded
// sample; the full count is kept alongside.
func (a *Adjuster) RecordStrategy(ctx context.Context, marketID, category string, raw, adjusted, multiplier float64, recommendation string, tags []string, explanation string) error {
	sample := tags
	if len(sample) > tagSampleLimit {
		sample = sample[:tagSampleLimit]
	}
	props := map[string]any{
		"market_id":            marketID,
		"model_version":        a.modelVersion,
		"category":             category,
		"raw_confidence":       raw,
		"adjusted_confidence":  adjusted,
		"bias_multiplier":      multiplier,
		"recommendation":       recommendation,
		"proposed_tags_count":  len(tags),
		"proposed_tags_sample": sample,
		"explanation":          explanation,
	}
	if err := a.store.Append(ctx, a.subjectID, eventlog.TypeStrategyGenerated, props); err != nil {
		return fmt.Errorf("record strategy: %w", err)
	}
	return nil
}

// RecordFeedback appends a feedback event for a prior recommendation. The
// action must be "publish" or "reject"; anything else fails validation before
// any event is appended.
func (a *Adjuster) RecordFeedback(ctx context.Context, marketID, category, action, reason string) error {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != ActionPublish && action != ActionReject {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if reason == "" {
		reason = "No reason provided"
	}
	props := map[string]any{
		"market_id": marketID,
		"category":  category,
		"action":    action,
		"reason":    reason,
	}
	if err := a.store.Append(ctx, a.subjectID, eventlog.TypeFeedback, props); err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
