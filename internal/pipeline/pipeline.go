// Package pipeline runs one opportunity through the staged decision state
// machine: prefilter, classify, ideate, risk, build, media, publish.
//
// Each run owns its opportunity exclusively; runs are independent and may
// execute concurrently, sharing nothing but the event store behind the
// brain. Gate failures route to the terminal stop stage; fatal stage errors
// abort the run with the stage name and audit trail attached.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sigil-labs/prophet/internal/adapters/commerce"
	"github.com/sigil-labs/prophet/internal/adapters/generation"
	"github.com/sigil-labs/prophet/internal/adapters/media"
	"github.com/sigil-labs/prophet/internal/domain/brain"
	"github.com/sigil-labs/prophet/internal/domain/model"
	"github.com/sigil-labs/prophet/internal/domain/stage"
	"github.com/sigil-labs/prophet/pkg/logger"
	"github.com/sigil-labs/prophet/pkg/metrics"
)

// Default pipeline configuration constants.
const (
	defaultThreshold   = 0.70
	defaultBuildLimit  = 2
	defaultCallTimeout = 45 * time.Second

	neutralRiskScore = 50
)

// Recommendation decisions and their confidence thresholds.
const (
	DecisionPublish = "publish"
	DecisionMonitor = "monitor"
	DecisionReject  = "reject"

	publishThreshold = 0.60
	monitorThreshold = 0.40
)

// Runner executes the decision pipeline for one signal at a time.
type Runner struct {
	gen       generation.Service
	publisher commerce.Publisher
	media     media.Generator // optional; nil skips the media stage
	adjuster  *brain.Adjuster

	threshold   float64
	buildLimit  int
	callTimeout time.Duration

	logger logger.Logger
}

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithThreshold sets the prefilter probability threshold.
func WithThreshold(t float64) Option {
	return func(r *Runner) {
		if t > 0 && t <= 1 {
			r.threshold = t
		}
	}
}

// WithBuildLimit caps how many allowed ideas become product drafts.
func WithBuildLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.buildLimit = n
		}
	}
}

// WithCallTimeout bounds each external collaborator call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithMediaGenerator enables the optional media enrichment stage.
func WithMediaGenerator(g media.Generator) Option {
	return func(r *Runner) {
		r.media = g
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New constructs a Runner with the given collaborators.
func New(gen generation.Service, publisher commerce.Publisher, adjuster *brain.Adjuster, opts ...Option) *Runner {
	r := &Runner{
		gen:         gen,
		publisher:   publisher,
		adjuster:    adjuster,
		threshold:   defaultThreshold,
		buildLimit:  defaultBuildLimit,
		callTimeout: defaultCallTimeout,
		logger:      logger.Get().Named("pipeline"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run processes one signal to a terminal state and returns the finished
// opportunity. A fatal stage failure returns a *StageError and no
// opportunity; the caller may retry the whole run.
func (r *Runner) Run(ctx context.Context, sig model.Signal) (*model.Opportunity, error) {
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignal, err)
	}

	start := time.Now()
	opp := model.NewOpportunity(uuid.NewString(), sig)

	r.logger.Info(ctx, "run started",
		logger.String("runID", opp.RunID),
		logger.String("marketID", sig.MarketID),
		logger.Float64("topProb", sig.TopProbability()),
	)

	// The incoming signal is history regardless of how the run ends.
	if err := r.adjuster.RecordSignal(ctx, sig, opp.Category()); err != nil {
		return nil, r.fatal(stage.Prefilter, opp, err)
	}

	cur := stage.Prefilter
	for !cur.IsTerminal() {
		out, err := r.runStage(ctx, cur, opp)
		if err != nil {
			metrics.RecordPipelineFailure(string(cur))
			return nil, r.fatal(cur, opp, err)
		}
		next := stage.Next(cur, out)
		if next == stage.Stop {
			metrics.RecordPipelineStop(string(cur))
		}
		cur = next
	}

	r.finish(cur, opp)

	if cur == stage.Complete {
		if err := r.recordStrategy(ctx, opp); err != nil {
			return nil, r.fatal(stage.Complete, opp, err)
		}
	}

	metrics.RecordSignalProcessed()
	metrics.RecordPipelineDuration(float64(time.Since(start).Milliseconds()))
	r.logger.Info(ctx, "run finished",
		logger.String("runID", opp.RunID),
		logger.String("status", string(opp.Status)),
		logger.String("recommendation", opp.Recommendation),
	)
	return opp, nil
}

// runStage executes one non-terminal stage, appending exactly one audit
// line and returning the routing-relevant output.
func (r *Runner) runStage(ctx context.Context, cur stage.Stage, opp *model.Opportunity) (stage.Output, error) {
	switch cur {
	case stage.Prefilter:
		return r.prefilter(opp), nil
	case stage.Classify:
		return r.classify(ctx, opp)
	case stage.Ideate:
		return r.ideate(ctx, opp)
	case stage.RiskScore:
		return r.scoreRisk(ctx, opp)
	case stage.Build:
		return r.build(ctx, opp)
	case stage.Media:
		return r.enrichMedia(ctx, opp)
	case stage.Publish:
		return r.publish(ctx, opp)
	default:
		return stage.Output{}, fmt.Errorf("unexpected stage %s", cur)
	}
}

func (r *Runner) prefilter(opp *model.Opportunity) stage.Output {
	top := opp.Signal.TopProbability()
	passed := top >= r.threshold
	opp.Log("[PREFILTER] top_prob=%.2f threshold=%.2f passed=%v", top, r.threshold, passed)
	return stage.Output{Passed: passed}
}

func (r *Runner) classify(ctx context.Context, opp *model.Opportunity) (stage.Output, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	cls, err := r.gen.Classify(callCtx, opp.Signal)
	switch {
	case err == nil:
	case errors.Is(err, generation.ErrBadResponse):
		// Deterministic fallback from locally available data: assume the
		// signal kind as category and keep the opportunity moving.
		cls = model.Classification{
			Shoppable: true,
			Reason:    "classification unparseable, defaulted to signal kind",
			Category:  opp.Category(),
		}
		r.logger.Warn(ctx, "classify fallback applied",
			logger.String("runID", opp.RunID), logger.Error(err))
	default:
		return stage.Output{}, err
	}

	opp.Classification = &cls
	opp.Log("[CLASSIFY] shoppable=%v category=%s reason=%s", cls.Shoppable, cls.Category, cls.Reason)
	return stage.Output{Passed: cls.Shoppable}, nil
}

func (r *Runner) ideate(ctx context.Context, opp *model.Opportunity) (stage.Output, error) {
	// The brain is consulted between classify and ideate: the adjusted
	// value feeds the final recommendation, never gating thresholds.
	adj, err := r.adjuster.AdjustConfidence(ctx, opp.Category(), opp.RawConfidence)
	if err != nil {
		return stage.Output{}, err
	}
	opp.AdjustedConfidence = adj.Adjusted
	opp.BiasMultiplier = adj.Multiplier
	opp.BiasExplanation = adj.Explanation

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	ideas, err := r.gen.Ideate(callCtx, opp.Signal, opp.Category())
	if err != nil {
		// No safe local fallback for ideation; malformed output is as
		// fatal as a transport failure here.
		return stage.Output{}, err
	}

	opp.Ideas = ideas
	opp.Log("[IDEAS] generated=%d", len(ideas))
	return stage.Output{Passed: true}, nil
}

func (r *Runner) scoreRisk(ctx context.Context, opp *model.Opportunity) (stage.Output, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	scores, err := r.gen.ScoreRisk(callCtx, opp.Signal, opp.Ideas)
	switch {
	case err == nil:
	case errors.Is(err, generation.ErrBadResponse):
		// Neutral fallback: every idea allowed at mid score, no flags.
		scores = make([]model.RiskScore, 0, len(opp.Ideas))
		for _, idea := range opp.Ideas {
			scores = append(scores, model.RiskScore{
				IdeaID:  idea.IdeaID,
				Allowed: true,
				Score:   neutralRiskScore,
				Flags:   []string{},
				Notes:   "neutral fallback, risk response unparseable",
			})
		}
		r.logger.Warn(ctx, "risk fallback applied",
			logger.String("runID", opp.RunID), logger.Error(err))
	default:
		return stage.Output{}, err
	}

	opp.Risk = scores
	opp.Log("[RISK] scored=%d", len(scores))
	return stage.Output{Passed: true}, nil
}

func (r *Runner) build(ctx context.Context, opp *model.Opportunity) (stage.Output, error) {
	selected := r.selectIdeas(opp)

	var drafts []model.ProductDraft
	if len(selected) > 0 {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()

		var err error
		drafts, err = r.gen.BuildProducts(callCtx, opp.Signal, opp.Category(), selected)
		if err != nil {
			// A draft with an invented price or title is worse than no
			// draft; no fallback here.
			return stage.Output{}, err
		}
	}

	opp.Drafts = drafts
	opp.Log("[PRODUCTS] built=%d", len(drafts))
	return stage.Output{Passed: true}, nil
}

// selectIdeas filters to allowed ideas, ranks them by risk score descending
// and takes the top-N for downstream cost control.
func (r *Runner) selectIdeas(opp *model.Opportunity) []model.ProductIdea {
	allowed := make(map[string]model.RiskScore, len(opp.Risk))
	for _, rs := range opp.Risk {
		if rs.Allowed {
			allowed[rs.IdeaID] = rs
		}
	}

	selected := make([]model.ProductIdea, 0, len(opp.Ideas))
	for _, idea := range opp.Ideas {
		if _, ok := allowed[idea.IdeaID]; ok {
			selected = append(selected, idea)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return allowed[selected[i].IdeaID].Score > allowed[selected[j].IdeaID].Score
	})
	if len(selected) > r.buildLimit {
		selected = selected[:r.buildLimit]
	}
	return selected
}

func (r *Runner) enrichMedia(ctx context.Context, opp *model.Opportunity) (stage.Output, error) {
	if r.media == nil {
		opp.Log("[MEDIA] skipped, no generator configured")
		return stage.Output{Passed: true}, nil
	}

	generated, failed := 0, 0
	for i := range opp.Drafts {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		ref, err := r.media.GenerateAsset(callCtx, opp.Drafts[i].VisualPrompt)
		cancel()
		if err != nil {
			// Per-item, non-fatal: the draft completes without an asset.
			failed++
			metrics.RecordMediaError()
			r.logger.Warn(ctx, "asset generation failed",
				logger.String("runID", opp.RunID),
				logger.String("ideaID", opp.Drafts[i].IdeaID),
				logger.Error(err),
			)
			continue
		}
		opp.Drafts[i].AssetRef = ref
		generated++
	}
	opp.Log("[MEDIA] generated=%d failed=%d", generated, failed)
	return stage.Output{Passed: true}, nil
}

func (r *Runner) publish(ctx context.Context, opp *model.Opportunity) (stage.Output, error) {
	report := &model.PublishReport{Created: []model.Listing{}, Errors: []model.PublishError{}}

	for _, draft := range opp.Drafts {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		listing, err := r.publisher.Publish(callCtx, draft)
		cancel()
		if err != nil {
			// Collected independently; one draft's failure never blocks
			// another's publication.
			report.Errors = append(report.Errors, model.PublishError{
				IdeaID:  draft.IdeaID,
				Message: err.Error(),
			})
			metrics.RecordPublishError()
			continue
		}
		report.Created = append(report.Created, listing)
		metrics.RecordProductPublished()
	}

	opp.Publish = report
	opp.Log("[PUBLISH] created=%d errors=%d", len(report.Created), len(report.Errors))
	return stage.Output{Passed: true}, nil
}

// finish closes the audit log at a terminal stage and derives the final
// recommendation.
func (r *Runner) finish(terminal stage.Stage, opp *model.Opportunity) {
	if terminal == stage.Stop {
		opp.Status = model.StatusStopped
		opp.Recommendation = DecisionReject
		opp.Log("[STOP] run stopped early")
		return
	}

	opp.Status = model.StatusCompleted
	opp.Recommendation = recommend(opp.AdjustedConfidence)
	metrics.RecordRecommendation(opp.Recommendation)
	opp.Log("[COMPLETE] run completed recommendation=%s", opp.Recommendation)
}

// recommend is the deterministic decision policy applied to the adjusted
// confidence.
func recommend(adjusted float64) string {
	switch {
	case adjusted >= publishThreshold:
		return DecisionPublish
	case adjusted >= monitorThreshold:
		return DecisionMonitor
	default:
		return DecisionReject
	}
}

// recordStrategy appends the strategy_generated event for a completed run.
func (r *Runner) recordStrategy(ctx context.Context, opp *model.Opportunity) error {
	tags := []string{}
	seen := map[string]bool{}
	for _, d := range opp.Drafts {
		for _, t := range d.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return r.adjuster.RecordStrategy(ctx, opp.Signal.MarketID, opp.Category(),
		opp.RawConfidence, opp.AdjustedConfidence, opp.BiasMultiplier,
		opp.Recommendation, tags, opp.BiasExplanation)
}

// fatal wraps an error with the stage and audit context of the failed run.
func (r *Runner) fatal(cur stage.Stage, opp *model.Opportunity, err error) error {
	r.logger.Error(context.Background(), "run failed",
		logger.String("runID", opp.RunID),
		logger.String("stage", string(cur)),
		logger.Error(err),
	)
	return &StageError{
		Stage:    cur,
		RunID:    opp.RunID,
		MarketID: opp.Signal.MarketID,
		Audit:    opp.Audit,
		Err:      err,
	}
}
