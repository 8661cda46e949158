package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sigil-labs/prophet/internal/adapters/eventlog"
	"github.com/sigil-labs/prophet/internal/adapters/generation"
	"github.com/sigil-labs/prophet/internal/domain/brain"
	"github.com/sigil-labs/prophet/internal/domain/model"
	"github.com/sigil-labs/prophet/internal/domain/stage"
	"github.com/sigil-labs/prophet/internal/pipeline"
	"github.com/sigil-labs/prophet/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeGeneration is a scriptable generation.Service. Unset fields fall back
// to sensible defaults mirroring the offline service.
type fakeGeneration struct {
	classifyErr error
	classify    model.Classification

	ideateErr error
	ideas     []model.ProductIdea

	riskErr error
	risk    []model.RiskScore

	buildErr   error
	buildCalls [][]model.ProductIdea
}

func (f *fakeGeneration) Classify(_ context.Context, sig model.Signal) (model.Classification, error) {
	if f.classifyErr != nil {
		return model.Classification{}, f.classifyErr
	}
	if f.classify.Category == "" {
		return model.Classification{Shoppable: true, Reason: "test", Category: "Sports"}, nil
	}
	return f.classify, nil
}

func (f *fakeGeneration) Ideate(_ context.Context, _ model.Signal, _ string) ([]model.ProductIdea, error) {
	if f.ideateErr != nil {
		return nil, f.ideateErr
	}
	if f.ideas == nil {
		return []model.ProductIdea{
			{IdeaID: "i1", Title: "Poster", Tags: []string{"poster"}},
			{IdeaID: "i2", Title: "Shirt", Tags: []string{"shirt"}},
			{IdeaID: "i3", Title: "Mug", Tags: []string{"mug"}},
		}, nil
	}
	return f.ideas, nil
}

func (f *fakeGeneration) ScoreRisk(_ context.Context, _ model.Signal, ideas []model.ProductIdea) ([]model.RiskScore, error) {
	if f.riskErr != nil {
		return nil, f.riskErr
	}
	if f.risk == nil {
		out := make([]model.RiskScore, 0, len(ideas))
		for i, idea := range ideas {
			out = append(out, model.RiskScore{IdeaID: idea.IdeaID, Allowed: true, Score: 90 - i*5})
		}
		return out, nil
	}
	return f.risk, nil
}

func (f *fakeGeneration) BuildProducts(_ context.Context, _ model.Signal, _ string, ideas []model.ProductIdea) ([]model.ProductDraft, error) {
	f.buildCalls = append(f.buildCalls, ideas)
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	out := make([]model.ProductDraft, 0, len(ideas))
	for _, idea := range ideas {
		out = append(out, model.ProductDraft{
			IdeaID:       idea.IdeaID,
			Title:        idea.Title,
			Price:        24.99,
			Tags:         idea.Tags,
			VisualPrompt: "art for " + idea.Title,
		})
	}
	return out, nil
}

// fakePublisher fails for idea ids listed in failFor.
type fakePublisher struct {
	failFor map[string]bool
	calls   int
}

func (p *fakePublisher) Publish(_ context.Context, draft model.ProductDraft) (model.Listing, error) {
	p.calls++
	if p.failFor[draft.IdeaID] {
		return model.Listing{}, fmt.Errorf("%w: upstream 502", generation.ErrTransport)
	}
	return model.Listing{ID: "listing-" + draft.IdeaID, Status: "draft"}, nil
}

// fakeMedia fails for prompts containing the fail marker.
type fakeMedia struct {
	failSubstring string
}

func (m *fakeMedia) GenerateAsset(_ context.Context, prompt string) (string, error) {
	if m.failSubstring != "" && strings.Contains(prompt, m.failSubstring) {
		return "", errors.New("render timeout")
	}
	return "https://assets.test/" + strings.ReplaceAll(prompt, " ", "-"), nil
}

func testSignal(topProb float64) model.Signal {
	return model.Signal{
		MarketID:      "mkt-1",
		Name:          "Will the home team win the final",
		Kind:          "sports",
		Probabilities: map[string]float64{"yes": topProb, "no": 1 - topProb},
		Source:        "poly",
		RawConfidence: topProb,
	}
}

func newRunner(gen generation.Service, pub *fakePublisher, store eventlog.Store, opts ...pipeline.Option) (*pipeline.Runner, *brain.Adjuster) {
	adjuster := brain.New("merchant", store)
	return pipeline.New(gen, pub, adjuster, opts...), adjuster
}

func TestRunner_CompletedRun(t *testing.T) {
	Convey("Given a high-probability shoppable signal", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		gen := &fakeGeneration{}
		pub := &fakePublisher{}
		runner, _ := newRunner(gen, pub, store)

		Convey("When the pipeline runs", func() {
			opp, err := runner.Run(ctx, testSignal(0.85))
			So(err, ShouldBeNil)

			Convey("Then the run completes", func() {
				So(opp.Status, ShouldEqual, model.StatusCompleted)
			})

			Convey("And the audit trail has one line per stage plus the terminal line", func() {
				So(opp.Audit, ShouldHaveLength, 8)
				So(opp.Audit[0], ShouldStartWith, "[PREFILTER]")
				So(opp.Audit[1], ShouldStartWith, "[CLASSIFY]")
				So(opp.Audit[2], ShouldStartWith, "[IDEAS]")
				So(opp.Audit[3], ShouldStartWith, "[RISK]")
				So(opp.Audit[4], ShouldStartWith, "[PRODUCTS]")
				So(opp.Audit[5], ShouldStartWith, "[MEDIA]")
				So(opp.Audit[6], ShouldStartWith, "[PUBLISH]")
				So(opp.LastAudit(), ShouldContainSubstring, "completed")
			})

			Convey("And with no history the confidence passes through", func() {
				So(opp.AdjustedConfidence, ShouldAlmostEqual, 0.85)
				So(opp.BiasMultiplier, ShouldAlmostEqual, 1.0)
				So(opp.Recommendation, ShouldEqual, pipeline.DecisionPublish)
			})

			Convey("And both lifecycle events are recorded", func() {
				signals, qerr := store.Query(ctx, eventlog.Filter{EventType: eventlog.TypeSignalDetected})
				So(qerr, ShouldBeNil)
				So(signals, ShouldHaveLength, 1)
				strategies, qerr := store.Query(ctx, eventlog.Filter{EventType: eventlog.TypeStrategyGenerated})
				So(qerr, ShouldBeNil)
				So(strategies, ShouldHaveLength, 1)
				So(strategies[0].Properties["recommendation"], ShouldEqual, "publish")
			})

			Convey("And every published draft gets a listing", func() {
				So(opp.Publish, ShouldNotBeNil)
				So(opp.Publish.Created, ShouldHaveLength, 2)
				So(opp.Publish.Errors, ShouldBeEmpty)
			})
		})
	})
}

func TestRunner_PrefilterStop(t *testing.T) {
	Convey("Given a signal below the probability threshold", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		gen := &fakeGeneration{}
		pub := &fakePublisher{}
		runner, _ := newRunner(gen, pub, store)

		Convey("When the pipeline runs", func() {
			opp, err := runner.Run(ctx, testSignal(0.55))
			So(err, ShouldBeNil)

			Convey("Then the run stops at the prefilter", func() {
				So(opp.Status, ShouldEqual, model.StatusStopped)
				So(opp.Audit, ShouldHaveLength, 2)
				So(opp.Audit[0], ShouldContainSubstring, "passed=false")
				So(opp.LastAudit(), ShouldContainSubstring, "stopped")
			})

			Convey("And only the signal event is recorded", func() {
				So(store.Len(), ShouldEqual, 1)
				events, qerr := store.Query(ctx, eventlog.Filter{EventType: eventlog.TypeSignalDetected})
				So(qerr, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
			})

			Convey("And no downstream collaborator ran", func() {
				So(gen.buildCalls, ShouldBeEmpty)
				So(pub.calls, ShouldEqual, 0)
			})
		})

		Convey("When a custom threshold admits the signal", func() {
			low, _ := newRunner(gen, pub, store, pipeline.WithThreshold(0.50))
			opp, err := low.Run(ctx, testSignal(0.55))
			So(err, ShouldBeNil)

			Convey("Then the run passes the gate", func() {
				So(opp.Status, ShouldEqual, model.StatusCompleted)
			})
		})
	})
}

func TestRunner_ClassifyStop(t *testing.T) {
	Convey("Given a classifier verdict of not shoppable", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		gen := &fakeGeneration{
			classify: model.Classification{Shoppable: false, Reason: "political content", Category: "Politics"},
		}
		pub := &fakePublisher{}
		runner, _ := newRunner(gen, pub, store)

		Convey("When the pipeline runs", func() {
			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then the run stops after classification", func() {
				So(opp.Status, ShouldEqual, model.StatusStopped)
				So(opp.Audit, ShouldHaveLength, 3)
				So(opp.Audit[1], ShouldContainSubstring, "shoppable=false")
			})

			Convey("And the classification is retained for the audit", func() {
				So(opp.Classification, ShouldNotBeNil)
				So(opp.Classification.Category, ShouldEqual, "Politics")
			})
		})
	})
}

func TestRunner_FormatFallbacks(t *testing.T) {
	Convey("Given upstream format failures at recoverable stages", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		pub := &fakePublisher{}

		Convey("When classification output is unparseable", func() {
			gen := &fakeGeneration{
				classifyErr: fmt.Errorf("%w: no json object", generation.ErrBadResponse),
			}
			runner, _ := newRunner(gen, pub, store)
			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then the signal kind becomes the category and the run continues", func() {
				So(opp.Status, ShouldEqual, model.StatusCompleted)
				So(opp.Classification.Shoppable, ShouldBeTrue)
				So(opp.Classification.Category, ShouldEqual, "sports")
			})
		})

		Convey("When risk output is unparseable", func() {
			gen := &fakeGeneration{
				riskErr: fmt.Errorf("%w: truncated", generation.ErrBadResponse),
			}
			runner, _ := newRunner(gen, pub, store)
			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then every idea gets a neutral allowed score", func() {
				So(opp.Status, ShouldEqual, model.StatusCompleted)
				So(opp.Risk, ShouldHaveLength, 3)
				for _, rs := range opp.Risk {
					So(rs.Allowed, ShouldBeTrue)
					So(rs.Score, ShouldEqual, 50)
				}
			})
		})
	})
}

func TestRunner_FatalStageErrors(t *testing.T) {
	Convey("Given failures at unrecoverable stages", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		pub := &fakePublisher{}

		Convey("When ideation output is unparseable", func() {
			gen := &fakeGeneration{
				ideateErr: fmt.Errorf("%w: empty ideas", generation.ErrBadResponse),
			}
			runner, _ := newRunner(gen, pub, store)
			opp, err := runner.Run(ctx, testSignal(0.9))

			Convey("Then the run aborts with a stage error naming ideate", func() {
				So(opp, ShouldBeNil)
				var stageErr *pipeline.StageError
				So(errors.As(err, &stageErr), ShouldBeTrue)
				So(stageErr.Stage, ShouldEqual, stage.Ideate)
				So(stageErr.MarketID, ShouldEqual, "mkt-1")
				So(errors.Is(err, generation.ErrBadResponse), ShouldBeTrue)
			})
		})

		Convey("When the transport fails during classification", func() {
			gen := &fakeGeneration{
				classifyErr: fmt.Errorf("%w: connection refused", generation.ErrTransport),
			}
			runner, _ := newRunner(gen, pub, store)
			_, err := runner.Run(ctx, testSignal(0.9))

			Convey("Then there is no fallback", func() {
				var stageErr *pipeline.StageError
				So(errors.As(err, &stageErr), ShouldBeTrue)
				So(stageErr.Stage, ShouldEqual, stage.Classify)
			})
		})

		Convey("When product building fails", func() {
			gen := &fakeGeneration{
				buildErr: fmt.Errorf("%w: malformed drafts", generation.ErrBadResponse),
			}
			runner, _ := newRunner(gen, pub, store)
			_, err := runner.Run(ctx, testSignal(0.9))

			Convey("Then the build stage aborts the run", func() {
				var stageErr *pipeline.StageError
				So(errors.As(err, &stageErr), ShouldBeTrue)
				So(stageErr.Stage, ShouldEqual, stage.Build)
			})
		})
	})
}

func TestRunner_InvalidSignal(t *testing.T) {
	Convey("Given a malformed signal", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		runner, _ := newRunner(&fakeGeneration{}, &fakePublisher{}, store)

		sig := testSignal(0.9)
		sig.MarketID = ""

		Convey("When the pipeline runs", func() {
			opp, err := runner.Run(ctx, sig)

			Convey("Then it is rejected before any state change", func() {
				So(opp, ShouldBeNil)
				So(errors.Is(err, pipeline.ErrInvalidSignal), ShouldBeTrue)
				So(store.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestRunner_BuildSelection(t *testing.T) {
	Convey("Given five ideas with mixed risk verdicts", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		gen := &fakeGeneration{
			ideas: []model.ProductIdea{
				{IdeaID: "i1", Title: "Poster"},
				{IdeaID: "i2", Title: "Shirt"},
				{IdeaID: "i3", Title: "Mug"},
				{IdeaID: "i4", Title: "Sticker"},
				{IdeaID: "i5", Title: "Tote"},
			},
			risk: []model.RiskScore{
				{IdeaID: "i1", Allowed: true, Score: 60},
				{IdeaID: "i2", Allowed: false, Score: 95},
				{IdeaID: "i3", Allowed: true, Score: 88},
				{IdeaID: "i4", Allowed: true, Score: 72},
				{IdeaID: "i5", Allowed: false, Score: 90},
			},
		}
		pub := &fakePublisher{}
		runner, _ := newRunner(gen, pub, store)

		Convey("When the pipeline runs", func() {
			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then only the two highest-scoring allowed ideas are built", func() {
				So(gen.buildCalls, ShouldHaveLength, 1)
				built := gen.buildCalls[0]
				So(built, ShouldHaveLength, 2)
				So(built[0].IdeaID, ShouldEqual, "i3")
				So(built[1].IdeaID, ShouldEqual, "i4")
				So(opp.Drafts, ShouldHaveLength, 2)
			})
		})

		Convey("When no idea is allowed", func() {
			for i := range gen.risk {
				gen.risk[i].Allowed = false
			}
			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then the run still completes with zero drafts", func() {
				So(opp.Status, ShouldEqual, model.StatusCompleted)
				So(opp.Drafts, ShouldBeEmpty)
				So(gen.buildCalls, ShouldBeEmpty)
				So(opp.Publish.Created, ShouldBeEmpty)
			})
		})
	})
}

func TestRunner_MediaStage(t *testing.T) {
	Convey("Given a runner with a media generator", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		gen := &fakeGeneration{}
		pub := &fakePublisher{}

		Convey("When one asset render fails", func() {
			runner, _ := newRunner(gen, pub, store,
				pipeline.WithMediaGenerator(&fakeMedia{failSubstring: "Poster"}))
			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then the run completes and the failure is per item", func() {
				So(opp.Status, ShouldEqual, model.StatusCompleted)
				So(opp.Audit[5], ShouldContainSubstring, "generated=1 failed=1")
			})

			Convey("And the surviving draft carries its asset reference", func() {
				var withAsset, withoutAsset int
				for _, d := range opp.Drafts {
					if d.AssetRef != "" {
						withAsset++
					} else {
						withoutAsset++
					}
				}
				So(withAsset, ShouldEqual, 1)
				So(withoutAsset, ShouldEqual, 1)
			})
		})

		Convey("When no media generator is configured", func() {
			runner, _ := newRunner(gen, pub, store)
			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then the stage is skipped but still audited", func() {
				So(opp.Audit[5], ShouldContainSubstring, "skipped")
			})
		})
	})
}

func TestRunner_PublishStage(t *testing.T) {
	Convey("Given a publisher that fails for one draft", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()
		gen := &fakeGeneration{}
		pub := &fakePublisher{failFor: map[string]bool{"i1": true}}
		runner, _ := newRunner(gen, pub, store)

		Convey("When the pipeline runs", func() {
			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then the failure is collected, not fatal", func() {
				So(opp.Status, ShouldEqual, model.StatusCompleted)
				So(opp.Publish.Created, ShouldHaveLength, 1)
				So(opp.Publish.Errors, ShouldHaveLength, 1)
				So(opp.Publish.Errors[0].IdeaID, ShouldEqual, "i1")
			})

			Convey("And the audit line reports both counts", func() {
				So(opp.Audit[6], ShouldContainSubstring, "created=1 errors=1")
			})
		})
	})
}

func TestRunner_RecommendationPolicy(t *testing.T) {
	Convey("Given feedback histories that swing the adjusted confidence", t, func() {
		ctx := context.Background()
		gen := &fakeGeneration{}
		pub := &fakePublisher{}

		Convey("When heavy rejections halve a strong signal", func() {
			store := eventlog.NewMemoryStore()
			runner, adjuster := newRunner(gen, pub, store)
			for i := 0; i < 4; i++ {
				So(adjuster.RecordFeedback(ctx, fmt.Sprintf("m-%d", i), "Sports", "reject", "flop"), ShouldBeNil)
			}

			opp, err := runner.Run(ctx, testSignal(0.9))
			So(err, ShouldBeNil)

			Convey("Then the recommendation drops to monitor", func() {
				So(opp.AdjustedConfidence, ShouldAlmostEqual, 0.45)
				So(opp.Recommendation, ShouldEqual, pipeline.DecisionMonitor)
				So(opp.BiasExplanation, ShouldContainSubstring, "heavy_penalty")
			})
		})

		Convey("When the penalty pushes the confidence below the monitor band", func() {
			store := eventlog.NewMemoryStore()
			runner, adjuster := newRunner(gen, pub, store)
			for i := 0; i < 4; i++ {
				So(adjuster.RecordFeedback(ctx, fmt.Sprintf("m-%d", i), "Sports", "reject", "flop"), ShouldBeNil)
			}

			opp, err := runner.Run(ctx, testSignal(0.75))
			So(err, ShouldBeNil)

			Convey("Then the recommendation is reject", func() {
				So(opp.AdjustedConfidence, ShouldAlmostEqual, 0.375)
				So(opp.Recommendation, ShouldEqual, pipeline.DecisionReject)
			})
		})
	})
}
