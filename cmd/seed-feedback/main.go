// Command seed-feedback populates the event log with a demo feedback
// history so the bias table has something to chew on. Categories with
// heavy rejection histories will penalize future signals; clean
// histories will boost them.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/uuid"
	"github.com/sigil-labs/prophet/internal/adapters/eventlog"
	"github.com/sigil-labs/prophet/internal/domain/brain"
	"github.com/sigil-labs/prophet/pkg/logger"
)

type seed struct {
	category string
	action   string
	reason   string
}

func main() {
	var (
		eventsPath = flag.String("events", "events.jsonl", "Path to the event log file")
		subjectID  = flag.String("subject", "prophet", "Subject id scoping the history")
		reset      = flag.Bool("reset", false, "Clear the event log before seeding")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get().Named("seed-feedback")

	ctx := context.Background()
	store := eventlog.NewFileStore(eventlog.WithPath(*eventsPath))

	if *reset {
		if err := store.Reset(ctx); err != nil {
			log.Error(ctx, "reset failed", logger.Error(err))
			return
		}
		log.Info(ctx, "event log cleared", logger.String("path", *eventsPath))
	}

	adjuster := brain.New(*subjectID, store)

	seeds := []seed{
		{"Crypto", "reject", "Too volatile, poor conversion on past drops"},
		{"Crypto", "reject", "Audience overlap with prior failed launch"},
		{"Crypto", "reject", "Margin too thin after fees"},
		{"Sports", "publish", "Strong seasonal demand"},
		{"Sports", "publish", "Past drop sold through in a week"},
		{"Tech", "publish", "Evergreen niche with steady traffic"},
		{"Politics", "reject", "Brand safety concerns"},
	}

	for _, s := range seeds {
		marketID := "seed-" + uuid.NewString()
		if err := adjuster.RecordFeedback(ctx, marketID, s.category, s.action, s.reason); err != nil {
			log.Error(ctx, "seed failed",
				logger.String("category", s.category), logger.Error(err))
			return
		}
	}

	log.Info(ctx, "feedback history seeded",
		logger.Int("events", len(seeds)),
		logger.String("path", *eventsPath),
	)
}
