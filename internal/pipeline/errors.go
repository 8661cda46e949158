package pipeline

import (
	"errors"
	"fmt"

	"github.com/sigil-labs/prophet/internal/domain/stage"
)

// Sentinel kinds for pipeline errors.
var (
	// ErrInvalidSignal rejects malformed signals before any state change.
	ErrInvalidSignal = errors.New("invalid signal")
)

// StageError is a fatal pipeline failure. It carries the stage, the
// opportunity identity and the partial audit trail so the caller can log
// and retry the whole run; the pipeline itself never retries.
type StageError struct {
	Stage    stage.Stage
	RunID    string
	MarketID string
	Audit    []string
	Err      error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	last := ""
	if len(e.Audit) > 0 {
		last = e.Audit[len(e.Audit)-1]
	}
	return fmt.Sprintf("stage %s failed for market %s (run %s, last audit %q): %v",
		e.Stage, e.MarketID, e.RunID, last, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *StageError) Unwrap() error {
	return e.Err
}
