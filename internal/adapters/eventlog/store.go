// Package eventlog defines the append-only event store interface and errors.
//
// The log is the single source of truth for learning history: events are
// immutable, ordered by append, and only ever discarded by an explicit
// full-log reset.
package eventlog

import (
	"context"
	"time"
)

// Event types recorded by the pipeline and the feedback loop.
const (
	TypeSignalDetected    = "signal_detected"
	TypeStrategyGenerated = "strategy_generated"
	TypeFeedback          = "feedback"
)

// Event is one immutable record in the log.
type Event struct {
	Timestamp  time.Time      `json:"timestamp"`
	SubjectID  string         `json:"subject_id"`
	EventType  string         `json:"event_type"`
	Properties map[string]any `json:"properties"`
}

// Filter narrows a query. Zero-value fields match everything; set fields
// are combined conjunctively.
type Filter struct {
	SubjectID string
	EventType string
}

func (f Filter) matches(e Event) bool {
	if f.SubjectID != "" && e.SubjectID != f.SubjectID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	return true
}

// Store provides append/query access to the event log.
type Store interface {
	// Append durably records one event, ordered after all prior appends.
	// It succeeds or fails atomically; no partial record is ever visible
	// to subsequent queries.
	Append(ctx context.Context, subjectID, eventType string, properties map[string]any) error

	// Query returns events matching the filter in original append order.
	// A missing underlying log yields an empty slice, not an error.
	Query(ctx context.Context, f Filter) ([]Event, error)

	// Reset irreversibly discards all events. Absence of the underlying
	// log is not an error.
	Reset(ctx context.Context) error
}
