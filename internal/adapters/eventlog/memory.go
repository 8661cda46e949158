package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. Useful for tests and demos where
// no durable log is wanted; semantics mirror FileStore.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	now    func() time.Time
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the timestamp source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an in-memory event store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now: func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Append records one event after all prior appends.
func (s *MemoryStore) Append(ctx context.Context, subjectID, eventType string, properties map[string]any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}

	// Copy properties so later caller mutation cannot alter the log.
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{
		Timestamp:  s.now(),
		SubjectID:  subjectID,
		EventType:  eventType,
		Properties: props,
	})
	return nil
}

// Query returns matching events in append order.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Event{}
	for _, e := range s.events {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Reset discards all events.
func (s *MemoryStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrReset, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	return nil
}

// Len returns the current number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
