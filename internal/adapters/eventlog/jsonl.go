package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/sigil-labs/prophet/pkg/metrics"
)

// Default file store configuration constants.
const (
	defaultPath     = "events.jsonl"
	defaultFileMode = 0o644
	// maxLineSize bounds a single serialized event; properties are small
	// structured records, never document payloads.
	maxLineSize = 1 << 20
)

// FileStore implements Store on a local JSONL file, one event per line.
// Appends are serialized under a mutex and written as a single line so a
// crash can tear at most the final line, which queries skip.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// FileOption applies a configuration option to the FileStore.
type FileOption func(*FileStore)

// WithPath sets the JSONL file path.
func WithPath(path string) FileOption {
	return func(s *FileStore) {
		if path != "" {
			s.path = path
		}
	}
}

// WithClock overrides the timestamp source. Used by tests to get
// deterministic event ordering.
func WithClock(now func() time.Time) FileOption {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFileStore creates a JSONL-backed event store with configuration options.
func NewFileStore(opts ...FileOption) *FileStore {
	s := &FileStore{
		path: defaultPath,
		now:  func() time.Time { return time.Now().UTC() },
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Append durably records one event at the end of the log file.
func (s *FileStore) Append(ctx context.Context, subjectID, eventType string, properties map[string]any) error {
	start := time.Now()
	defer func() {
		metrics.RecordEventStoreLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}

	e := Event{
		Timestamp:  s.now(),
		SubjectID:  subjectID,
		EventType:  eventType,
		Properties: properties,
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, defaultFileMode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}
	defer f.Close()

	// A torn final line from a prior crash must not glue itself onto the
	// next event; terminate it first so the new line stays parseable.
	if tail, err := lastByte(f); err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	} else if tail != 0 && tail != '\n' {
		line = append([]byte{'\n'}, line...)
	}

	// One write call per event keeps the line contiguous on disk.
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}

	metrics.RecordEventAppended(eventType)
	return nil
}

// lastByte returns the final byte of the file, or 0 for an empty file.
func lastByte(f *os.File) (byte, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, nil
	}
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Query returns matching events in append order. A missing log file yields
// an empty slice; an unparseable line (torn tail after interruption) is
// skipped, not fatal.
func (s *FileStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer f.Close()

	events := []Event{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			// Partially written final line; ignore.
			continue
		}
		if filter.matches(e) {
			events = append(events, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return events, nil
}

// Reset removes the log file. A missing file is not an error.
func (s *FileStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrReset, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrReset, err)
	}
	return nil
}

// Path returns the underlying file path.
func (s *FileStore) Path() string {
	return s.path
}
