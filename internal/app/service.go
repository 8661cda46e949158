// Package app provides the core business service that implements
// the dependencies required by the HTTP API.
package app

import (
	"context"
	"sync"

	"github.com/sigil-labs/prophet/internal/adapters/mq/queue"
	"github.com/sigil-labs/prophet/internal/domain/brain"
	"github.com/sigil-labs/prophet/internal/domain/learning"
	"github.com/sigil-labs/prophet/internal/domain/model"
	"github.com/sigil-labs/prophet/internal/pipeline"
	"github.com/sigil-labs/prophet/pkg/logger"
	"github.com/sigil-labs/prophet/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultWorkerCount = 4
	defaultQueueSize   = 1024
	defaultCacheSize   = 10_000
)

// Service wires the pipeline, the brain and the signal queue behind the
// HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	runner      *pipeline.Runner
	adjuster    *brain.Adjuster
	signalQueue queue.Queue
	results     *resultCache

	// Configuration
	workerCount int
	queueSize   int
	cacheSize   int

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of pipeline worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the signal queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCacheSize sets the size of the finished-run result cache.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service around a pipeline runner and its adjuster.
func New(runner *pipeline.Runner, adjuster *brain.Adjuster, opts ...Option) *Service {
	s := &Service{
		runner:      runner,
		adjuster:    adjuster,
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		cacheSize:   defaultCacheSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the queue, the cache and the worker goroutines.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	s.results = newResultCache(s.cacheSize)
	s.signalQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	signals := s.signalQueue.Dequeue(workerCtx)
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx, signals)
	}
	metrics.UpdateWorkerCount(s.workerCount)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("cacheSize", s.cacheSize),
	)

	return nil
}

// Stop gracefully shuts down the workers and the queue. Signals already
// dequeued finish their runs.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping service...")

	// Close first so workers drain what was already queued, then cancel.
	if s.signalQueue != nil {
		_ = s.signalQueue.Close()
	}
	s.wg.Wait()
	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	metrics.UpdateWorkerCount(0)
	s.logger.Info(context.Background(), "service stopped")
}

// worker drains the signal queue, running each signal through the pipeline
// and caching the finished opportunity.
func (s *Service) worker(ctx context.Context, signals <-chan queue.Signal) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			opp, err := s.runner.Run(ctx, sig)
			if err != nil {
				s.logger.Error(ctx, "pipeline run failed",
					logger.String("marketID", sig.MarketID),
					logger.Error(err),
				)
				continue
			}
			s.results.Put(opp)
		}
	}
}

// Enqueue submits a signal for asynchronous processing. Returns false when
// the queue is full or the service is stopped.
func (s *Service) Enqueue(ctx context.Context, sig model.Signal) bool {
	s.mu.RLock()
	q := s.signalQueue
	started := s.started
	s.mu.RUnlock()

	if !started {
		return false
	}
	return q.Enqueue(ctx, sig)
}

// ProcessSignal runs a signal through the pipeline synchronously and caches
// the finished opportunity.
func (s *Service) ProcessSignal(ctx context.Context, sig model.Signal) (*model.Opportunity, error) {
	opp, err := s.runner.Run(ctx, sig)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	cache := s.results
	s.mu.RUnlock()
	if cache != nil {
		cache.Put(opp)
	}
	return opp, nil
}

// SubmitFeedback records a human decision on a previously generated strategy.
func (s *Service) SubmitFeedback(ctx context.Context, marketID, category, action, reason string) error {
	return s.adjuster.RecordFeedback(ctx, marketID, category, action, reason)
}

// Result returns the cached finished run for a market id, if present.
func (s *Service) Result(_ context.Context, marketID string) (*model.Opportunity, bool) {
	s.mu.RLock()
	cache := s.results
	s.mu.RUnlock()

	if cache == nil {
		return nil, false
	}
	return cache.Get(marketID)
}

// CategoryStats returns per-category feedback history from the brain.
func (s *Service) CategoryStats(ctx context.Context) (map[string]learning.Stats, error) {
	return s.adjuster.Stats(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"cacheSize":   s.cacheSize,
	}

	if s.started {
		queueLen := s.signalQueue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["cachedRuns"] = s.results.Len()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
