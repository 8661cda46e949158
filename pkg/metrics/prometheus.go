// Package metrics provides Prometheus metrics for the Prophet decision service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the Prophet service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Core Business Metrics - pipeline throughput and outcomes
	signalsProcessed  prometheus.Counter
	pipelineStops     *prometheus.CounterVec
	pipelineFailures  *prometheus.CounterVec
	recommendations   *prometheus.CounterVec
	productsPublished prometheus.Counter
	publishErrors     prometheus.Counter
	mediaErrors       prometheus.Counter

	// Learning Metrics - event log and bias application
	eventsAppended *prometheus.CounterVec
	biasApplied    *prometheus.CounterVec

	// Latency Metrics
	pipelineDuration   prometheus.Histogram
	generationLatency  *prometheus.HistogramVec
	eventStoreLatency  prometheus.Histogram

	// Operational Health Metrics
	queueSize   prometheus.Gauge
	workerCount prometheus.Gauge
	cacheSize   prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "prophet",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.signalsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "signals_processed_total",
		Help:      "Total number of market signals that completed a pipeline run",
	})

	m.pipelineStops = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stops_total",
			Help:      "Total number of early pipeline terminations by gating stage",
		},
		[]string{"stage"},
	)

	m.pipelineFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "failures_total",
			Help:      "Total number of fatal pipeline failures by stage",
		},
		[]string{"stage"},
	)

	m.recommendations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "recommendations_total",
			Help:      "Total number of final recommendations by decision",
		},
		[]string{"decision"},
	)

	m.productsPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "products_published_total",
		Help:      "Total number of product drafts accepted by the commerce publisher",
	})

	m.publishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_errors_total",
		Help:      "Total number of per-draft publish failures",
	})

	m.mediaErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "media_errors_total",
		Help:      "Total number of per-draft media generation failures",
	})

	m.eventsAppended = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_appended_total",
			Help:      "Total number of events appended to the event log by type",
		},
		[]string{"event_type"},
	)

	m.biasApplied = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "bias_applied_total",
			Help:      "Total number of confidence adjustments by bias label",
		},
		[]string{"label"},
	)

	m.pipelineDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_milliseconds",
		Help:      "Histogram of full pipeline run duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.generationLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "generation_latency_milliseconds",
			Help:      "Generation service call latency in milliseconds by stage",
			Buckets:   m.histogramBuckets,
		},
		[]string{"stage"},
	)

	m.eventStoreLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "eventlog_append_latency_milliseconds",
		Help:      "Event log append latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the signal intake queue (backlog indicator)",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of pipeline workers (processing capacity)",
	})

	m.cacheSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "result_cache_size",
		Help:      "Current number of entries in the result cache",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// GetRegistry returns the custom Prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers recording against the global manager.

// RecordSignalProcessed increments the processed signal counter.
func RecordSignalProcessed() {
	if globalManager.enabled {
		globalManager.signalsProcessed.Inc()
	}
}

// RecordPipelineStop records an early termination at a gating stage.
func RecordPipelineStop(stage string) {
	if globalManager.enabled {
		globalManager.pipelineStops.WithLabelValues(stage).Inc()
	}
}

// RecordPipelineFailure records a fatal pipeline failure at a stage.
func RecordPipelineFailure(stage string) {
	if globalManager.enabled {
		globalManager.pipelineFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRecommendation records a final recommendation decision.
func RecordRecommendation(decision string) {
	if globalManager.enabled {
		globalManager.recommendations.WithLabelValues(decision).Inc()
	}
}

// RecordProductPublished increments the published product counter.
func RecordProductPublished() {
	if globalManager.enabled {
		globalManager.productsPublished.Inc()
	}
}

// RecordPublishError increments the per-draft publish failure counter.
func RecordPublishError() {
	if globalManager.enabled {
		globalManager.publishErrors.Inc()
	}
}

// RecordMediaError increments the per-draft media failure counter.
func RecordMediaError() {
	if globalManager.enabled {
		globalManager.mediaErrors.Inc()
	}
}

// RecordEventAppended records an event log append by event type.
func RecordEventAppended(eventType string) {
	if globalManager.enabled {
		globalManager.eventsAppended.WithLabelValues(eventType).Inc()
	}
}

// RecordBiasApplied records a confidence adjustment by bias label.
func RecordBiasApplied(label string) {
	if globalManager.enabled {
		globalManager.biasApplied.WithLabelValues(label).Inc()
	}
}

// RecordPipelineDuration records a full run duration in milliseconds.
func RecordPipelineDuration(ms float64) {
	if globalManager.enabled {
		globalManager.pipelineDuration.Observe(ms)
	}
}

// RecordGenerationLatency records a generation call latency by stage.
func RecordGenerationLatency(stage string, ms float64) {
	if globalManager.enabled {
		globalManager.generationLatency.WithLabelValues(stage).Observe(ms)
	}
}

// RecordEventStoreLatency records an event log append latency.
func RecordEventStoreLatency(ms float64) {
	if globalManager.enabled {
		globalManager.eventStoreLatency.Observe(ms)
	}
}

// UpdateQueueSize sets the signal queue size gauge.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateWorkerCount sets the worker count gauge.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// UpdateCacheSize sets the result cache size gauge.
func UpdateCacheSize(size int) {
	if globalManager.enabled {
		globalManager.cacheSize.Set(float64(size))
	}
}

// RecordHTTPRequest records an HTTP request by endpoint, method and status.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
	}
}
