// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer sources.
// - External errors must be wrapped via this package's sentinel kinds.
package config

import "runtime"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventsPath locates the append-only event log file.
	EventsPath string `koanf:"events_path"`

	// SubjectID scopes all history events; one deployment serves one subject.
	SubjectID string `koanf:"subject_id"`

	// PrefilterThreshold gates signals on their top outcome probability.
	PrefilterThreshold float64 `koanf:"prefilter_threshold"`

	// BuildLimit caps how many allowed ideas become product drafts.
	BuildLimit int `koanf:"build_limit"`

	// CallTimeoutMS bounds each external collaborator call.
	CallTimeoutMS int `koanf:"call_timeout_ms"`

	// QueueSize bounds the in-memory signal queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count"`

	// CacheSize bounds the finished-run result cache.
	CacheSize int `koanf:"cache_size"`

	// ModelVersion is stamped onto every strategy event.
	ModelVersion string `koanf:"model_version"`

	// Generation holds the text generation backend settings.
	Generation GenerationConfig `koanf:"generation"`

	// Media holds the image generation backend settings.
	Media MediaConfig `koanf:"media"`

	// Commerce holds the storefront publisher settings.
	Commerce CommerceConfig `koanf:"commerce"`
}

// GenerationConfig configures the chat completions backend. An empty APIKey
// selects the deterministic offline service.
type GenerationConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// MediaConfig configures the image generation backend. An empty APIKey
// disables media enrichment.
type MediaConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// CommerceConfig configures the storefront publisher. An empty AccessToken
// selects the dry-run publisher.
type CommerceConfig struct {
	StoreDomain string `koanf:"store_domain"`
	AccessToken string `koanf:"access_token"`
	APIVersion  string `koanf:"api_version"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		EventsPath:         "events.jsonl",
		SubjectID:          "prophet",
		PrefilterThreshold: 0.70,
		BuildLimit:         2,
		CallTimeoutMS:      45_000,
		QueueSize:          1024,
		WorkerCount:        runtime.NumCPU(),
		CacheSize:          10_000,
		ModelVersion:       "v1.0",
	}
}
