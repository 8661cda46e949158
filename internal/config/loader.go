package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PROPHET_CONFIG is set
//  3. env (prefix PROPHET_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PROPHET_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PROPHET_ADDR, PROPHET_QUEUE_SIZE, ...
	// Keys like PROPHET_GENERATION__API_KEY map to generation.api_key;
	// single underscores are preserved to match koanf tags on the struct.
	envProvider := env.Provider("PROPHET_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "prophet_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.EventsPath == "":
		return fmt.Errorf("%w: events_path must not be empty", ErrInvalidConfig)
	case cfg.SubjectID == "":
		return fmt.Errorf("%w: subject_id must not be empty", ErrInvalidConfig)
	case cfg.PrefilterThreshold <= 0 || cfg.PrefilterThreshold > 1:
		return fmt.Errorf("%w: prefilter_threshold must be in (0,1]", ErrInvalidConfig)
	case cfg.BuildLimit <= 0:
		return fmt.Errorf("%w: build_limit must be positive", ErrInvalidConfig)
	case cfg.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case cfg.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case cfg.CacheSize <= 0:
		return fmt.Errorf("%w: cache_size must be positive", ErrInvalidConfig)
	}
	return nil
}
