package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sigil-labs/prophet/internal/adapters/commerce"
	"github.com/sigil-labs/prophet/internal/adapters/eventlog"
	"github.com/sigil-labs/prophet/internal/adapters/generation"
	"github.com/sigil-labs/prophet/internal/adapters/http/api"
	"github.com/sigil-labs/prophet/internal/adapters/media"
	"github.com/sigil-labs/prophet/internal/app"
	"github.com/sigil-labs/prophet/internal/config"
	"github.com/sigil-labs/prophet/internal/domain/brain"
	"github.com/sigil-labs/prophet/internal/pipeline"
	"github.com/sigil-labs/prophet/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 120 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store := eventlog.NewFileStore(eventlog.WithPath(cfg.EventsPath))
	adjuster := brain.New(cfg.SubjectID, store, brain.WithModelVersion(cfg.ModelVersion))

	runner := pipeline.New(
		buildGeneration(ctx, log, cfg),
		buildPublisher(ctx, log, cfg),
		adjuster,
		pipeline.WithThreshold(cfg.PrefilterThreshold),
		pipeline.WithBuildLimit(cfg.BuildLimit),
		pipeline.WithCallTimeout(time.Duration(cfg.CallTimeoutMS)*time.Millisecond),
		buildMediaOption(ctx, log, cfg),
	)

	svc := app.New(runner, adjuster,
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithCacheSize(cfg.CacheSize),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildGeneration selects the live chat backend when an API key is
// configured and the deterministic offline service otherwise.
func buildGeneration(ctx context.Context, log logger.Logger, cfg *config.Config) generation.Service {
	if cfg.Generation.APIKey == "" {
		log.Info(ctx, "no generation api key; using offline generation")
		return generation.NewStatic()
	}

	var opts []generation.HTTPOption
	if cfg.Generation.BaseURL != "" {
		opts = append(opts, generation.WithBaseURL(cfg.Generation.BaseURL))
	}
	if cfg.Generation.Model != "" {
		opts = append(opts, generation.WithModel(cfg.Generation.Model))
	}
	return generation.NewLLM(generation.NewHTTPClient(cfg.Generation.APIKey, opts...))
}

// buildPublisher selects the storefront client when credentials are
// configured and the dry-run publisher otherwise.
func buildPublisher(ctx context.Context, log logger.Logger, cfg *config.Config) commerce.Publisher {
	if cfg.Commerce.AccessToken == "" || cfg.Commerce.StoreDomain == "" {
		log.Info(ctx, "no storefront credentials; using dry-run publisher")
		return commerce.NewDryRunPublisher()
	}

	var opts []commerce.Option
	if cfg.Commerce.APIVersion != "" {
		opts = append(opts, commerce.WithAPIVersion(cfg.Commerce.APIVersion))
	}
	return commerce.NewHTTPPublisher(cfg.Commerce.StoreDomain, cfg.Commerce.AccessToken, opts...)
}

// buildMediaOption enables media enrichment only when an image backend is
// configured; the pipeline skips the stage otherwise.
func buildMediaOption(ctx context.Context, log logger.Logger, cfg *config.Config) pipeline.Option {
	if cfg.Media.APIKey == "" || cfg.Media.BaseURL == "" {
		log.Info(ctx, "no media api key; media enrichment disabled")
		return func(*pipeline.Runner) {}
	}

	var opts []media.Option
	if cfg.Media.Model != "" {
		opts = append(opts, media.WithModel(cfg.Media.Model))
	}
	return pipeline.WithMediaGenerator(media.NewHTTPGenerator(cfg.Media.BaseURL, cfg.Media.APIKey, opts...))
}
