package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/babel/internal/cache"
	"github.com/ent0n29/babel/internal/config"
	"github.com/ent0n29/babel/internal/gate"
	"github.com/ent0n29/babel/internal/httpapi"
	"github.com/ent0n29/babel/internal/live"
	"github.com/ent0n29/babel/internal/observability"
	"github.com/ent0n29/babel/internal/pipeline"
	"github.com/ent0n29/babel/internal/session"
	"github.com/ent0n29/babel/internal/synth"
	"github.com/ent0n29/babel/internal/textnorm"
	"github.com/ent0n29/babel/internal/transcript"
	"github.com/ent0n29/babel/internal/translate"
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Registry  *session.Registry
	Feed      *transcript.Feed
	Driver    *live.Driver
	Pipeline  *pipeline.Service
	Metrics   *observability.Metrics
	Providers Providers

	// Cleanup stops streaming, releases devices and engines and discards every
	// session and queued message. It is safe to call more than once.
	Cleanup func(ctx context.Context) error
}

// Build wires every service from cfg. metrics may be nil to register on the default
// Prometheus registry under cfg.MetricsNamespace.
func Build(_ context.Context, cfg config.Config, metrics *observability.Metrics) (*BuildResult, error) {
	if metrics == nil {
		metrics = observability.NewMetrics(cfg.MetricsNamespace)
	}

	providers, err := resolveProviders(cfg)
	if err != nil {
		return nil, err
	}

	norm, err := textnorm.New(cfg.NormalizerMemoSize)
	if err != nil {
		return nil, fmt.Errorf("normalizer init failed: %w", err)
	}
	layered, err := cache.NewLayered(cache.Config{
		RecentSize:  cfg.CacheRecentSize,
		DurableSize: cfg.CacheDurableSize,
		DurableTTL:  cfg.CacheDurableTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}

	registry := session.NewRegistry(cfg.MailboxSize)
	registry.SetChangeHook(metrics.SetActiveSessions)
	registry.SetDropHook(func(string) { metrics.MailboxDrop() })

	feed := transcript.NewFeed(cfg.MailboxSize)
	driver := live.NewDriver(providers.recognizer, providers.source, feed, registry, metrics, live.Config{
		SampleRate: cfg.CaptureSampleRate,
		Frames:     cfg.CaptureFrames,
	})

	dispatcher := translate.NewDispatcher(providers.translator, layered, metrics, translate.DispatcherConfig{
		Attempts: cfg.DispatchAttempts,
		Backoff:  cfg.DispatchBackoff,
		Workers:  cfg.DispatchWorkers,
	})
	pipe := pipeline.New(pipeline.Deps{
		Normalizer: norm,
		Gate: gate.New(gate.Config{
			Cooldown:  cfg.GateCooldown,
			RateLimit: cfg.GateRateLimit,
			Window:    cfg.GateRateWindow,
		}),
		Dispatcher: dispatcher,
		Registry:   registry,
		Metrics:    metrics,
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Pipeline: pipe,
		Registry: registry,
		Feed:     feed,
		Driver:   driver,
		Synth:    synth.NewService(providers.synth, "", metrics),
		Metrics:  metrics,
	})

	logger := log.With("component", "app")
	cleanup := func(ctx context.Context) error {
		var errs []error
		if err := driver.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop streaming: %w", err))
		}
		sessions := registry.Clear()
		drained := feed.Drain()
		if providers.cleanup != nil {
			providers.cleanup()
			providers.cleanup = nil
		}
		logger.Info("cleanup complete", "sessions_cleared", sessions, "transcripts_drained", drained)
		return errors.Join(errs...)
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Registry:  registry,
		Feed:      feed,
		Driver:    driver,
		Pipeline:  pipe,
		Metrics:   metrics,
		Providers: providers.names,
		Cleanup:   cleanup,
	}, nil
}
