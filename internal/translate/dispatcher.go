package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/ent0n29/babel/internal/cache"
	"github.com/ent0n29/babel/internal/observability"
	"github.com/ent0n29/babel/internal/redact"
	"github.com/ent0n29/babel/internal/reliability"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
	DefaultWorkers  = 10
)

// Source reports where a dispatched translation came from.
type Source string

const (
	SourceRecent     Source = "recent"
	SourceDurable    Source = "durable"
	SourceTranslator Source = "translator"
)

type Result struct {
	Text   string
	Source Source
	// Shared is set when the value came from a concurrent identical dispatch.
	Shared bool
}

type DispatcherConfig struct {
	Attempts int
	Backoff  time.Duration
	Workers  int
}

// Dispatcher resolves (normalized text, language) against the layered cache and falls
// back to the translator with bounded retry. Concurrent misses for one key share a
// single translator call, and a fixed worker pool bounds in-flight calls.
type Dispatcher struct {
	translator Translator
	cache      *cache.Layered
	policy     reliability.Policy
	workers    *semaphore.Weighted
	flight     singleflight.Group
	metrics    *observability.Metrics
	logger     *log.Logger
}

func NewDispatcher(translator Translator, c *cache.Layered, metrics *observability.Metrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Dispatcher{
		translator: translator,
		cache:      c,
		policy:     reliability.Policy{Attempts: cfg.Attempts, Backoff: cfg.Backoff},
		workers:    semaphore.NewWeighted(int64(cfg.Workers)),
		metrics:    metrics,
		logger:     log.With("component", "dispatcher"),
	}
}

// Dispatch returns the translation of normalized into language.
// Failures are never cached.
func (d *Dispatcher) Dispatch(ctx context.Context, normalized, language string) (Result, error) {
	code, err := TargetCode(language)
	if err != nil {
		return Result{}, err
	}
	key := cache.Key(normalized, language)

	if v, tier, ok := d.cache.Lookup(key); ok {
		d.metrics.CacheLookup(string(tier))
		d.logger.Debug("cache hit", "tier", tier, "key", redact.Value(key))
		return Result{Text: v, Source: Source(tier)}, nil
	}
	d.metrics.CacheLookup(string(cache.TierNone))

	// The shared call must outlive any single caller that gives up waiting.
	flightCtx := context.WithoutCancel(ctx)
	ch := d.flight.DoChan(key, func() (any, error) {
		return d.resolve(flightCtx, key, normalized, code)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		res := r.Val.(Result)
		if r.Shared {
			res.Shared = true
			d.metrics.ObserveIndicator("singleflight_shared")
		}
		return res, nil
	}
}

func (d *Dispatcher) resolve(ctx context.Context, key, normalized, code string) (Result, error) {
	if err := d.workers.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer d.workers.Release(1)

	// A flight that finished while this one waited for a worker may have filled the key.
	if v, tier, ok := d.cache.Lookup(key); ok {
		return Result{Text: v, Source: Source(tier)}, nil
	}

	start := time.Now()
	var translated string
	err := reliability.Retry(ctx, d.policy, func(ctx context.Context, attempt int) error {
		callStart := time.Now()
		out, err := d.translator.Translate(ctx, normalized, code)
		d.metrics.ObserveStage("translator_call", time.Since(callStart))
		if err != nil {
			d.metrics.TranslatorCall(errorLabel(err))
			return err
		}
		d.metrics.TranslatorCall("ok")
		translated = out
		return nil
	}, func(attempt int, err error) {
		d.logger.Warn("translation attempt failed, retrying", "attempt", attempt, "key", redact.Value(key), "err", err)
	})
	elapsed := time.Since(start)
	d.metrics.ObserveDispatchLatency(elapsed)
	d.metrics.ObserveStage("dispatch_total", elapsed)
	if err != nil {
		d.logger.Error("translation failed", "key", redact.Value(key), "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrTranslationUnavailable, err)
	}

	d.cache.Store(key, translated)
	d.logger.Info("translated", "key", redact.Value(key), "target", code, "elapsed", elapsed)
	return Result{Text: translated, Source: SourceTranslator}, nil
}

func errorLabel(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return "status_" + reliability.StatusClass(se.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
