package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SiluPanda/coinmonitor/internal/alerting"
	"github.com/SiluPanda/coinmonitor/internal/catalog"
	"github.com/SiluPanda/coinmonitor/internal/detector"
	"github.com/SiluPanda/coinmonitor/internal/history"
	"github.com/SiluPanda/coinmonitor/internal/scheduler"
	"github.com/SiluPanda/coinmonitor/internal/storage"
)

// Engine coordinates the market signal pipelines: catalog refresh,
// history refresh plus volatility matching, and threshold matching. Each
// pipeline serialises its own ticks; an invocation that arrives while the
// previous one is still running is skipped.
type Engine struct {
	catalog    *catalog.Catalog
	history    *history.Cache
	repo       storage.SubscriptionRepository
	dispatcher *alerting.Dispatcher
	logger     zerolog.Logger
	multiplier float64

	volatilityMu sync.Mutex
	thresholdMu  sync.Mutex
}

// Options tune the engine.
type Options struct {
	// ThresholdMultiplier is the volatility anomaly multiplier. Zero
	// falls back to detector.DefaultMultiplier.
	ThresholdMultiplier float64
}

// New constructs the engine.
func New(cat *catalog.Catalog, hist *history.Cache, repo storage.SubscriptionRepository, dispatcher *alerting.Dispatcher, opts Options, logger zerolog.Logger) *Engine {
	multiplier := opts.ThresholdMultiplier
	if multiplier <= 0 {
		multiplier = detector.DefaultMultiplier
	}
	return &Engine{
		catalog:    cat,
		history:    hist,
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "engine").Logger(),
		multiplier: multiplier,
	}
}

// RefreshCatalog runs one catalog refresh tick. A failed refresh keeps
// the previous catalog and is retried on the next scheduled tick.
func (e *Engine) RefreshCatalog(ctx context.Context) error {
	if err := e.catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("catalog refresh: %w", err)
	}
	return nil
}

// TickIntervals groups the three pipeline cadences.
type TickIntervals struct {
	Catalog    time.Duration
	Volatility time.Duration
	Threshold  time.Duration
}

// Tasks exposes the engine pipelines as scheduler tasks. The catalog task
// runs on start so the history pipeline has a coin set to work with.
func (e *Engine) Tasks(intervals TickIntervals) []*scheduler.Task {
	return []*scheduler.Task{
		{
			Name:       "catalog_refresh",
			Interval:   intervals.Catalog,
			RunOnStart: true,
			Run:        e.RefreshCatalog,
		},
		{
			Name:       "volatility_pipeline",
			Interval:   intervals.Volatility,
			RunOnStart: true,
			Run:        e.RunVolatilityPipeline,
		},
		{
			Name:       "threshold_pipeline",
			Interval:   intervals.Threshold,
			RunOnStart: true,
			Run:        e.RunThresholdPipeline,
		},
	}
}
