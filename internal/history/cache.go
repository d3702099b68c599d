package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/SiluPanda/coinmonitor/internal/market"
)

// defaultFetchConcurrency bounds how many per-coin history requests are
// in flight at once during a refresh.
const defaultFetchConcurrency = 8

// Window is a bounded, time-ordered series of past price samples for one
// coin. Samples ascend by time; the cache keeps at most one window per
// coin and replaces it whole on refresh.
type Window struct {
	Code      market.Code
	Samples   []market.HistorySample
	FetchedAt time.Time
}

// Options tune the history cache.
type Options struct {
	Lookback       time.Duration
	SampleInterval time.Duration
	QuoteCurrency  string
	Concurrency    int
}

// Cache maintains per-coin rolling windows of price history.
type Cache struct {
	provider market.Provider
	opts     Options
	logger   zerolog.Logger

	mu      sync.RWMutex
	windows map[market.Code]Window
}

// NewCache constructs an empty history cache.
func NewCache(provider market.Provider, opts Options, logger zerolog.Logger) *Cache {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultFetchConcurrency
	}
	return &Cache{
		provider: provider,
		opts:     opts,
		logger:   logger.With().Str("component", "history_cache").Logger(),
		windows:  make(map[market.Code]Window),
	}
}

// Refresh fetches the trailing lookback window for every given coin, one
// request per coin issued in parallel. Entries are replaced per coin that
// succeeded; a coin whose fetch failed keeps its previous window. A single
// failed coin never aborts the batch; only context cancellation does.
func (c *Cache) Refresh(ctx context.Context, codes []market.Code) error {
	if len(codes) == 0 {
		return nil
	}

	end := time.Now().UTC()
	start := end.Add(-c.opts.Lookback)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	var mu sync.Mutex
	fetched := make(map[market.Code]Window, len(codes))

	for _, code := range codes {
		code := code
		g.Go(func() error {
			samples, err := c.provider.FetchHistory(gctx, code, start, end, c.opts.QuoteCurrency)
			if err != nil {
				c.logger.Error().Err(err).Str("coin", string(code)).Msg("history fetch failed, keeping previous window")
				return nil
			}
			window := Window{
				Code:      code,
				Samples:   normalise(samples, c.opts.SampleInterval),
				FetchedAt: end,
			}
			mu.Lock()
			fetched[code] = window
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	for code, window := range fetched {
		c.windows[code] = window
	}
	c.mu.Unlock()

	c.logger.Debug().Int("requested", len(codes)).Int("refreshed", len(fetched)).Msg("history refreshed")
	return nil
}

// Window returns the cached window for one coin.
func (c *Cache) Window(code market.Code) (Window, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	window, ok := c.windows[code]
	return window, ok
}

// normalise sorts samples ascending by time and thins them to the
// configured cadence, keeping the first sample of each interval.
func normalise(samples []market.HistorySample, interval time.Duration) []market.HistorySample {
	sorted := make([]market.HistorySample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	if interval <= 0 || len(sorted) == 0 {
		return sorted
	}

	thinned := sorted[:0]
	var last time.Time
	for _, s := range sorted {
		if !last.IsZero() && s.Time.Sub(last) < interval {
			continue
		}
		thinned = append(thinned, s)
		last = s.Time
	}
	return thinned
}
