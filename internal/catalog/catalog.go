package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/SiluPanda/coinmonitor/internal/market"
)

// Catalog holds the set of monitorable coins and their latest snapshot.
// It is single-writer-per-tick, multi-reader: Refresh replaces the whole
// map atomically, readers always see the last successfully fetched set.
type Catalog struct {
	provider      market.Provider
	limit         int
	quoteCurrency string
	logger        zerolog.Logger

	mu    sync.RWMutex
	coins map[market.Code]market.CoinSnapshot
}

// New constructs an empty catalog. Call Refresh before first use.
func New(provider market.Provider, limit int, quoteCurrency string, logger zerolog.Logger) *Catalog {
	return &Catalog{
		provider:      provider,
		limit:         limit,
		quoteCurrency: quoteCurrency,
		logger:        logger.With().Str("component", "catalog").Logger(),
		coins:         make(map[market.Code]market.CoinSnapshot),
	}
}

// Refresh fetches the ranked top coins and replaces the catalog. A failed
// fetch leaves the previous catalog intact; the caller retries on the
// next scheduled tick.
func (c *Catalog) Refresh(ctx context.Context) error {
	snapshots, err := c.provider.ListTopCoins(ctx, c.limit, c.quoteCurrency)
	if err != nil {
		return fmt.Errorf("list top coins: %w", err)
	}
	if len(snapshots) == 0 {
		return fmt.Errorf("provider returned no coins")
	}

	next := make(map[market.Code]market.CoinSnapshot, len(snapshots))
	for _, snap := range snapshots {
		next[snap.Code] = snap
	}

	c.mu.Lock()
	c.coins = next
	c.mu.Unlock()

	c.logger.Debug().Int("coins", len(next)).Msg("catalog refreshed")
	return nil
}

// Snapshot returns the latest snapshot for one coin.
func (c *Catalog) Snapshot(code market.Code) (market.CoinSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.coins[code]
	return snap, ok
}

// IsValid reports whether the code belongs to the monitorable set.
func (c *Catalog) IsValid(code market.Code) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.coins[code]
	return ok
}

// Resolve normalises raw user input into a validated coin code. Unknown
// codes are rejected at the boundary so they never reach the detector or
// the matcher.
func (c *Catalog) Resolve(raw string) (market.Code, bool) {
	code := market.Code(strings.ToUpper(strings.TrimSpace(raw)))
	if code == "" {
		return "", false
	}
	if !c.IsValid(code) {
		return "", false
	}
	return code, true
}

// All returns a copy of the current snapshots, ordered by code. The copy
// is only as fresh as the last successful refresh.
func (c *Catalog) All() []market.CoinSnapshot {
	c.mu.RLock()
	snapshots := lo.Values(c.coins)
	c.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Code < snapshots[j].Code })
	return snapshots
}

// Codes returns the current coin codes, ordered.
func (c *Catalog) Codes() []market.Code {
	c.mu.RLock()
	codes := lo.Keys(c.coins)
	c.mu.RUnlock()

	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Size returns the number of monitorable coins.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.coins)
}
