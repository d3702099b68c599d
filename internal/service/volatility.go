package service

import (
	"context"
	"fmt"

	"github.com/SiluPanda/coinmonitor/internal/alerting"
	"github.com/SiluPanda/coinmonitor/internal/detector"
)

// RunVolatilityPipeline refreshes the price history for the current coin
// set and dispatches anomaly notifications to subscribed users.
//
// No state is consumed: the pipeline re-fires on every tick for as long
// as the anomaly condition holds. There is no cool-down; a volatility
// subscription is standing, unlike the one-shot threshold alerts.
func (e *Engine) RunVolatilityPipeline(ctx context.Context) error {
	if !e.volatilityMu.TryLock() {
		e.logger.Warn().Str("pipeline", "volatility").Msg("previous run still in progress, skipping")
		return nil
	}
	defer e.volatilityMu.Unlock()

	// Read the coin set once at the start of the tick; a concurrent
	// catalog refresh must not change the batch mid-flight.
	codes := e.catalog.Codes()
	if len(codes) == 0 {
		return fmt.Errorf("volatility pipeline: catalog is empty")
	}

	if err := e.history.Refresh(ctx, codes); err != nil {
		return fmt.Errorf("history refresh: %w", err)
	}

	anomalies := 0
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return err
		}

		window, ok := e.history.Window(code)
		if !ok {
			continue
		}

		result := detector.Detect(window.Samples, e.multiplier)
		if !result.Anomalous {
			continue
		}
		anomalies++

		snap, ok := e.catalog.Snapshot(code)
		if !ok {
			// Coin dropped out of the catalog between the snapshot of
			// codes and now; nothing to report against.
			continue
		}

		users, err := e.repo.FindVolatilitySubscribers(ctx, code)
		if err != nil {
			e.logger.Error().Err(err).
				Str("pipeline", "volatility").
				Str("coin", string(code)).
				Msg("subscriber lookup failed")
			continue
		}
		if len(users) == 0 {
			continue
		}

		note := alerting.Notification{
			Kind:             alerting.KindVolatility,
			CoinCode:         snap.Code,
			CoinName:         snap.Name,
			Rate:             snap.Rate,
			Volume:           snap.Volume,
			AverageChangePct: result.AverageChangePct,
			LatestChangePct:  result.LatestChangePct,
		}

		deliveries := make([]alerting.Delivery, 0, len(users))
		for _, userID := range users {
			deliveries = append(deliveries, alerting.Delivery{UserID: userID, Note: note})
		}
		e.dispatcher.Dispatch(ctx, deliveries)

		e.logger.Info().
			Str("coin", string(code)).
			Float64("average_change_pct", result.AverageChangePct).
			Float64("latest_change_pct", result.LatestChangePct).
			Int("subscribers", len(users)).
			Msg("volatility anomaly dispatched")
	}

	e.logger.Debug().Int("coins", len(codes)).Int("anomalies", anomalies).Msg("volatility pipeline complete")
	return nil
}
