package service

import (
	"context"

	"github.com/SiluPanda/coinmonitor/internal/alerting"
	"github.com/SiluPanda/coinmonitor/internal/market"
	"github.com/SiluPanda/coinmonitor/internal/storage"
)

// RunThresholdPipeline matches pending price-threshold alerts against the
// current catalog snapshots, fires them, and retires them.
//
// For every coin the below pass runs before the above pass. Send attempts
// happen first; the matched records are deleted only after the send batch
// settles, so a total delivery outage does not silently discard alerts
// that were never notified. Per-user failures within a settled batch
// still delete — an accepted at-most-once, best-effort tradeoff.
func (e *Engine) RunThresholdPipeline(ctx context.Context) error {
	if !e.thresholdMu.TryLock() {
		e.logger.Warn().Str("pipeline", "threshold").Msg("previous run still in progress, skipping")
		return nil
	}
	defer e.thresholdMu.Unlock()

	for _, snap := range e.catalog.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.firePass(ctx, snap, storage.DirectionBelow)
		e.firePass(ctx, snap, storage.DirectionAbove)
	}
	return nil
}

// firePass runs one direction of the threshold match for one coin. A
// repository or delivery failure is logged and skipped; it never aborts
// the other coins of the tick.
func (e *Engine) firePass(ctx context.Context, snap market.CoinSnapshot, direction storage.Direction) {
	alerts, err := e.repo.FindThresholdAlerts(ctx, snap.Code, direction, snap.Rate)
	if err != nil {
		e.logger.Error().Err(err).
			Str("pipeline", "threshold").
			Str("coin", string(snap.Code)).
			Str("direction", string(direction)).
			Msg("alert lookup failed")
		return
	}
	if len(alerts) == 0 {
		return
	}

	deliveries := make([]alerting.Delivery, 0, len(alerts))
	for _, alert := range alerts {
		deliveries = append(deliveries, alerting.Delivery{
			UserID: alert.UserID,
			Note: alerting.Notification{
				Kind:      alerting.KindThreshold,
				CoinCode:  snap.Code,
				CoinName:  snap.Name,
				Rate:      snap.Rate,
				Volume:    snap.Volume,
				Strike:    alert.Strike,
				Direction: direction,
			},
		})
	}
	e.dispatcher.Dispatch(ctx, deliveries)

	deleted, err := e.repo.DeleteThresholdAlerts(ctx, snap.Code, direction, snap.Rate)
	if err != nil {
		e.logger.Error().Err(err).
			Str("pipeline", "threshold").
			Str("coin", string(snap.Code)).
			Str("direction", string(direction)).
			Msg("alert retirement failed, alerts may re-fire next tick")
		return
	}

	e.logger.Info().
		Str("coin", string(snap.Code)).
		Str("direction", string(direction)).
		Int("matched", len(alerts)).
		Int64("retired", deleted).
		Msg("threshold alerts fired")
}
