package alerting

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// defaultDispatchConcurrency bounds parallel sends within one batch.
const defaultDispatchConcurrency = 8

// Delivery pairs one notification with its recipient.
type Delivery struct {
	UserID int64
	Note   Notification
}

// DeliveryResult records the outcome of one send attempt.
type DeliveryResult struct {
	UserID int64
	Err    error
}

// Dispatcher fans a batch of notifications out to the notifier with
// bounded concurrency. Errors are isolated per delivery: one failed send
// never aborts the rest of the batch.
type Dispatcher struct {
	notifier    Notifier
	concurrency int
	logger      zerolog.Logger
}

// NewDispatcher constructs a batch dispatcher.
func NewDispatcher(notifier Notifier, concurrency int, logger zerolog.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	return &Dispatcher{
		notifier:    notifier,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch sends every delivery and returns per-item results once the
// whole batch has settled.
func (d *Dispatcher) Dispatch(ctx context.Context, deliveries []Delivery) []DeliveryResult {
	results := make([]DeliveryResult, len(deliveries))

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)

	for i, delivery := range deliveries {
		i, delivery := i, delivery
		g.Go(func() error {
			err := d.notifier.Send(ctx, delivery.UserID, delivery.Note)
			results[i] = DeliveryResult{UserID: delivery.UserID, Err: err}
			if err != nil {
				d.logger.Error().Err(err).
					Int64("user", delivery.UserID).
					Str("kind", string(delivery.Note.Kind)).
					Str("coin", string(delivery.Note.CoinCode)).
					Msg("notification delivery failed")
			}
			return nil
		})
	}

	// Errors are reported per item; Wait only joins the batch.
	_ = g.Wait()
	return results
}
