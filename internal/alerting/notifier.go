package alerting

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/SiluPanda/coinmonitor/internal/market"
	"github.com/SiluPanda/coinmonitor/internal/storage"
	"github.com/SiluPanda/coinmonitor/internal/telegram"
)

// Kind distinguishes notification payloads.
type Kind string

const (
	KindVolatility Kind = "volatility"
	KindThreshold  Kind = "threshold"
)

// Notification is the structured payload sent to one user.
type Notification struct {
	Kind Kind

	CoinCode market.Code
	CoinName string
	Rate     decimal.Decimal
	Volume   decimal.Decimal

	// Volatility fields.
	AverageChangePct float64
	LatestChangePct  float64

	// Threshold fields.
	Strike    decimal.Decimal
	Direction storage.Direction
}

// Notifier delivers one notification to one user. Delivery is best
// effort; the engine logs failures and does not retry.
type Notifier interface {
	Send(ctx context.Context, userID int64, note Notification) error
}

// TelegramNotifier delivers notifications through the Telegram Bot API.
type TelegramNotifier struct {
	client *telegram.Client
	logger zerolog.Logger
}

// NewTelegramNotifier wraps a Telegram client as a Notifier.
func NewTelegramNotifier(client *telegram.Client, logger zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		client: client,
		logger: logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Send renders the notification and pushes it to the user's chat.
func (n *TelegramNotifier) Send(ctx context.Context, userID int64, note Notification) error {
	if err := n.client.SendMessage(ctx, userID, RenderMessage(note)); err != nil {
		return err
	}

	n.logger.Info().
		Int64("user", userID).
		Str("kind", string(note.Kind)).
		Str("coin", string(note.CoinCode)).
		Msg("notification delivered")
	return nil
}

// RenderMessage produces the chat text for a notification.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	switch note.Kind {
	case KindVolatility:
		builder.WriteString("\U0001F525 Extreme volatility alert\n")
		builder.WriteString(fmt.Sprintf("Name: %s\n", note.CoinName))
		builder.WriteString(fmt.Sprintf("Code: %s\n", note.CoinCode))
		builder.WriteString(fmt.Sprintf("Price: %s\n", note.Rate.String()))
		builder.WriteString(fmt.Sprintf("Volume: %s\n", note.Volume.String()))
		builder.WriteString(fmt.Sprintf("Average absolute change per window over 24h: %.2f%%\n", note.AverageChangePct))
		builder.WriteString(fmt.Sprintf("Change in the latest window: %.2f%%\n", note.LatestChangePct))
	case KindThreshold:
		builder.WriteString("\U0001F60C Price alert triggered\n")
		builder.WriteString(fmt.Sprintf("Name: %s\n", note.CoinName))
		builder.WriteString(fmt.Sprintf("Code: %s\n", note.CoinCode))
		builder.WriteString(fmt.Sprintf("Price: %s\n", note.Rate.String()))
		builder.WriteString(fmt.Sprintf("Volume: %s\n", note.Volume.String()))
		builder.WriteString(fmt.Sprintf("Strike Price: %s\n", note.Strike.String()))
		builder.WriteString(fmt.Sprintf("Direction: %s\n", note.Direction))
	default:
		builder.WriteString(fmt.Sprintf("Alert for %s (%s)\n", note.CoinName, note.CoinCode))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
