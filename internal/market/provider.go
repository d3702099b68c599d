package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Code is a coin ticker symbol, e.g. "BTC". Codes are upper-case; raw
// user input must be resolved against the catalog before it becomes a
// Code (see catalog.Resolve).
type Code string

// CoinSnapshot is the latest known quote for one coin. Records are
// replaced whole on every catalog refresh, never partially updated.
type CoinSnapshot struct {
	Code   Code
	Name   string
	Rate   decimal.Decimal
	Volume decimal.Decimal
	Cap    decimal.Decimal
}

// HistorySample is one point of a coin's price history.
type HistorySample struct {
	Time   time.Time
	Rate   decimal.Decimal
	Volume decimal.Decimal
}

// Provider retrieves market data from an upstream source.
type Provider interface {
	// ListTopCoins returns the top coins by rank in the given quote currency.
	ListTopCoins(ctx context.Context, limit int, quoteCurrency string) ([]CoinSnapshot, error)
	// FetchHistory returns time-ordered samples for one coin between start and end.
	FetchHistory(ctx context.Context, code Code, start, end time.Time, quoteCurrency string) ([]HistorySample, error)
}
