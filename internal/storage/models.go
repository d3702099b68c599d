package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SiluPanda/coinmonitor/internal/market"
)

// Direction is the side of a price-threshold alert.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// ParseDirection validates raw user input as a Direction.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case DirectionAbove:
		return DirectionAbove, nil
	case DirectionBelow:
		return DirectionBelow, nil
	default:
		return "", fmt.Errorf("invalid direction %q (want above or below)", raw)
	}
}

// User is a Telegram chat subscribed to the bot.
type User struct {
	UserID          int64
	Watchlist       []market.Code
	VolatilityAlert bool
	CreatedAt       time.Time
}

// ThresholdAlert is a persisted one-shot request to be notified when a
// coin's price crosses a strike value in a given direction. It is
// created by the command layer and consumed exactly once by the
// threshold pipeline: pending, then fired and deleted. There is no
// update path; a new alert is a new record.
type ThresholdAlert struct {
	ID        int64
	UserID    int64
	CoinID    market.Code
	Direction Direction
	Strike    decimal.Decimal
	CreatedAt time.Time
}
