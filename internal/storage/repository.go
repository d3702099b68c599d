package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/SiluPanda/coinmonitor/internal/market"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	ensureUserSQL = `INSERT INTO users (user_id) VALUES ($1)
    ON CONFLICT (user_id) DO NOTHING;`

	getUserSQL = `SELECT user_id, watchlist, volatility_alert, created_at
    FROM users WHERE user_id = $1;`

	addToWatchlistSQL = `UPDATE users
    SET watchlist = array_append(watchlist, $2)
    WHERE user_id = $1 AND NOT ($2 = ANY(watchlist));`

	removeFromWatchlistSQL = `UPDATE users
    SET watchlist = array_remove(watchlist, $2)
    WHERE user_id = $1;`

	setVolatilityAlertSQL = `UPDATE users
    SET volatility_alert = $2
    WHERE user_id = $1;`

	findVolatilitySubscribersSQL = `SELECT user_id FROM users
    WHERE $1 = ANY(watchlist) AND volatility_alert
    ORDER BY user_id;`

	insertThresholdAlertSQL = `INSERT INTO threshold_alerts (
        user_id, coin_id, direction, strike
    ) VALUES ($1, $2, $3, $4)
    RETURNING id, created_at;`

	findBelowAlertsSQL = `SELECT id, user_id, coin_id, direction, strike, created_at
    FROM threshold_alerts
    WHERE coin_id = $1 AND direction = 'below' AND strike >= $2
    ORDER BY id;`

	findAboveAlertsSQL = `SELECT id, user_id, coin_id, direction, strike, created_at
    FROM threshold_alerts
    WHERE coin_id = $1 AND direction = 'above' AND strike <= $2
    ORDER BY id;`

	deleteBelowAlertsSQL = `DELETE FROM threshold_alerts
    WHERE coin_id = $1 AND direction = 'below' AND strike >= $2;`

	deleteAboveAlertsSQL = `DELETE FROM threshold_alerts
    WHERE coin_id = $1 AND direction = 'above' AND strike <= $2;`
)

// SubscriptionRepository is the engine's read/consume surface over
// persisted subscriptions. The comparison value of the threshold queries
// is the coin's current rate; the delete predicate is the same condition
// re-evaluated at delete time, not a remembered id list.
type SubscriptionRepository interface {
	FindVolatilitySubscribers(ctx context.Context, code market.Code) ([]int64, error)
	FindThresholdAlerts(ctx context.Context, code market.Code, direction Direction, rate decimal.Decimal) ([]ThresholdAlert, error)
	DeleteThresholdAlerts(ctx context.Context, code market.Code, direction Direction, rate decimal.Decimal) (int64, error)
}

// UserRepository is the command layer's write surface.
type UserRepository interface {
	EnsureUser(ctx context.Context, userID int64) error
	GetUser(ctx context.Context, userID int64) (User, error)
	AddToWatchlist(ctx context.Context, userID int64, code market.Code) error
	RemoveFromWatchlist(ctx context.Context, userID int64, code market.Code) error
	SetVolatilityAlert(ctx context.Context, userID int64, enabled bool) error
	InsertThresholdAlert(ctx context.Context, alert ThresholdAlert) (ThresholdAlert, error)
}

// Repository implements the subscription and user repositories over
// PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgx pool into a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Close releases the underlying pool resources.
func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

func (r *Repository) getPool() (*pgxpool.Pool, error) {
	if r == nil || r.pool == nil {
		return nil, ErrNotConfigured
	}
	return r.pool, nil
}

// EnsureUser creates the user record if it does not exist.
func (r *Repository) EnsureUser(ctx context.Context, userID int64) error {
	pool, err := r.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, ensureUserSQL, userID); execErr != nil {
		return fmt.Errorf("ensure user: %w", execErr)
	}
	return nil
}

// GetUser loads one user's profile.
func (r *Repository) GetUser(ctx context.Context, userID int64) (User, error) {
	pool, err := r.getPool()
	if err != nil {
		return User{}, err
	}

	var user User
	var watchlist []string
	row := pool.QueryRow(ctx, getUserSQL, userID)
	if scanErr := row.Scan(&user.UserID, &watchlist, &user.VolatilityAlert, &user.CreatedAt); scanErr != nil {
		return User{}, fmt.Errorf("get user: %w", scanErr)
	}
	user.Watchlist = lo.Map(watchlist, func(code string, _ int) market.Code { return market.Code(code) })
	return user, nil
}

// AddToWatchlist appends a coin with set semantics.
func (r *Repository) AddToWatchlist(ctx context.Context, userID int64, code market.Code) error {
	pool, err := r.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, addToWatchlistSQL, userID, string(code)); execErr != nil {
		return fmt.Errorf("add to watchlist: %w", execErr)
	}
	return nil
}

// RemoveFromWatchlist drops a coin from the user's watchlist.
func (r *Repository) RemoveFromWatchlist(ctx context.Context, userID int64, code market.Code) error {
	pool, err := r.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, removeFromWatchlistSQL, userID, string(code)); execErr != nil {
		return fmt.Errorf("remove from watchlist: %w", execErr)
	}
	return nil
}

// SetVolatilityAlert toggles anomaly notifications for the user's watchlist.
func (r *Repository) SetVolatilityAlert(ctx context.Context, userID int64, enabled bool) error {
	pool, err := r.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, setVolatilityAlertSQL, userID, enabled); execErr != nil {
		return fmt.Errorf("set volatility alert: %w", execErr)
	}
	return nil
}

// InsertThresholdAlert persists a new one-shot threshold alert.
func (r *Repository) InsertThresholdAlert(ctx context.Context, alert ThresholdAlert) (ThresholdAlert, error) {
	pool, err := r.getPool()
	if err != nil {
		return ThresholdAlert{}, err
	}

	row := pool.QueryRow(ctx, insertThresholdAlertSQL,
		alert.UserID,
		string(alert.CoinID),
		string(alert.Direction),
		alert.Strike.String(),
	)
	if scanErr := row.Scan(&alert.ID, &alert.CreatedAt); scanErr != nil {
		return ThresholdAlert{}, fmt.Errorf("insert threshold alert: %w", scanErr)
	}
	return alert, nil
}

// FindVolatilitySubscribers lists users with the coin in their watchlist
// and the volatility flag set.
func (r *Repository) FindVolatilitySubscribers(ctx context.Context, code market.Code) ([]int64, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, findVolatilitySubscribersSQL, string(code))
	if queryErr != nil {
		return nil, fmt.Errorf("find volatility subscribers: %w", queryErr)
	}
	defer rows.Close()

	users := make([]int64, 0)
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}

// FindThresholdAlerts lists pending alerts satisfied by the current rate.
func (r *Repository) FindThresholdAlerts(ctx context.Context, code market.Code, direction Direction, rate decimal.Decimal) ([]ThresholdAlert, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	query := findBelowAlertsSQL
	if direction == DirectionAbove {
		query = findAboveAlertsSQL
	}

	rows, queryErr := pool.Query(ctx, query, string(code), rate.String())
	if queryErr != nil {
		return nil, fmt.Errorf("find threshold alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]ThresholdAlert, 0)
	for rows.Next() {
		var alert ThresholdAlert
		var coinID, dir, strikeStr string
		if err := rows.Scan(&alert.ID, &alert.UserID, &coinID, &dir, &strikeStr, &alert.CreatedAt); err != nil {
			return nil, err
		}
		strike, convErr := decimal.NewFromString(strikeStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse strike: %w", convErr)
		}
		alert.CoinID = market.Code(coinID)
		alert.Direction = Direction(dir)
		alert.Strike = strike
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteThresholdAlerts retires alerts satisfied by the current rate and
// returns how many were deleted.
func (r *Repository) DeleteThresholdAlerts(ctx context.Context, code market.Code, direction Direction, rate decimal.Decimal) (int64, error) {
	pool, err := r.getPool()
	if err != nil {
		return 0, err
	}

	query := deleteBelowAlertsSQL
	if direction == DirectionAbove {
		query = deleteAboveAlertsSQL
	}

	cmdTag, execErr := pool.Exec(ctx, query, string(code), rate.String())
	if execErr != nil {
		return 0, fmt.Errorf("delete threshold alerts: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

var (
	_ SubscriptionRepository = (*Repository)(nil)
	_ UserRepository         = (*Repository)(nil)
)
