package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/SiluPanda/coinmonitor/internal/market"
)

type fakeProvider struct {
	coins []market.CoinSnapshot
	err   error
}

func (f *fakeProvider) ListTopCoins(ctx context.Context, limit int, quoteCurrency string) ([]market.CoinSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.coins, nil
}

func (f *fakeProvider) FetchHistory(ctx context.Context, code market.Code, start, end time.Time, quoteCurrency string) ([]market.HistorySample, error) {
	return nil, errors.New("not implemented")
}

func snapshot(code string, rate float64) market.CoinSnapshot {
	return market.CoinSnapshot{
		Code: market.Code(code),
		Name: code,
		Rate: decimal.NewFromFloat(rate),
	}
}

func TestRefreshReplacesCatalog(t *testing.T) {
	provider := &fakeProvider{coins: []market.CoinSnapshot{snapshot("BTC", 50000), snapshot("ETH", 2000)}}
	cat := New(provider, 100, "USD", zerolog.Nop())

	require.NoError(t, cat.Refresh(context.Background()))
	require.Equal(t, 2, cat.Size())
	require.True(t, cat.IsValid("BTC"))
	require.Equal(t, []market.Code{"BTC", "ETH"}, cat.Codes())

	snap, ok := cat.Snapshot("ETH")
	require.True(t, ok)
	require.True(t, snap.Rate.Equal(decimal.NewFromInt(2000)))

	// The whole set is replaced, not merged.
	provider.coins = []market.CoinSnapshot{snapshot("SOL", 150)}
	require.NoError(t, cat.Refresh(context.Background()))
	require.False(t, cat.IsValid("BTC"))
	require.True(t, cat.IsValid("SOL"))
	require.Equal(t, 1, cat.Size())
}

func TestRefreshFailureKeepsPrevious(t *testing.T) {
	provider := &fakeProvider{coins: []market.CoinSnapshot{snapshot("BTC", 50000)}}
	cat := New(provider, 100, "USD", zerolog.Nop())
	require.NoError(t, cat.Refresh(context.Background()))

	provider.err = errors.New("provider down")
	require.Error(t, cat.Refresh(context.Background()))

	// Stale but available.
	require.True(t, cat.IsValid("BTC"))
	require.Equal(t, 1, cat.Size())
}

func TestRefreshEmptyListIsError(t *testing.T) {
	provider := &fakeProvider{}
	cat := New(provider, 100, "USD", zerolog.Nop())
	require.Error(t, cat.Refresh(context.Background()))
}

func TestResolve(t *testing.T) {
	provider := &fakeProvider{coins: []market.CoinSnapshot{snapshot("BTC", 50000)}}
	cat := New(provider, 100, "USD", zerolog.Nop())
	require.NoError(t, cat.Refresh(context.Background()))

	code, ok := cat.Resolve(" btc ")
	require.True(t, ok)
	require.Equal(t, market.Code("BTC"), code)

	_, ok = cat.Resolve("DOGE")
	require.False(t, ok)

	_, ok = cat.Resolve("")
	require.False(t, ok)
}

func TestAllReturnsCopy(t *testing.T) {
	provider := &fakeProvider{coins: []market.CoinSnapshot{snapshot("ETH", 2000), snapshot("BTC", 50000)}}
	cat := New(provider, 100, "USD", zerolog.Nop())
	require.NoError(t, cat.Refresh(context.Background()))

	all := cat.All()
	require.Len(t, all, 2)
	require.Equal(t, market.Code("BTC"), all[0].Code)
	require.Equal(t, market.Code("ETH"), all[1].Code)

	all[0].Name = "mutated"
	fresh, _ := cat.Snapshot("BTC")
	require.Equal(t, "BTC", fresh.Name)
}
