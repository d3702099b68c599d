package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/SiluPanda/coinmonitor/internal/catalog"
	"github.com/SiluPanda/coinmonitor/internal/market"
	"github.com/SiluPanda/coinmonitor/internal/storage"
	"github.com/SiluPanda/coinmonitor/internal/telegram"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []string
	sentTo  []int64
	updates [][]telegram.Update
	offsets []int64
	cancel  context.CancelFunc
}

func (f *fakeAPI) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.sentTo = append(f.sentTo, chatID)
	return nil
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if len(f.updates) == 0 {
		if f.cancel != nil {
			f.cancel()
		}
		return nil, context.Canceled
	}
	batch := f.updates[0]
	f.updates = f.updates[1:]
	return batch, nil
}

func (f *fakeAPI) lastReply() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeUsers struct {
	mu         sync.Mutex
	users      map[int64]storage.User
	alerts     []storage.ThresholdAlert
	failEnsure error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]storage.User{}}
}

func (f *fakeUsers) EnsureUser(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnsure != nil {
		return f.failEnsure
	}
	if _, ok := f.users[userID]; !ok {
		f.users[userID] = storage.User{UserID: userID}
	}
	return nil
}

func (f *fakeUsers) GetUser(ctx context.Context, userID int64) (storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return storage.User{}, errors.New("user not found")
	}
	return user, nil
}

func (f *fakeUsers) AddToWatchlist(ctx context.Context, userID int64, code market.Code) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.UserID = userID
	for _, existing := range user.Watchlist {
		if existing == code {
			f.users[userID] = user
			return nil
		}
	}
	user.Watchlist = append(user.Watchlist, code)
	f.users[userID] = user
	return nil
}

func (f *fakeUsers) RemoveFromWatchlist(ctx context.Context, userID int64, code market.Code) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	kept := user.Watchlist[:0]
	for _, existing := range user.Watchlist {
		if existing != code {
			kept = append(kept, existing)
		}
	}
	user.Watchlist = kept
	f.users[userID] = user
	return nil
}

func (f *fakeUsers) SetVolatilityAlert(ctx context.Context, userID int64, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.UserID = userID
	user.VolatilityAlert = enabled
	f.users[userID] = user
	return nil
}

func (f *fakeUsers) InsertThresholdAlert(ctx context.Context, alert storage.ThresholdAlert) (storage.ThresholdAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert.ID = int64(len(f.alerts) + 1)
	f.alerts = append(f.alerts, alert)
	return alert, nil
}

type staticProvider struct {
	coins []market.CoinSnapshot
}

func (s *staticProvider) ListTopCoins(ctx context.Context, limit int, quoteCurrency string) ([]market.CoinSnapshot, error) {
	return s.coins, nil
}

func (s *staticProvider) FetchHistory(ctx context.Context, code market.Code, start, end time.Time, quoteCurrency string) ([]market.HistorySample, error) {
	return nil, nil
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	provider := &staticProvider{coins: []market.CoinSnapshot{
		{Code: "BTC", Name: "Bitcoin", Rate: decimal.NewFromInt(50000), Volume: decimal.NewFromInt(1), Cap: decimal.NewFromInt(1)},
		{Code: "ETH", Name: "Ethereum", Rate: decimal.NewFromInt(2000), Volume: decimal.NewFromInt(1), Cap: decimal.NewFromInt(1)},
	}}
	cat := catalog.New(provider, 100, "USD", zerolog.Nop())
	require.NoError(t, cat.Refresh(context.Background()))
	return cat
}

func message(chatID int64, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 1,
		Text:      text,
		Chat:      telegram.Chat{ID: chatID},
		From:      &telegram.User{ID: chatID, FirstName: "Sam"},
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *fakeUsers) {
	t.Helper()
	api := &fakeAPI{}
	users := newFakeUsers()
	b := New(api, users, newTestCatalog(t), Options{}, zerolog.Nop())
	return b, api, users
}

func TestHandleStart(t *testing.T) {
	b, api, users := newTestBot(t)

	b.handleMessage(context.Background(), message(7, "/start"))

	require.Contains(t, api.lastReply(), "Hi Sam")
	_, err := users.GetUser(context.Background(), 7)
	require.NoError(t, err)
}

func TestHandleStartSetupFailure(t *testing.T) {
	b, api, users := newTestBot(t)
	users.failEnsure = errors.New("db down")

	b.handleMessage(context.Background(), message(7, "/start"))
	require.Contains(t, api.lastReply(), "Something went wrong")
}

func TestHandleHelp(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleMessage(context.Background(), message(7, "/help"))
	require.Contains(t, api.lastReply(), "/alert volatility")
}

func TestHandleAll(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleMessage(context.Background(), message(7, "/all"))

	reply := api.lastReply()
	require.Contains(t, reply, "BTC (Bitcoin)")
	require.Contains(t, reply, "ETH (Ethereum)")
}

func TestHandleAddAndWatchlist(t *testing.T) {
	b, api, users := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, message(7, "/add btc"))
	require.Contains(t, api.lastReply(), "Successfully added BTC")

	user, err := users.GetUser(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []market.Code{"BTC"}, user.Watchlist)

	b.handleMessage(ctx, message(7, "/watchlist"))
	reply := api.lastReply()
	require.Contains(t, reply, "BTC Bitcoin")
	require.Contains(t, reply, "Price: 50000")
}

func TestHandleAddUnknownCoin(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleMessage(context.Background(), message(7, "/add DOGE2MOON"))
	require.Contains(t, api.lastReply(), "DOGE2MOON is not a valid crypto code")
}

func TestHandleAddMissingSymbol(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleMessage(context.Background(), message(7, "/add"))
	require.Contains(t, api.lastReply(), "No symbol provided")
}

func TestHandleRemove(t *testing.T) {
	b, api, users := newTestBot(t)
	ctx := context.Background()
	require.NoError(t, users.AddToWatchlist(ctx, 7, "BTC"))
	require.NoError(t, users.AddToWatchlist(ctx, 7, "ETH"))

	b.handleMessage(ctx, message(7, "/remove btc"))
	require.Contains(t, api.lastReply(), "Successfully removed BTC")

	user, err := users.GetUser(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []market.Code{"ETH"}, user.Watchlist)
}

func TestHandleAlertVolatility(t *testing.T) {
	b, api, users := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, message(7, "/alert volatility"))
	require.Contains(t, api.lastReply(), "extreme volatility")

	user, err := users.GetUser(ctx, 7)
	require.NoError(t, err)
	require.True(t, user.VolatilityAlert)
}

func TestHandleAlertPrice(t *testing.T) {
	b, api, users := newTestBot(t)

	b.handleMessage(context.Background(), message(7, "/alert price btc below 44000"))
	require.Contains(t, api.lastReply(), "Successfully added alert")

	users.mu.Lock()
	defer users.mu.Unlock()
	require.Len(t, users.alerts, 1)
	alert := users.alerts[0]
	require.Equal(t, int64(7), alert.UserID)
	require.Equal(t, market.Code("BTC"), alert.CoinID)
	require.Equal(t, storage.DirectionBelow, alert.Direction)
	require.Equal(t, "44000", alert.Strike.String())
}

func TestHandleAlertPriceValidation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"missing args", "/alert price BTC below", "strike price missing"},
		{"unknown coin", "/alert price XYZ below 100", "Coin XYZ is either not valid"},
		{"bad direction", "/alert price BTC sideways 100", "Direction must be either above or below"},
		{"bad strike", "/alert price BTC below banana", "banana is not a valid strike price"},
		{"negative strike", "/alert price BTC below -5", "-5 is not a valid strike price"},
		{"no alert type", "/alert", "No alert type provided"},
		{"unknown alert type", "/alert weather", "Unsupported alert type"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, api, _ := newTestBot(t)
			b.handleMessage(context.Background(), message(7, tc.text))
			require.Contains(t, api.lastReply(), tc.want)
		})
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleMessage(context.Background(), message(7, "/moonwhen"))
	require.Contains(t, api.lastReply(), "Unknown command")
}

func TestHandleGroupSuffixAndPlainText(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, message(7, "/help@coinmonitor_bot"))
	require.Contains(t, api.lastReply(), "/alert volatility")

	before := len(api.sent)
	b.handleMessage(ctx, message(7, "just chatting"))
	require.Len(t, api.sent, before)
}

func TestRunAdvancesOffset(t *testing.T) {
	api := &fakeAPI{updates: [][]telegram.Update{
		{
			{UpdateID: 10, Message: message(7, "/help")},
			{UpdateID: 11, Message: message(8, "/help")},
		},
		{
			{UpdateID: 12, Message: message(7, "/all")},
		},
	}}
	b := New(api, newFakeUsers(), newTestCatalog(t), Options{PollTimeout: time.Second}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api.cancel = cancel

	err := b.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, []int64{0, 12, 13}, api.offsets)
	require.Len(t, api.sent, 3)
}
