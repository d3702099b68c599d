package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	coinsListPath    = "/coins/list"
	coinsHistoryPath = "/coins/single/history"
)

// LiveCoinWatchOptions parameterise the LiveCoinWatch client.
type LiveCoinWatchOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// LiveCoinWatch fetches market data from the LiveCoinWatch HTTP API.
type LiveCoinWatch struct {
	opts    LiveCoinWatchOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewLiveCoinWatch constructs a LiveCoinWatch market data provider.
func NewLiveCoinWatch(opts LiveCoinWatchOptions, logger zerolog.Logger) *LiveCoinWatch {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.livecoinwatch.com"
	}

	return &LiveCoinWatch{
		opts:    opts,
		logger:  logger.With().Str("component", "market_provider").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// ListTopCoins retrieves the top coins by rank.
func (l *LiveCoinWatch) ListTopCoins(ctx context.Context, limit int, quoteCurrency string) ([]CoinSnapshot, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be greater than zero")
	}
	if quoteCurrency == "" {
		return nil, errors.New("quote currency required")
	}

	reqPayload := listRequest{
		Currency: quoteCurrency,
		Sort:     "rank",
		Order:    "ascending",
		Offset:   0,
		Limit:    limit,
		Meta:     true,
	}

	var coins []listCoin
	if err := l.post(ctx, coinsListPath, reqPayload, &coins); err != nil {
		return nil, err
	}

	snapshots := make([]CoinSnapshot, 0, len(coins))
	for _, c := range coins {
		if c.Code == "" {
			continue
		}
		snapshots = append(snapshots, CoinSnapshot{
			Code:   Code(strings.ToUpper(c.Code)),
			Name:   c.Name,
			Rate:   decimal.NewFromFloat(c.Rate),
			Volume: decimal.NewFromFloat(c.Volume),
			Cap:    decimal.NewFromFloat(c.Cap),
		})
	}
	return snapshots, nil
}

// FetchHistory retrieves price history for one coin between start and end.
func (l *LiveCoinWatch) FetchHistory(ctx context.Context, code Code, start, end time.Time, quoteCurrency string) ([]HistorySample, error) {
	if code == "" {
		return nil, errors.New("coin code required")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("invalid history range [%s, %s]", start, end)
	}

	reqPayload := historyRequest{
		Currency: quoteCurrency,
		Code:     string(code),
		Start:    start.UnixMilli(),
		End:      end.UnixMilli(),
	}

	var res historyResponse
	if err := l.post(ctx, coinsHistoryPath, reqPayload, &res); err != nil {
		return nil, err
	}

	samples := make([]HistorySample, 0, len(res.History))
	for _, h := range res.History {
		samples = append(samples, HistorySample{
			Time:   time.UnixMilli(h.Date).UTC(),
			Rate:   decimal.NewFromFloat(h.Rate),
			Volume: decimal.NewFromFloat(h.Volume),
		})
	}
	return samples, nil
}

func (l *LiveCoinWatch) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := l.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", l.opts.APIKey)
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payloadBytes)
	}

	if err := json.Unmarshal(payloadBytes, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type listRequest struct {
	Currency string `json:"currency"`
	Sort     string `json:"sort"`
	Order    string `json:"order"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
	Meta     bool   `json:"meta"`
}

type listCoin struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
	Cap    float64 `json:"cap"`
}

type historyRequest struct {
	Currency string `json:"currency"`
	Code     string `json:"code"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
}

type historyResponse struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	History []struct {
		Date   int64   `json:"date"`
		Rate   float64 `json:"rate"`
		Volume float64 `json:"volume"`
		Cap    float64 `json:"cap"`
	} `json:"history"`
}

type errorResponse struct {
	Error struct {
		Code        int    `json:"code"`
		Status      string `json:"status"`
		Description string `json:"description"`
	} `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error.Description != "" {
			return fmt.Errorf("livecoinwatch api error (%d): %s", status, apiErr.Error.Description)
		}
		if apiErr.Error.Status != "" {
			return fmt.Errorf("livecoinwatch api error (%d): %s", status, apiErr.Error.Status)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("livecoinwatch api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("livecoinwatch api error (%d)", status)
}

var _ Provider = (*LiveCoinWatch)(nil)
