package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/SiluPanda/coinmonitor/internal/market"
)

// ExportOptions hold parameters for exporting one coin's price history.
type ExportOptions struct {
	Coin     string
	Lookback time.Duration
	PNGPath  string
	CSVPath  string
}

// Export fetches a coin's trailing price history from the provider and
// renders it as CSV and/or a PNG chart. The in-memory history cache is
// not involved; this is an ad-hoc fetch.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Coin == "" {
		return errors.New("--coin is required")
	}

	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = a.Config.History.Lookback
	}

	code := market.Code(strings.ToUpper(strings.TrimSpace(opts.Coin)))
	end := time.Now().UTC()
	start := end.Add(-lookback)

	provider := a.newProvider()
	samples, err := provider.FetchHistory(ctx, code, start, end, a.Config.Market.QuoteCurrency)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Str("coin", string(code)).Msg("no history returned for export window")
		return nil
	}

	a.Logger.Info().Str("coin", string(code)).Int("samples", len(samples)).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, code, samples); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, code, samples, a.Config.Market.QuoteCurrency); err != nil {
			return err
		}
	}
	return nil
}

func writeHistoryCSV(path string, code market.Code, samples []market.HistorySample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"time", "code", "rate", "volume"}); err != nil {
		return err
	}
	for _, sample := range samples {
		record := []string{
			sample.Time.Format(time.RFC3339),
			string(code),
			sample.Rate.String(),
			sample.Volume.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeHistoryPNG(path string, code market.Code, samples []market.HistorySample, quoteCurrency string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	rates := make([]float64, len(samples))
	for i, sample := range samples {
		x[i] = sample.Time
		rates[i] = sample.Rate.InexactFloat64()
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: fmt.Sprintf("Rate (%s)", quoteCurrency),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    string(code),
				XValues: x,
				YValues: rates,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
