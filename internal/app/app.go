package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/SiluPanda/coinmonitor/internal/alerting"
	"github.com/SiluPanda/coinmonitor/internal/bot"
	"github.com/SiluPanda/coinmonitor/internal/catalog"
	"github.com/SiluPanda/coinmonitor/internal/config"
	"github.com/SiluPanda/coinmonitor/internal/history"
	"github.com/SiluPanda/coinmonitor/internal/market"
	"github.com/SiluPanda/coinmonitor/internal/scheduler"
	"github.com/SiluPanda/coinmonitor/internal/service"
	"github.com/SiluPanda/coinmonitor/internal/storage"
	"github.com/SiluPanda/coinmonitor/internal/telegram"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newProvider() market.Provider {
	return market.NewLiveCoinWatch(market.LiveCoinWatchOptions{
		BaseURL:   a.Config.Market.BaseURL,
		APIKey:    a.Config.Market.APIKey,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
	}, a.Logger)
}

func (a *App) newCatalog(provider market.Provider) *catalog.Catalog {
	return catalog.New(provider, a.Config.Market.TopLimit, a.Config.Market.QuoteCurrency, a.Logger)
}

func (a *App) openRepository(ctx context.Context) (*storage.Repository, error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return storage.NewRepository(pool), nil
}

// Run executes the long-running monitoring service and the bot loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	provider := a.newProvider()
	cat := a.newCatalog(provider)
	hist := history.NewCache(provider, history.Options{
		Lookback:       a.Config.History.Lookback,
		SampleInterval: a.Config.History.SampleInterval,
		QuoteCurrency:  a.Config.Market.QuoteCurrency,
		Concurrency:    a.Config.History.FetchConcurrency,
	}, a.Logger)

	// Separate clients: the poll client needs an HTTP timeout above the
	// long-poll window, sends use a short one.
	tgCfg := a.Config.Telegram
	sendClient := telegram.NewClient(tgCfg.BotToken, tgCfg.APIBase, tgCfg.SendTimeout, a.Logger)
	pollClient := telegram.NewClient(tgCfg.BotToken, tgCfg.APIBase, tgCfg.PollTimeout+tgCfg.SendTimeout, a.Logger)

	notifier := alerting.NewTelegramNotifier(sendClient, a.Logger)
	dispatcher := alerting.NewDispatcher(notifier, a.Config.Dispatch.MaxConcurrent, a.Logger)

	engine := service.New(cat, hist, repo, dispatcher, service.Options{
		ThresholdMultiplier: a.Config.Detector.ThresholdMultiplier,
	}, a.Logger)

	sched := scheduler.New(a.Logger)
	for _, task := range engine.Tasks(service.TickIntervals{
		Catalog:    a.Config.Scheduler.CatalogInterval,
		Volatility: a.Config.Scheduler.VolatilityInterval,
		Threshold:  a.Config.Scheduler.ThresholdInterval,
	}) {
		sched.Register(task)
	}

	chatBot := bot.New(pollClient, repo, cat, bot.Options{PollTimeout: tgCfg.PollTimeout}, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return chatBot.Run(gctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}
