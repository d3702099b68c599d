package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/SiluPanda/coinmonitor/internal/logging"
	"github.com/SiluPanda/coinmonitor/internal/storage"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig              `mapstructure:"app"`
	Logging   logging.Config         `mapstructure:"logging"`
	Database  storage.DatabaseConfig `mapstructure:"database"`
	Market    MarketConfig           `mapstructure:"market"`
	History   HistoryConfig          `mapstructure:"history"`
	Detector  DetectorConfig         `mapstructure:"detector"`
	Scheduler SchedulerConfig        `mapstructure:"scheduler"`
	Telegram  TelegramConfig         `mapstructure:"telegram"`
	Dispatch  DispatchConfig         `mapstructure:"dispatch"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// MarketConfig covers the market data provider.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	QuoteCurrency  string        `mapstructure:"quote_currency"`
	TopLimit       int           `mapstructure:"top_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// HistoryConfig governs the price history cache.
type HistoryConfig struct {
	Lookback         time.Duration `mapstructure:"lookback"`
	SampleInterval   time.Duration `mapstructure:"sample_interval"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
}

// DetectorConfig tunes the volatility detector.
type DetectorConfig struct {
	ThresholdMultiplier float64 `mapstructure:"threshold_multiplier"`
}

// SchedulerConfig holds the three independent tick cadences.
type SchedulerConfig struct {
	CatalogInterval    time.Duration `mapstructure:"catalog_interval"`
	VolatilityInterval time.Duration `mapstructure:"volatility_interval"`
	ThresholdInterval  time.Duration `mapstructure:"threshold_interval"`
}

// TelegramConfig describes the bot connection.
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	APIBase     string        `mapstructure:"api_base"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// DispatchConfig bounds notification fan-out.
type DispatchConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COINMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "coinmonitor")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("market.base_url", "https://api.livecoinwatch.com")
	v.SetDefault("market.quote_currency", "USD")
	v.SetDefault("market.top_limit", 100)
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "coinmonitor/1.0")

	v.SetDefault("history.lookback", "24h")
	v.SetDefault("history.sample_interval", "30m")
	v.SetDefault("history.fetch_concurrency", 8)

	v.SetDefault("detector.threshold_multiplier", 3.0)

	v.SetDefault("scheduler.catalog_interval", "1m")
	v.SetDefault("scheduler.volatility_interval", "30m")
	v.SetDefault("scheduler.threshold_interval", "2m")

	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", "50s")
	v.SetDefault("telegram.send_timeout", "10s")

	v.SetDefault("dispatch.max_concurrent", 8)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// Missing required inputs are fatal at startup; everything downstream
// assumes a fully formed config.
func (c *Config) Validate() error {
	if c.Market.APIKey == "" {
		return fmt.Errorf("market.api_key is required")
	}
	if c.Market.QuoteCurrency == "" {
		return fmt.Errorf("market.quote_currency is required")
	}
	if c.Market.TopLimit <= 0 {
		return fmt.Errorf("market.top_limit must be greater than zero")
	}
	if c.History.Lookback <= 0 {
		return fmt.Errorf("history.lookback must be greater than zero")
	}
	if c.History.SampleInterval <= 0 {
		return fmt.Errorf("history.sample_interval must be greater than zero")
	}
	if c.Detector.ThresholdMultiplier <= 0 {
		return fmt.Errorf("detector.threshold_multiplier must be greater than zero")
	}
	if c.Scheduler.CatalogInterval <= 0 || c.Scheduler.VolatilityInterval <= 0 || c.Scheduler.ThresholdInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be greater than zero")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}
