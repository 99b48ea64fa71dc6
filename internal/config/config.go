package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the quantbot platform.
type Config struct {
	Mode       string           `yaml:"mode"` // "dry-run" or "backtest"
	Storage    Storage          `yaml:"storage"`
	Server     Server           `yaml:"server"`
	Alpaca     Alpaca           `yaml:"alpaca"`
	Feed       FeedConfig       `yaml:"feed"`
	Assets     []AssetConfig    `yaml:"assets"`
	Strategies []StrategyConfig `yaml:"strategies"`
	Trading    TradingConfig    `yaml:"trading"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Notify     NotifyConfig     `yaml:"notify"`
	Logging    Logging          `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for the HTTP API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// FeedConfig controls data-source selection and failover.
type FeedConfig struct {
	Primary         string `yaml:"primary"`   // connector name, e.g. "alpaca" or "mock"
	Secondary       string `yaml:"secondary"` // optional
	Fallback        string `yaml:"fallback"`  // optional
	Aggregation     string `yaml:"aggregation"` // "median", "mean", or "last"
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxRetries      int    `yaml:"max_retries"`
}

// AssetConfig describes a single tradeable symbol.
type AssetConfig struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
	Enabled   bool   `yaml:"enabled"`
}

// StrategyConfig enables a named strategy with its numeric parameters.
type StrategyConfig struct {
	Name    string             `yaml:"name"`
	Enabled bool               `yaml:"enabled"`
	Params  map[string]float64 `yaml:"params"`
}

// TradingConfig defines dry-run loop behaviour and risk limits.
type TradingConfig struct {
	IntervalSec     int     `yaml:"interval_sec"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MaxPositionPct  float64 `yaml:"max_position_pct"`   // cap on a single position as a fraction of equity
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"` // halt new entries past this daily drawdown
}

// BacktestConfig holds the scalar inputs consumed by the backtest core.
type BacktestConfig struct {
	InitialCapital   float64 `yaml:"initial_capital"`
	Commission       float64 `yaml:"commission"`
	Slippage         float64 `yaml:"slippage"`
	PositionFraction float64 `yaml:"position_fraction"`
	HistoryLimit     int     `yaml:"history_limit"`
}

// NotifyConfig configures outbound notification channels.
type NotifyConfig struct {
	Telegram        TelegramConfig `yaml:"telegram"`
	Email           EmailConfig    `yaml:"email"`
	RateLimitPerMin int            `yaml:"rate_limit_per_min"`
}

// TelegramConfig holds Telegram Bot API credentials.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// EmailConfig holds SMTP settings for email notifications.
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, fills defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.Telegram.ChatID = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Notify.Email.Password = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills zero-valued fields with working defaults.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "dry-run"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/quantbot.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Feed.Primary == "" {
		c.Feed.Primary = "mock"
	}
	if c.Feed.Aggregation == "" {
		c.Feed.Aggregation = "median"
	}
	if c.Feed.RateLimitPerMin == 0 {
		c.Feed.RateLimitPerMin = 200
	}
	if c.Feed.MaxRetries == 0 {
		c.Feed.MaxRetries = 3
	}
	if c.Trading.IntervalSec == 0 {
		c.Trading.IntervalSec = 60
	}
	if c.Trading.MinConfidence == 0 {
		c.Trading.MinConfidence = 0.6
	}
	if c.Trading.MaxPositionPct == 0 {
		c.Trading.MaxPositionPct = 0.25
	}
	if c.Trading.MaxDailyLossPct == 0 {
		c.Trading.MaxDailyLossPct = 0.05
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = 10000
	}
	if c.Backtest.PositionFraction == 0 {
		c.Backtest.PositionFraction = 0.1
	}
	if c.Backtest.HistoryLimit == 0 {
		c.Backtest.HistoryLimit = 1000
	}
	if c.Notify.RateLimitPerMin == 0 {
		c.Notify.RateLimitPerMin = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks configuration consistency. It is called by Load but is also
// usable on hand-built configs in tests.
func (c *Config) Validate() error {
	switch c.Mode {
	case "dry-run", "backtest":
	default:
		return fmt.Errorf("mode must be one of: dry-run, backtest (got %q)", c.Mode)
	}

	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0 (got %v)", c.Backtest.InitialCapital)
	}
	if c.Backtest.Commission < 0 {
		return fmt.Errorf("backtest.commission must be >= 0 (got %v)", c.Backtest.Commission)
	}
	if c.Backtest.Slippage < 0 {
		return fmt.Errorf("backtest.slippage must be >= 0 (got %v)", c.Backtest.Slippage)
	}
	if c.Backtest.PositionFraction <= 0 || c.Backtest.PositionFraction > 1 {
		return fmt.Errorf("backtest.position_fraction must be in (0, 1] (got %v)", c.Backtest.PositionFraction)
	}
	if c.Trading.MinConfidence < 0 || c.Trading.MinConfidence > 1 {
		return fmt.Errorf("trading.min_confidence must be in [0, 1] (got %v)", c.Trading.MinConfidence)
	}
	if c.Trading.MaxPositionPct < 0 || c.Trading.MaxPositionPct > 1 {
		return fmt.Errorf("trading.max_position_pct must be in [0, 1] (got %v)", c.Trading.MaxPositionPct)
	}
	if c.Trading.MaxDailyLossPct < 0 || c.Trading.MaxDailyLossPct > 1 {
		return fmt.Errorf("trading.max_daily_loss_pct must be in [0, 1] (got %v)", c.Trading.MaxDailyLossPct)
	}

	switch c.Feed.Aggregation {
	case "median", "mean", "last":
	default:
		return fmt.Errorf("feed.aggregation must be one of: median, mean, last (got %q)", c.Feed.Aggregation)
	}

	return nil
}
