package config

import (
	"os"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "quantbot-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `
mode: "backtest"
storage:
  data_dir: "/tmp/quantbot/data"
  sqlite_path: "/tmp/quantbot/quantbot.db"
server:
  host: "0.0.0.0"
  port: 8080
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
feed:
  primary: "mock"
  aggregation: "median"
  rate_limit_per_min: 120
assets:
  - symbol: "BTC/USD"
    timeframe: "1h"
    enabled: true
strategies:
  - name: "sma-cross"
    enabled: true
    params:
      short: 10
      long: 30
backtest:
  initial_capital: 25000
  commission: 0.001
  slippage: 0.001
  position_fraction: 0.2
logging:
  level: "info"
  format: "json"
`)

	// Clear any environment overrides that might interfere.
	os.Unsetenv("ALPACA_API_KEY")
	os.Unsetenv("ALPACA_API_SECRET")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	os.Unsetenv("DATA_DIR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Mode != "backtest" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "backtest")
	}
	if cfg.Storage.DataDir != "/tmp/quantbot/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/quantbot/data")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Feed.RateLimitPerMin != 120 {
		t.Errorf("Feed.RateLimitPerMin = %d, want %d", cfg.Feed.RateLimitPerMin, 120)
	}
	if len(cfg.Assets) != 1 || cfg.Assets[0].Symbol != "BTC/USD" {
		t.Errorf("Assets = %+v, want one BTC/USD entry", cfg.Assets)
	}
	if len(cfg.Strategies) != 1 || cfg.Strategies[0].Params["long"] != 30 {
		t.Errorf("Strategies = %+v, want sma-cross with long=30", cfg.Strategies)
	}
	if cfg.Backtest.InitialCapital != 25000 {
		t.Errorf("Backtest.InitialCapital = %v, want 25000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.PositionFraction != 0.2 {
		t.Errorf("Backtest.PositionFraction = %v, want 0.2", cfg.Backtest.PositionFraction)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, `
storage:
  data_dir: "/tmp/quantbot/data"
`)

	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Mode != "dry-run" {
		t.Errorf("Mode default = %q, want %q", cfg.Mode, "dry-run")
	}
	if cfg.Backtest.InitialCapital != 10000 {
		t.Errorf("Backtest.InitialCapital default = %v, want 10000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.PositionFraction != 0.1 {
		t.Errorf("Backtest.PositionFraction default = %v, want 0.1", cfg.Backtest.PositionFraction)
	}
	if cfg.Feed.Primary != "mock" {
		t.Errorf("Feed.Primary default = %q, want %q", cfg.Feed.Primary, "mock")
	}
	if cfg.Feed.Aggregation != "median" {
		t.Errorf("Feed.Aggregation default = %q, want %q", cfg.Feed.Aggregation, "median")
	}
	if cfg.Trading.MinConfidence != 0.6 {
		t.Errorf("Trading.MinConfidence default = %v, want 0.6", cfg.Trading.MinConfidence)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level default = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	os.Setenv("ALPACA_API_KEY", "env-key")
	os.Setenv("DATA_DIR", "/env/data")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	defer os.Unsetenv("ALPACA_API_KEY")
	defer os.Unsetenv("DATA_DIR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad mode",
			mutate:  func(c *Config) { c.Mode = "live" },
			wantErr: "mode",
		},
		{
			name:    "negative commission",
			mutate:  func(c *Config) { c.Backtest.Commission = -0.01 },
			wantErr: "commission",
		},
		{
			name:    "negative slippage",
			mutate:  func(c *Config) { c.Backtest.Slippage = -1 },
			wantErr: "slippage",
		},
		{
			name:    "fraction above one",
			mutate:  func(c *Config) { c.Backtest.PositionFraction = 1.5 },
			wantErr: "position_fraction",
		},
		{
			name:    "bad aggregation",
			mutate:  func(c *Config) { c.Feed.Aggregation = "max" },
			wantErr: "aggregation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
