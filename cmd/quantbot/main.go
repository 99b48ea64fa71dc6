// quantbot runs the trading platform in the mode set by configuration:
// a one-shot backtest sweep over all enabled strategies and assets, or the
// dry-run loop that trades a simulated account against live data.
//
// Usage:
//
//	go build -o bin/quantbot ./cmd/quantbot/
//	bin/quantbot [-config config/quantbot.yaml] [-mode backtest|dry-run]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantbot/internal/broker"
	"quantbot/internal/config"
	"quantbot/internal/engine"
	"quantbot/internal/feed"
	"quantbot/internal/notify"
	"quantbot/internal/store"
	"quantbot/internal/util"
)

func main() {
	defaultPath := "config/quantbot.yaml"
	if p := os.Getenv("QUANTBOT_CONFIG"); p != "" {
		defaultPath = p
	}
	cfgPath := flag.String("config", defaultPath, "path to configuration file")
	mode := flag.String("mode", "", "override configured mode (backtest or dry-run)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *mode != "" {
		cfg.Mode = *mode
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid mode override: %v", err)
		}
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer sqlStore.Close()

	stores := engine.Stores{
		Candles: store.NewParquetStore(cfg.Storage.DataDir),
		Trades:  sqlStore,
		Signals: sqlStore,
		Orders:  sqlStore,
		Results: sqlStore,
	}

	manager := buildFeed(cfg, logger)
	if err := manager.ConnectAll(ctx); err != nil {
		log.Fatalf("connecting data feeds: %v", err)
	}
	defer manager.DisconnectAll(context.Background())

	eng, err := engine.New(cfg, manager,
		broker.NewSimulatorBroker(cfg.Backtest.InitialCapital),
		buildDispatcher(cfg, logger), stores, logger)
	if err != nil {
		log.Fatalf("initializing engine: %v", err)
	}

	logger.Info("quantbot starting", "mode", cfg.Mode)
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("engine: %v", err)
	}
}

// buildFeed assembles the connector chain from configuration, in priority
// order: primary, secondary, fallback.
func buildFeed(cfg *config.Config, logger *slog.Logger) *feed.Manager {
	var connectors []feed.Connector
	for _, name := range []string{cfg.Feed.Primary, cfg.Feed.Secondary, cfg.Feed.Fallback} {
		switch name {
		case "":
		case "mock":
			connectors = append(connectors, feed.NewMockConnector(time.Now().UnixNano()))
		case "alpaca":
			connectors = append(connectors, feed.NewAlpacaConnector(
				cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
				cfg.Feed.RateLimitPerMin, cfg.Feed.MaxRetries, logger))
		default:
			log.Fatalf("unknown feed connector %q", name)
		}
	}
	return feed.NewManager(cfg.Feed.Aggregation, logger, connectors...)
}

// buildDispatcher wires the enabled notification channels.
func buildDispatcher(cfg *config.Config, logger *slog.Logger) *notify.Dispatcher {
	var notifiers []notify.Notifier
	if cfg.Notify.Telegram.Enabled {
		notifiers = append(notifiers, notify.NewTelegramNotifier(
			cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID, "", logger))
	}
	if cfg.Notify.Email.Enabled {
		e := cfg.Notify.Email
		notifiers = append(notifiers, notify.NewEmailNotifier(
			e.SMTPHost, e.SMTPPort, e.Username, e.Password, e.From, e.To, logger))
	}
	return notify.NewDispatcher(cfg.Notify.RateLimitPerMin, logger, notifiers...)
}
