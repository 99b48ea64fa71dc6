// quantbot-server exposes the trading platform over the JSON REST API and,
// in dry-run mode, runs the trading loop in the background while serving.
//
// Usage:
//
//	go build -o bin/quantbot-server ./cmd/quantbot-server/
//	bin/quantbot-server [-config config/quantbot.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantbot/internal/broker"
	"quantbot/internal/config"
	"quantbot/internal/engine"
	"quantbot/internal/feed"
	"quantbot/internal/httpapi"
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
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
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

	sim := broker.NewSimulatorBroker(cfg.Backtest.InitialCapital)
	eng, err := engine.New(cfg, manager, sim, buildDispatcher(cfg, logger), stores, logger)
	if err != nil {
		log.Fatalf("initializing engine: %v", err)
	}

	// The trading loop only runs alongside the API in dry-run mode; backtests
	// are requested through the API.
	if cfg.Mode == "dry-run" {
		go func() {
			if err := eng.RunDryRun(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dry-run loop exited", "error", err)
			}
		}()
	}

	api := httpapi.NewServer(eng, sim, stores, cfg.Mode, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}

	go func() {
		logger.Info("quantbot-server listening", "addr", httpServer.Addr, "mode", cfg.Mode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

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
