// Package engine wires the platform together: it builds strategies from
// configuration, drives backtest runs over historical candles, and runs the
// dry-run trading loop against the simulated broker.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quantbot/internal/backtest"
	"quantbot/internal/broker"
	"quantbot/internal/config"
	"quantbot/internal/domain"
	"quantbot/internal/feed"
	"quantbot/internal/notify"
	"quantbot/internal/store"
	"quantbot/internal/strategy"
	"quantbot/internal/strategy/builtins"
)

// MarketData is the slice of the feed manager the engine consumes.
type MarketData interface {
	Price(ctx context.Context, symbol string) (float64, error)
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
}

var _ MarketData = (*feed.Manager)(nil)

// positionMarker is implemented by brokers that track mark-to-market equity.
type positionMarker interface {
	MarkPositions(symbol string, price float64)
}

// Stores bundles the persistence interfaces the engine writes to.
type Stores struct {
	Candles store.CandleStore
	Trades  store.TradeStore
	Signals store.SignalStore
	Orders  store.OrderStore
	Results store.ResultStore
}

// Engine orchestrates the trading lifecycle: market data in, signals out,
// orders to the broker, everything persisted and announced along the way.
type Engine struct {
	cfg      *config.Config
	feed     MarketData
	registry *strategy.Registry
	broker   broker.Broker
	risk     *RiskManager
	notify   *notify.Dispatcher
	stores   Stores
	log      *slog.Logger
}

// New creates an Engine from the loaded configuration and its collaborators.
// Strategies are instantiated from cfg.Strategies; at least one must be
// enabled.
func New(cfg *config.Config, md MarketData, b broker.Broker, dispatcher *notify.Dispatcher, stores Stores, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}

	registry := strategy.NewRegistry()
	for _, sc := range cfg.Strategies {
		if !sc.Enabled {
			continue
		}
		strat, err := buildStrategy(sc)
		if err != nil {
			return nil, err
		}
		registry.Register(strat)
	}
	if len(registry.List()) == 0 {
		return nil, fmt.Errorf("no enabled strategies in configuration")
	}

	return &Engine{
		cfg:      cfg,
		feed:     md,
		registry: registry,
		broker:   b,
		risk:     NewRiskManager(cfg.Trading.MaxPositionPct, cfg.Trading.MaxDailyLossPct),
		notify:   dispatcher,
		stores:   stores,
		log:      log.With("component", "engine"),
	}, nil
}

// buildStrategy constructs a builtin strategy from its config entry. Missing
// params fall back to the strategy's conventional defaults.
func buildStrategy(sc config.StrategyConfig) (strategy.Strategy, error) {
	param := func(key string, def float64) float64 {
		if v, ok := sc.Params[key]; ok {
			return v
		}
		return def
	}

	switch sc.Name {
	case "sma-cross":
		return builtins.NewSMACross(
			int(param("short_period", 10)),
			int(param("long_period", 30)),
		), nil
	case "rsi-reversion":
		return builtins.NewRSIReversion(
			int(param("period", 14)),
			param("oversold", 30),
			param("overbought", 70),
		), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", sc.Name)
	}
}

// Strategies returns the names of all strategies the engine runs.
func (e *Engine) Strategies() []string {
	return e.registry.List()
}

// Run dispatches on the configured mode and blocks until the mode completes
// or the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	switch e.cfg.Mode {
	case "backtest":
		return e.RunBacktests(ctx)
	case "dry-run":
		return e.RunDryRun(ctx)
	default:
		return fmt.Errorf("unknown mode %q", e.cfg.Mode)
	}
}

// ---------------------------------------------------------------------------
// Backtest mode
// ---------------------------------------------------------------------------

// RunBacktests backtests every enabled strategy against every enabled asset.
// Failures on one pair are logged and do not abort the rest.
func (e *Engine) RunBacktests(ctx context.Context) error {
	var ran, failed int
	for _, asset := range e.cfg.Assets {
		if !asset.Enabled {
			continue
		}
		series, err := e.history(ctx, asset.Symbol, asset.Timeframe, e.cfg.Backtest.HistoryLimit)
		if err != nil {
			e.log.Error("history fetch failed", "symbol", asset.Symbol, "error", err)
			failed++
			continue
		}
		for _, name := range e.registry.List() {
			if _, err := e.backtestOne(ctx, name, asset.Symbol, series); err != nil {
				e.log.Error("backtest failed",
					"strategy", name, "symbol", asset.Symbol, "error", err)
				failed++
				continue
			}
			ran++
		}
	}
	e.log.Info("backtest sweep complete", "ran", ran, "failed", failed)
	if ran == 0 && failed > 0 {
		return fmt.Errorf("all %d backtests failed", failed)
	}
	return nil
}

// RunBacktestFor fetches history for the symbol and backtests a single named
// strategy against it. A non-positive limit uses the configured history limit.
func (e *Engine) RunBacktestFor(ctx context.Context, strategyName, symbol string, limit int) (*domain.BacktestResult, error) {
	if _, ok := e.registry.Get(strategyName); !ok {
		return nil, fmt.Errorf("unknown strategy %q", strategyName)
	}
	if limit <= 0 {
		limit = e.cfg.Backtest.HistoryLimit
	}
	series, err := e.history(ctx, symbol, e.timeframeFor(symbol), limit)
	if err != nil {
		return nil, err
	}
	return e.backtestOne(ctx, strategyName, symbol, series)
}

func (e *Engine) backtestOne(ctx context.Context, strategyName, symbol string, series []domain.Candle) (*domain.BacktestResult, error) {
	strat, ok := e.registry.Get(strategyName)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", strategyName)
	}

	bt := backtest.New(backtest.Config{
		InitialCapital:   e.cfg.Backtest.InitialCapital,
		Commission:       e.cfg.Backtest.Commission,
		Slippage:         e.cfg.Backtest.Slippage,
		PositionFraction: e.cfg.Backtest.PositionFraction,
	}, e.log)

	result, err := bt.Run(ctx, strat, series, symbol)
	if err != nil {
		return nil, err
	}

	if len(result.Trades) > 0 {
		if err := e.stores.Trades.SaveTrades(ctx, result.Trades); err != nil {
			e.log.Warn("saving backtest trades failed", "error", err)
		}
	}
	if err := e.stores.Results.SaveResult(ctx, result); err != nil {
		e.log.Warn("saving backtest result failed", "error", err)
	}
	e.notify.NotifyResult(ctx, result)
	return result, nil
}

// history fetches candles from the feed, persisting them for later replay.
// When the feed is unavailable it falls back to previously stored candles.
func (e *Engine) history(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	series, err := e.feed.Candles(ctx, symbol, timeframe, limit)
	if err == nil {
		if werr := e.stores.Candles.WriteCandles(ctx, series); werr != nil {
			e.log.Warn("persisting candles failed", "symbol", symbol, "error", werr)
		}
		return series, nil
	}

	e.log.Warn("feed unavailable, reading stored candles", "symbol", symbol, "error", err)
	stored, serr := e.stores.Candles.ReadCandles(ctx, symbol, timeframe, time.Time{}, time.Now().UTC())
	if serr != nil || len(stored) == 0 {
		return nil, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	if len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	return stored, nil
}

func (e *Engine) timeframeFor(symbol string) string {
	for _, asset := range e.cfg.Assets {
		if asset.Symbol == symbol {
			return asset.Timeframe
		}
	}
	return "1h"
}

// ---------------------------------------------------------------------------
// Dry-run mode
// ---------------------------------------------------------------------------

// RunDryRun evaluates every enabled asset on a fixed interval until the
// context is cancelled. The first evaluation happens immediately.
func (e *Engine) RunDryRun(ctx context.Context) error {
	interval := time.Duration(e.cfg.Trading.IntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("dry-run loop started",
		"interval", interval, "strategies", e.registry.List())

	for {
		e.tick(ctx)
		select {
		case <-ctx.Done():
			e.log.Info("dry-run loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick runs one evaluation pass over all enabled assets.
func (e *Engine) tick(ctx context.Context) {
	for _, asset := range e.cfg.Assets {
		if !asset.Enabled {
			continue
		}
		e.evaluateAsset(ctx, asset)
	}
}

// evaluateAsset fetches current market data for one asset and runs every
// strategy against it, acting on any signal that clears the confidence bar.
func (e *Engine) evaluateAsset(ctx context.Context, asset config.AssetConfig) {
	price, err := e.feed.Price(ctx, asset.Symbol)
	if err != nil {
		e.log.Warn("price fetch failed", "symbol", asset.Symbol, "error", err)
		return
	}
	if marker, ok := e.broker.(positionMarker); ok {
		marker.MarkPositions(asset.Symbol, price)
	}

	window, err := e.feed.Candles(ctx, asset.Symbol, asset.Timeframe, e.maxLookback())
	if err != nil {
		e.log.Warn("candle fetch failed", "symbol", asset.Symbol, "error", err)
		return
	}

	for _, name := range e.registry.List() {
		strat, _ := e.registry.Get(name)

		sig, err := strat.GenerateSignal(ctx, window, price)
		if err != nil {
			e.log.Warn("signal generation failed",
				"strategy", name, "symbol", asset.Symbol, "error", err)
			continue
		}
		if sig == nil {
			continue
		}
		if sig.Confidence < e.cfg.Trading.MinConfidence {
			e.log.Debug("signal below confidence threshold",
				"strategy", name, "symbol", asset.Symbol,
				"confidence", sig.Confidence)
			continue
		}

		if err := e.stores.Signals.SaveSignal(ctx, sig); err != nil {
			e.log.Warn("saving signal failed", "error", err)
		}
		e.notify.NotifySignal(ctx, sig)
		e.execute(ctx, sig)
	}
}

// execute turns an actionable signal into a simulated order.
func (e *Engine) execute(ctx context.Context, sig *domain.Signal) {
	switch sig.Kind {
	case domain.SignalEnter:
		e.executeEnter(ctx, sig)
	case domain.SignalExit:
		e.executeExit(ctx, sig)
	}
}

func (e *Engine) executeEnter(ctx context.Context, sig *domain.Signal) {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		e.log.Warn("position lookup failed", "error", err)
		return
	}
	for _, pos := range positions {
		if pos.Symbol == sig.Symbol {
			return // already in the market for this symbol
		}
	}

	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		e.log.Warn("account lookup failed", "error", err)
		return
	}
	if sig.Price <= 0 {
		return
	}
	quantity := account.Cash * e.cfg.Backtest.PositionFraction / sig.Price
	if quantity <= 0 {
		return
	}

	order := &domain.Order{
		Symbol:    sig.Symbol,
		Side:      domain.SideBuy,
		Type:      domain.OrderTypeMarket,
		Quantity:  quantity,
		Price:     sig.Price,
		Strategy:  sig.Strategy,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.risk.CheckOrder(ctx, order, account); err != nil {
		e.log.Warn("order blocked by risk check",
			"symbol", sig.Symbol, "strategy", sig.Strategy, "error", err)
		return
	}
	e.submit(ctx, order)
}

func (e *Engine) executeExit(ctx context.Context, sig *domain.Signal) {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		e.log.Warn("position lookup failed", "error", err)
		return
	}
	var pos *domain.Position
	for i := range positions {
		if positions[i].Symbol == sig.Symbol {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		return // nothing to close
	}

	order := &domain.Order{
		Symbol:    sig.Symbol,
		Side:      domain.SideSell,
		Type:      domain.OrderTypeMarket,
		Quantity:  pos.Quantity,
		Price:     sig.Price,
		Strategy:  sig.Strategy,
		CreatedAt: time.Now().UTC(),
	}
	filled := e.submit(ctx, order)
	if filled == nil {
		return
	}

	trade := &domain.Trade{
		ID:          fmt.Sprintf("dry_%s", filled.ID),
		OrderID:     filled.ID,
		Symbol:      sig.Symbol,
		Side:        pos.Side,
		Quantity:    pos.Quantity,
		Price:       sig.Price,
		Timestamp:   filled.CreatedAt,
		RealizedPnL: pos.MarkPnL(sig.Price),
	}
	if err := e.stores.Trades.SaveTrades(ctx, []domain.Trade{*trade}); err != nil {
		e.log.Warn("saving trade failed", "error", err)
	}
	e.notify.NotifyTrade(ctx, trade)
}

// submit sends the order to the broker and persists the outcome, rejections
// included. Returns the filled order, or nil when it was not filled.
func (e *Engine) submit(ctx context.Context, order *domain.Order) *domain.Order {
	placed, err := e.broker.SubmitOrder(ctx, order)
	if placed != nil {
		if serr := e.stores.Orders.SaveOrder(ctx, placed); serr != nil {
			e.log.Warn("saving order failed", "error", serr)
		}
	}
	if err != nil {
		e.log.Warn("order rejected",
			"symbol", order.Symbol, "side", order.Side, "error", err)
		return nil
	}
	e.log.Info("order filled",
		"id", placed.ID, "symbol", placed.Symbol, "side", placed.Side,
		"quantity", placed.Quantity, "price", placed.Price)
	return placed
}

// maxLookback returns the largest candle window any registered strategy
// needs, so one feed request serves them all.
func (e *Engine) maxLookback() int {
	max := 0
	for _, name := range e.registry.List() {
		if strat, ok := e.registry.Get(name); ok && strat.MinLookback() > max {
			max = strat.MinLookback()
		}
	}
	if max == 0 {
		max = 100
	}
	return max
}
