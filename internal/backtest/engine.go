// Package backtest replays historical candle series through a trading
// strategy and produces a deterministic performance report. The replay is
// strictly sequential: each bar is marked to market, offered to the strategy,
// and executed before the next bar begins.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quantbot/internal/domain"
	"quantbot/internal/strategy"
)

// ErrInsufficientData is returned when the historical series is shorter than
// the strategy's declared minimum lookback.
var ErrInsufficientData = errors.New("insufficient historical data")

// defaultMinLookback is used when a strategy does not declare a positive
// minimum lookback.
const defaultMinLookback = 100

// Config holds the scalar inputs of a backtest run.
type Config struct {
	InitialCapital   float64 // starting capital, > 0
	Commission       float64 // commission rate on notional, >= 0
	Slippage         float64 // adverse fill rate, >= 0
	PositionFraction float64 // fraction of capital per position; 0 means 0.1
}

// Engine replays a candle series through a strategy. An Engine is reusable
// across runs (all mutable state is reset at the start of Run) but must not
// be shared by concurrent runs; use one Engine per goroutine.
type Engine struct {
	cfg Config
	log *slog.Logger

	ledger *ledger
	equity *equityTracker
}

// New creates a backtest Engine with the given configuration.
func New(cfg Config, log *slog.Logger) *Engine {
	if cfg.PositionFraction <= 0 {
		cfg.PositionFraction = 0.1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg: cfg,
		log: log.With("component", "backtest"),
	}
}

// Run replays series through strat and returns the performance report.
//
// The series must hold at least MinLookback candles, be ordered by strictly
// increasing timestamp, and be pre-validated by the feed layer. A failure in
// signal generation aborts only that bar, never the run. Any position still
// open after the final bar is liquidated at the last close.
func (e *Engine) Run(ctx context.Context, strat strategy.Strategy, series []domain.Candle, symbol string) (*domain.BacktestResult, error) {
	minPeriods := strat.MinLookback()
	if minPeriods <= 0 {
		minPeriods = defaultMinLookback
	}
	if len(series) < minPeriods {
		return nil, fmt.Errorf("%w: have %d candles, need %d", ErrInsufficientData, len(series), minPeriods)
	}

	// Fresh state per run.
	e.ledger = newLedger(e.cfg.InitialCapital)
	e.equity = newEquityTracker(e.cfg.InitialCapital)

	e.log.Info("starting backtest",
		"strategy", strat.Name(),
		"symbol", symbol,
		"candles", len(series),
		"initial_capital", e.cfg.InitialCapital,
	)

	for i := minPeriods; i < len(series); i++ {
		window := series[i-minPeriods : i] // never includes the current bar
		price := series[i].Close

		// Mark to market before the bar's decision, so equity reflects
		// price action prior to any fill on this bar.
		e.equity.sample(e.ledger, price)

		sig, err := strat.GenerateSignal(ctx, window, price)
		if err != nil {
			// One bad bar must not abort a multi-year replay.
			e.log.Warn("signal generation failed, treating as hold",
				"strategy", strat.Name(), "bar", i, "error", err)
			continue
		}
		if sig == nil || sig.Kind == domain.SignalHold {
			continue
		}

		e.applySignal(sig, price, series[i].Timestamp, symbol)
	}

	// Liquidate whatever is still open at the final close.
	last := series[len(series)-1]
	e.forceClose(last.Close, last.Timestamp)

	result := summarize(summaryInput{
		strategy:       strat.Name(),
		symbol:         symbol,
		trades:         e.ledger.trades,
		equityCurve:    e.equity.equityCurve,
		drawdownCurve:  e.equity.drawdownCurve,
		maxDrawdown:    e.equity.maxDrawdown,
		initialCapital: e.cfg.InitialCapital,
		finalCapital:   e.ledger.capital,
		start:          series[0].Timestamp,
		end:            last.Timestamp,
	})

	e.log.Info("backtest completed",
		"strategy", strat.Name(),
		"symbol", symbol,
		"final_capital", result.FinalCapital,
		"total_return", result.TotalReturn,
		"trades", result.TotalTrades,
		"win_rate", result.WinRate,
	)

	return result, nil
}
