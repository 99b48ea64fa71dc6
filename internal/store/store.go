// Package store persists and retrieves domain objects: candle history on
// Parquet files, and trades, signals, orders, and backtest results on SQLite.
package store

import (
	"context"
	"time"

	"quantbot/internal/domain"
)

// CandleStore persists and retrieves OHLCV candle history.
type CandleStore interface {
	// WriteCandles persists a batch of candles, merging with existing data.
	WriteCandles(ctx context.Context, candles []domain.Candle) error

	// ReadCandles returns candles for the symbol and timeframe within
	// [start, end], ordered by timestamp.
	ReadCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Candle, error)

	// ListSymbols returns all distinct symbols with stored candle data.
	ListSymbols(ctx context.Context) ([]string, error)
}

// TradeStore persists closed trades.
type TradeStore interface {
	// SaveTrades inserts a batch of trade records.
	SaveTrades(ctx context.Context, trades []domain.Trade) error

	// ListTrades returns the most recent trades for a symbol, newest first,
	// up to limit. An empty symbol matches all symbols.
	ListTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error)
}

// SignalStore persists generated signals.
type SignalStore interface {
	// SaveSignal inserts a new signal record.
	SaveSignal(ctx context.Context, signal *domain.Signal) error

	// ListSignals returns the most recent signals for a strategy, newest
	// first, up to limit. An empty strategy matches all strategies.
	ListSignals(ctx context.Context, strategy string, limit int) ([]domain.Signal, error)
}

// OrderStore persists simulated order records from dry-run mode.
type OrderStore interface {
	// SaveOrder inserts a new order record.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// ListOrders returns the most recent orders with the given status,
	// newest first, up to limit. An empty status matches all orders.
	ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error)
}

// ResultStore persists completed backtest reports.
type ResultStore interface {
	// SaveResult inserts a finished backtest report.
	SaveResult(ctx context.Context, result *domain.BacktestResult) error

	// ListResults returns the most recent reports for a strategy, newest
	// first, up to limit. An empty strategy matches all strategies.
	ListResults(ctx context.Context, strategy string, limit int) ([]domain.BacktestResult, error)
}
