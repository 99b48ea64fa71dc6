// Package domain defines the core data types shared across the quantbot
// platform: candles, signals, positions, trades, orders, and backtest reports.
package domain

import (
	"encoding/json"
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// Side is the direction of a signal, position, or order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SignalKind classifies what a strategy wants done with a position.
type SignalKind string

const (
	SignalEnter SignalKind = "enter"
	SignalExit  SignalKind = "exit"
	SignalHold  SignalKind = "hold"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Candle is a single immutable OHLCV bar. Candles entering the core are
// pre-validated by the feed layer: low <= open,close <= high, prices > 0,
// volume >= 0, timestamps strictly increasing within a series.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// ---------------------------------------------------------------------------
// Trading
// ---------------------------------------------------------------------------

// Signal is a single trading decision produced by a strategy for one bar.
// It is created fresh per bar and never mutated. TakeProfit, StopLoss, and
// Size are zero when unset.
type Signal struct {
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	Kind       SignalKind `json:"kind"`
	Confidence float64    `json:"confidence"` // in [0, 1]
	Price      float64    `json:"price"`
	Timestamp  time.Time  `json:"timestamp"`
	Strategy   string     `json:"strategy"`
	TakeProfit float64    `json:"take_profit,omitempty"`
	StopLoss   float64    `json:"stop_loss,omitempty"`
	Size       float64    `json:"size,omitempty"`
}

// Position is an open holding in a single symbol. It is owned exclusively by
// the backtest ledger (or the dry-run broker); at most one exists per symbol.
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	MarkPrice     float64   `json:"mark_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	TakeProfit    float64   `json:"take_profit,omitempty"`
	StopLoss      float64   `json:"stop_loss,omitempty"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Notional returns the mark-to-market value of the position.
func (p *Position) Notional() float64 {
	return p.Quantity * p.MarkPrice
}

// MarkPnL returns the unrealized profit or loss of the position against the
// given mark price. Long positions gain when price rises, shorts when it falls.
func (p *Position) MarkPnL(price float64) float64 {
	if p.Side == SideBuy {
		return (price - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - price) * p.Quantity
}

// Trade is an immutable record of a closed round trip. Exactly one Trade is
// appended per position close.
type Trade struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"` // fill price at close
	Timestamp   time.Time `json:"timestamp"`
	Commission  float64   `json:"commission"`
	RealizedPnL float64   `json:"realized_pnl"`
}

// AccountInfo is a snapshot of account balances.
type AccountInfo struct {
	Cash      float64   `json:"cash"`
	Equity    float64   `json:"equity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order is a simulated order record produced in dry-run mode.
type Order struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Side      Side        `json:"side"`
	Type      OrderType   `json:"type"`
	Quantity  float64     `json:"quantity"`
	Price     float64     `json:"price"`
	Status    OrderStatus `json:"status"`
	Strategy  string      `json:"strategy"`
	CreatedAt time.Time   `json:"created_at"`
}

// ---------------------------------------------------------------------------
// Reporting
// ---------------------------------------------------------------------------

// BacktestResult is the immutable summary report of a completed backtest run.
type BacktestResult struct {
	Strategy       string    `json:"strategy"`
	Symbol         string    `json:"symbol"`
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	TotalReturn    float64   `json:"total_return"`
	TotalTrades    int       `json:"total_trades"`
	WinningTrades  int       `json:"winning_trades"`
	LosingTrades   int       `json:"losing_trades"`
	WinRate        float64   `json:"win_rate"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	SortinoRatio   float64   `json:"sortino_ratio"`
	ProfitFactor   float64   `json:"profit_factor"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Trades         []Trade   `json:"trades"`
	EquityCurve    []float64 `json:"equity_curve"`
	DrawdownCurve  []float64 `json:"drawdown_curve"`
}

// MarshalJSON clamps a +Inf profit factor (no losing trades) to the largest
// finite float, since JSON cannot represent infinity.
func (r BacktestResult) MarshalJSON() ([]byte, error) {
	type alias BacktestResult
	a := alias(r)
	if math.IsInf(a.ProfitFactor, 1) {
		a.ProfitFactor = math.MaxFloat64
	}
	return json.Marshal(a)
}
