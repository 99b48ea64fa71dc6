// Package httpapi exposes the trading platform over a JSON REST API:
// strategies, on-demand backtests, stored results, candles, trades, and the
// simulated account.
package httpapi

import (
	"quantbot/internal/domain"
)

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// BacktestRequest asks for a single backtest run.
type BacktestRequest struct {
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol"`
	Limit    int    `json:"limit,omitempty"` // candles of history; 0 uses the configured default
}

// ResultsResponse holds stored backtest results, newest first.
type ResultsResponse struct {
	Results []domain.BacktestResult `json:"results"`
}

// CandlesResponse holds candles for one symbol and timeframe.
type CandlesResponse struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Candles   []domain.Candle `json:"candles"`
}

// TradesResponse holds recorded trades, newest first.
type TradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// SignalsResponse holds recorded signals, newest first.
type SignalsResponse struct {
	Signals []domain.Signal `json:"signals"`
}

// OrdersResponse holds recorded orders, newest first.
type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// PositionsResponse holds the broker's open positions.
type PositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// HealthResponse reports service liveness and the running mode.
type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}
