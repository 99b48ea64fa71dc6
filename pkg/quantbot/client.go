// Package quantbot provides a Go client for the quantbot REST API.
package quantbot

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to a running quantbot server.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second),
	}
}

// Candle is one OHLCV bar.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Trade is a completed round trip.
type Trade struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
	Commission  float64   `json:"commission"`
	RealizedPnL float64   `json:"realized_pnl"`
}

// Position is an open holding.
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	MarkPrice     float64   `json:"mark_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Account is a snapshot of simulated balances.
type Account struct {
	Cash      float64   `json:"cash"`
	Equity    float64   `json:"equity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BacktestResult summarizes a backtest run.
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
	Trades         []Trade   `json:"trades,omitempty"`
	EquityCurve    []float64 `json:"equity_curve,omitempty"`
	DrawdownCurve  []float64 `json:"drawdown_curve,omitempty"`
}

// BacktestRequest asks the server to run one backtest.
type BacktestRequest struct {
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol"`
	Limit    int    `json:"limit,omitempty"`
}

// Health reports server liveness and mode.
type Health struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	req := c.http.R().SetContext(ctx).SetError(&apiError{})
	if params != nil {
		req.SetQueryParams(params)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: %s", path, errorMessage(resp))
	}
	return nil
}

func errorMessage(resp *resty.Response) string {
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		return e.Error
	}
	return resp.Status()
}

// GetHealth checks server liveness.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/api/v1/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStrategies lists the strategies registered on the server.
func (c *Client) GetStrategies(ctx context.Context) ([]string, error) {
	var out struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.get(ctx, "/api/v1/strategies", nil, &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// RunBacktest asks the server to backtest one strategy against one symbol.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var out BacktestResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/api/v1/backtest")
	if err != nil {
		return nil, fmt.Errorf("POST /api/v1/backtest: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("POST /api/v1/backtest: %s", errorMessage(resp))
	}
	return &out, nil
}

// GetResults lists stored backtest results, newest first. An empty strategy
// matches all strategies.
func (c *Client) GetResults(ctx context.Context, strategy string, limit int) ([]BacktestResult, error) {
	params := map[string]string{}
	if strategy != "" {
		params["strategy"] = strategy
	}
	if limit > 0 {
		params["limit"] = fmt.Sprintf("%d", limit)
	}
	var out struct {
		Results []BacktestResult `json:"results"`
	}
	if err := c.get(ctx, "/api/v1/results", params, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// GetCandles retrieves stored candles for a symbol between start and end.
func (c *Client) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Candle, error) {
	params := map[string]string{"symbol": symbol}
	if timeframe != "" {
		params["timeframe"] = timeframe
	}
	if !start.IsZero() {
		params["start"] = start.Format(time.RFC3339)
	}
	if !end.IsZero() {
		params["end"] = end.Format(time.RFC3339)
	}
	var out struct {
		Candles []Candle `json:"candles"`
	}
	if err := c.get(ctx, "/api/v1/candles", params, &out); err != nil {
		return nil, err
	}
	return out.Candles, nil
}

// GetTrades lists recorded trades, newest first. An empty symbol matches all.
func (c *Client) GetTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	params := map[string]string{}
	if symbol != "" {
		params["symbol"] = symbol
	}
	if limit > 0 {
		params["limit"] = fmt.Sprintf("%d", limit)
	}
	var out struct {
		Trades []Trade `json:"trades"`
	}
	if err := c.get(ctx, "/api/v1/trades", params, &out); err != nil {
		return nil, err
	}
	return out.Trades, nil
}

// GetPositions retrieves the broker's open positions.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var out struct {
		Positions []Position `json:"positions"`
	}
	if err := c.get(ctx, "/api/v1/positions", nil, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// GetAccount retrieves the simulated account snapshot.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	var out Account
	if err := c.get(ctx, "/api/v1/account", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
