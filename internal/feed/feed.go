// Package feed acquires market data from pluggable connectors with
// primary/secondary/fallback failover. Candles are validated before they
// leave this package; downstream consumers (strategies, the backtest core)
// assume well-formed, chronologically ordered series.
package feed

import (
	"context"
	"errors"

	"quantbot/internal/domain"
)

// ErrNotConnected is returned by a connector whose Connect has not succeeded.
var ErrNotConnected = errors.New("connector not connected")

// ErrNoData is returned when no enabled connector could serve the request.
var ErrNoData = errors.New("no data available from any connector")

// Connector is a single market-data source.
type Connector interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Price returns the latest trade price for the symbol.
	Price(ctx context.Context, symbol string) (float64, error)

	// Candles returns up to limit historical candles for the symbol at the
	// given timeframe ("1m", "5m", "15m", "1h", "1d"), oldest first.
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
}

// validCandle reports whether a candle satisfies the OHLCV consistency rules:
// all prices positive, low <= open,close <= high, volume non-negative.
func validCandle(c domain.Candle) bool {
	if c.Symbol == "" {
		return false
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return false
	}
	if c.High < c.Low {
		return false
	}
	if c.Open > c.High || c.Open < c.Low {
		return false
	}
	if c.Close > c.High || c.Close < c.Low {
		return false
	}
	return c.Volume >= 0
}

// sanitize drops malformed candles and any candle whose timestamp does not
// strictly increase over its predecessor, preserving order otherwise.
func sanitize(candles []domain.Candle) []domain.Candle {
	out := make([]domain.Candle, 0, len(candles))
	for _, c := range candles {
		if !validCandle(c) {
			continue
		}
		if len(out) > 0 && !c.Timestamp.After(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, c)
	}
	return out
}
