package feed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quantbot/internal/domain"
)

var _ Connector = (*MockConnector)(nil)

// defaultBasePrices seeds the synthetic universe. Unknown symbols start at
// 100.
var defaultBasePrices = map[string]float64{
	"BTC/USD": 45000,
	"ETH/USD": 2500,
	"AAPL":    180,
	"SPY":     500,
}

// MockConnector generates deterministic synthetic market data from a seeded
// random walk. It backs dry-run mode and tests, and serves as the fallback
// source when real providers are down.
type MockConnector struct {
	seed int64

	mu        sync.Mutex
	rng       *rand.Rand
	prices    map[string]float64
	connected bool
}

// NewMockConnector creates a MockConnector. The same seed always produces
// the same price paths.
func NewMockConnector(seed int64) *MockConnector {
	prices := make(map[string]float64, len(defaultBasePrices))
	for s, p := range defaultBasePrices {
		prices[s] = p
	}
	return &MockConnector{
		seed:   seed,
		rng:    rand.New(rand.NewSource(seed)),
		prices: prices,
	}
}

func (m *MockConnector) Name() string { return "mock" }

func (m *MockConnector) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockConnector) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Price returns the symbol's current synthetic price, advanced by one small
// random step per call.
func (m *MockConnector) Price(_ context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0, ErrNotConnected
	}

	price := m.basePrice(symbol)
	price *= 1 + (m.rng.Float64()*2-1)*0.001
	m.prices[symbol] = price
	return price, nil
}

// Candles returns a synthetic random-walk series ending at the current
// synthetic price, oldest first, with consistent OHLC bounds.
func (m *MockConnector) Candles(_ context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, ErrNotConnected
	}
	if limit <= 0 {
		return nil, fmt.Errorf("invalid candle limit %d", limit)
	}

	step := timeframeDuration(timeframe)
	end := time.Now().UTC().Truncate(step)
	price := m.basePrice(symbol)

	candles := make([]domain.Candle, limit)
	for i := 0; i < limit; i++ {
		open := price
		close := open * (1 + (m.rng.Float64()*2-1)*0.01)
		high := open
		if close > high {
			high = close
		}
		high *= 1 + m.rng.Float64()*0.005
		low := open
		if close < low {
			low = close
		}
		low *= 1 - m.rng.Float64()*0.005

		candles[i] = domain.Candle{
			Symbol:    symbol,
			Timestamp: end.Add(-time.Duration(limit-1-i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    100 + m.rng.Float64()*9900,
			Timeframe: timeframe,
			Source:    m.Name(),
		}
		price = close
	}

	return candles, nil
}

func (m *MockConnector) basePrice(symbol string) float64 {
	if p, ok := m.prices[symbol]; ok {
		return p
	}
	m.prices[symbol] = 100
	return 100
}

// timeframeDuration maps a timeframe label to its bar interval, defaulting
// to one hour.
func timeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
