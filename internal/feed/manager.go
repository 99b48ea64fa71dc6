package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"quantbot/internal/domain"
)

// Manager fronts a prioritized list of connectors. Historical candles come
// from the first healthy connector in priority order (failover); spot prices
// are aggregated across every healthy connector so a single skewed source
// cannot poison a trading decision.
type Manager struct {
	connectors  []Connector // priority order: primary, secondary, fallback
	aggregation string      // median, mean, or last
	log         *slog.Logger

	mu        sync.Mutex
	connected map[string]bool
}

// NewManager creates a Manager over the given connectors, tried in the order
// supplied. aggregation selects how spot prices from multiple sources are
// combined: "median" (default), "mean", or "last".
func NewManager(aggregation string, log *slog.Logger, connectors ...Connector) *Manager {
	if aggregation == "" {
		aggregation = "median"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		connectors:  connectors,
		aggregation: aggregation,
		log:         log.With("component", "feed"),
		connected:   make(map[string]bool),
	}
}

// ConnectAll connects every connector. A connector that fails to connect is
// left out of rotation but does not fail the call; an error is returned only
// when no connector at all came up.
func (m *Manager) ConnectAll(ctx context.Context) error {
	up := 0
	for _, c := range m.connectors {
		if err := c.Connect(ctx); err != nil {
			m.log.Error("connector failed to connect", "connector", c.Name(), "error", err)
			continue
		}
		m.setConnected(c.Name(), true)
		m.log.Info("connector connected", "connector", c.Name())
		up++
	}
	if up == 0 {
		return fmt.Errorf("connecting feed: %w", ErrNoData)
	}
	return nil
}

// DisconnectAll disconnects every connector, logging failures.
func (m *Manager) DisconnectAll(ctx context.Context) {
	for _, c := range m.connectors {
		if err := c.Disconnect(ctx); err != nil {
			m.log.Error("connector failed to disconnect", "connector", c.Name(), "error", err)
		}
		m.setConnected(c.Name(), false)
	}
}

// Price queries every healthy connector and aggregates the answers. A
// connector error demotes that connector for the call but never fails the
// whole request while another source still answers.
func (m *Manager) Price(ctx context.Context, symbol string) (float64, error) {
	var prices []float64
	for _, c := range m.connectors {
		if !m.isConnected(c.Name()) {
			continue
		}
		price, err := c.Price(ctx, symbol)
		if err != nil {
			m.log.Warn("price fetch failed", "connector", c.Name(), "symbol", symbol, "error", err)
			continue
		}
		if price > 0 {
			prices = append(prices, price)
		}
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("price for %s: %w", symbol, ErrNoData)
	}
	return aggregate(prices, m.aggregation), nil
}

// Candles returns validated history from the first connector that can serve
// it, in priority order.
func (m *Manager) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	for _, c := range m.connectors {
		if !m.isConnected(c.Name()) {
			continue
		}
		candles, err := c.Candles(ctx, symbol, timeframe, limit)
		if err != nil {
			m.log.Warn("candle fetch failed, trying next connector",
				"connector", c.Name(), "symbol", symbol, "error", err)
			continue
		}
		if valid := sanitize(candles); len(valid) > 0 {
			m.log.Info("fetched candles",
				"connector", c.Name(), "symbol", symbol, "count", len(valid))
			return valid, nil
		}
	}
	return nil, fmt.Errorf("candles for %s: %w", symbol, ErrNoData)
}

func aggregate(prices []float64, method string) float64 {
	switch method {
	case "mean":
		sum := 0.0
		for _, p := range prices {
			sum += p
		}
		return sum / float64(len(prices))
	case "last":
		return prices[len(prices)-1]
	default: // median
		sorted := append([]float64(nil), prices...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2
		}
		return sorted[mid]
	}
}

// HealthCheck probes every connector with a spot-price request and reports
// per-connector health.
func (m *Manager) HealthCheck(ctx context.Context, symbol string) map[string]bool {
	results := make(map[string]bool, len(m.connectors))
	for _, c := range m.connectors {
		if !m.isConnected(c.Name()) {
			results[c.Name()] = false
			continue
		}
		price, err := c.Price(ctx, symbol)
		results[c.Name()] = err == nil && price > 0
	}
	return results
}

func (m *Manager) setConnected(name string, up bool) {
	m.mu.Lock()
	m.connected[name] = up
	m.mu.Unlock()
}

func (m *Manager) isConnected(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected[name]
}
