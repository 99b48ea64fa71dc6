// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry for managing multiple strategy implementations.
package strategy

import (
	"context"
	"sort"

	"quantbot/internal/domain"
)

// Strategy is the interface that all trading strategies must implement. A
// strategy is invoked once per bar with a lookback window of candles and the
// current price; it returns at most one signal per invocation. Strategies may
// hold internal state that assumes strictly sequential invocation.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// MinLookback returns the minimum number of candles the strategy needs
	// in its window before it can produce a signal.
	MinLookback() int

	// GenerateSignal inspects the lookback window and the current price and
	// returns a signal, or nil when the strategy has no opinion for this bar.
	GenerateSignal(ctx context.Context, window []domain.Candle, currentPrice float64) (*domain.Signal, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
