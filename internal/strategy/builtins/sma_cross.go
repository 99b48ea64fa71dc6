// Package builtins provides built-in strategy implementations that ship with
// the quantbot platform.
package builtins

import (
	"context"
	"math"

	"quantbot/internal/domain"
	"quantbot/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It generates
// an enter-buy signal when the short-period SMA crosses above the long-period
// SMA, and an exit-buy signal when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// MinLookback returns one more than the long period, so a previous-bar SMA
// pair is always available for crossover detection.
func (s *SMACross) MinLookback() int {
	return s.longPeriod + 1
}

// GenerateSignal detects a crossover between the short and long SMAs of the
// window closes. A signal is produced only on the bar where the relative
// ordering of the two averages flips.
func (s *SMACross) GenerateSignal(_ context.Context, window []domain.Candle, currentPrice float64) (*domain.Signal, error) {
	if len(window) < s.longPeriod+1 {
		return nil, nil
	}

	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
	}

	shortNow := sma(closes, s.shortPeriod)
	longNow := sma(closes, s.longPeriod)
	shortPrev := sma(closes[:len(closes)-1], s.shortPeriod)
	longPrev := sma(closes[:len(closes)-1], s.longPeriod)

	last := window[len(window)-1]

	var kind domain.SignalKind
	switch {
	case shortPrev <= longPrev && shortNow > longNow:
		kind = domain.SignalEnter
	case shortPrev >= longPrev && shortNow < longNow:
		kind = domain.SignalExit
	default:
		return nil, nil
	}

	return &domain.Signal{
		Symbol:     last.Symbol,
		Side:       domain.SideBuy,
		Kind:       kind,
		Confidence: crossConfidence(shortNow, longNow),
		Price:      currentPrice,
		Timestamp:  last.Timestamp,
		Strategy:   s.Name(),
	}, nil
}

// sma returns the simple moving average of the last period values.
func sma(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// crossConfidence maps the relative divergence of the two averages into
// [0.5, 1]: a wide separation right after the cross reads as a stronger
// signal than a marginal one.
func crossConfidence(short, long float64) float64 {
	if long == 0 {
		return 0.5
	}
	divergence := math.Abs(short-long) / long
	return math.Min(1, 0.5+divergence*10)
}
