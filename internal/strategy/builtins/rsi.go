package builtins

import (
	"context"
	"math"

	"quantbot/internal/domain"
	"quantbot/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RSIReversion)(nil)

// RSIReversion implements a mean-reversion strategy on the relative strength
// index: it enters long when RSI drops below the oversold threshold and exits
// when RSI rises above the overbought threshold.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIReversion creates an RSIReversion strategy. Typical parameters are
// period 14, oversold 30, overbought 70.
func NewRSIReversion(period int, oversold, overbought float64) *RSIReversion {
	return &RSIReversion{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
	}
}

// Name returns "rsi-reversion".
func (r *RSIReversion) Name() string {
	return "rsi-reversion"
}

// MinLookback returns one more than the RSI period: computing period deltas
// requires period+1 closes.
func (r *RSIReversion) MinLookback() int {
	return r.period + 1
}

// GenerateSignal computes the RSI over the window closes and signals on
// threshold breaches.
func (r *RSIReversion) GenerateSignal(_ context.Context, window []domain.Candle, currentPrice float64) (*domain.Signal, error) {
	if len(window) < r.period+1 {
		return nil, nil
	}

	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
	}
	value := rsi(closes, r.period)

	last := window[len(window)-1]

	var kind domain.SignalKind
	var confidence float64
	switch {
	case value <= r.oversold:
		kind = domain.SignalEnter
		confidence = thresholdConfidence(r.oversold - value)
	case value >= r.overbought:
		kind = domain.SignalExit
		confidence = thresholdConfidence(value - r.overbought)
	default:
		return nil, nil
	}

	return &domain.Signal{
		Symbol:     last.Symbol,
		Side:       domain.SideBuy,
		Kind:       kind,
		Confidence: confidence,
		Price:      currentPrice,
		Timestamp:  last.Timestamp,
		Strategy:   r.Name(),
	}, nil
}

// rsi computes the relative strength index over the last period deltas using
// simple (non-smoothed) averages of gains and losses.
func rsi(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}

	gains := 0.0
	losses := 0.0
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	if losses == 0 {
		if gains == 0 {
			return 50 // flat series: neutral by convention
		}
		return 100
	}

	rs := gains / losses
	return 100 - 100/(1+rs)
}

// thresholdConfidence maps how deep the RSI breached its threshold into
// [0.6, 1].
func thresholdConfidence(depth float64) float64 {
	return math.Min(1, 0.6+depth/50)
}
