package backtest

import (
	"math"
	"time"

	"quantbot/internal/domain"
)

// annualization converts per-bar return statistics to annual figures assuming
// one bar per trading day (252 trading days per year).
const annualization = 252

type summaryInput struct {
	strategy       string
	symbol         string
	trades         []domain.Trade
	equityCurve    []float64
	drawdownCurve  []float64
	maxDrawdown    float64
	initialCapital float64
	finalCapital   float64
	start          time.Time
	end            time.Time
}

// summarize folds the run's trade history and equity curve into a
// BacktestResult. A run with no trades reports zero for every ratio but still
// carries the curves.
func summarize(in summaryInput) *domain.BacktestResult {
	result := &domain.BacktestResult{
		Strategy:       in.strategy,
		Symbol:         in.symbol,
		InitialCapital: in.initialCapital,
		FinalCapital:   in.finalCapital,
		MaxDrawdown:    in.maxDrawdown,
		StartDate:      in.start,
		EndDate:        in.end,
		Trades:         in.trades,
		EquityCurve:    in.equityCurve,
		DrawdownCurve:  in.drawdownCurve,
	}

	if in.initialCapital > 0 {
		result.TotalReturn = (in.finalCapital - in.initialCapital) / in.initialCapital
	}

	if len(in.trades) == 0 {
		return result
	}

	var grossProfit, grossLoss float64
	for _, tr := range in.trades {
		// A trade that exactly breaks even counts as a loser.
		if tr.RealizedPnL > 0 {
			result.WinningTrades++
			grossProfit += tr.RealizedPnL
		} else {
			result.LosingTrades++
			grossLoss += -tr.RealizedPnL
		}
	}
	result.TotalTrades = len(in.trades)
	result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)

	switch {
	case grossLoss > 0:
		result.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		result.ProfitFactor = math.Inf(1)
	}

	result.SharpeRatio, result.SortinoRatio = riskRatios(in.equityCurve)

	return result
}

// riskRatios computes annualized Sharpe and Sortino ratios from the per-bar
// equity curve. Ratios are zero when there are too few samples or the
// relevant deviation vanishes.
func riskRatios(equity []float64) (sharpe, sortino float64) {
	if len(equity) < 2 {
		return 0, 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
		}
	}
	if len(returns) == 0 {
		return 0, 0
	}

	avg := mean(returns)

	if sd := stddev(returns, avg); sd > 0 {
		sharpe = avg / sd * math.Sqrt(annualization)
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) > 0 {
		if dd := stddev(downside, mean(downside)); dd > 0 {
			sortino = avg / dd * math.Sqrt(annualization)
		}
	}

	return sharpe, sortino
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation around the given mean.
func stddev(xs []float64, mu float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := x - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
