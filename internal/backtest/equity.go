package backtest

// equityTracker maintains the per-bar equity curve, the running peak, and the
// maximum drawdown of a run.
type equityTracker struct {
	peak        float64
	maxDrawdown float64

	equityCurve   []float64
	drawdownCurve []float64
}

func newEquityTracker(initialCapital float64) *equityTracker {
	return &equityTracker{peak: initialCapital}
}

// sample marks the open position to markPrice and appends one equity and one
// drawdown sample. Equity is free capital plus, when a position is open, the
// capital allocated to it and its unrealized P&L.
//
// The drawdown curve records the running maximum drawdown, not the
// instantaneous drawdown, so it is non-decreasing and reads as "worst
// drawdown so far". maxDrawdown is never reset, even when a new equity peak
// is set.
func (t *equityTracker) sample(l *ledger, markPrice float64) {
	equity := l.capital

	if pos := l.position; pos != nil {
		pos.MarkPrice = markPrice
		pos.UnrealizedPnL = pos.MarkPnL(markPrice)
		equity += l.costBasis + pos.UnrealizedPnL
	}

	t.equityCurve = append(t.equityCurve, equity)

	if equity > t.peak {
		t.peak = equity
	} else if t.peak > 0 {
		if dd := (t.peak - equity) / t.peak; dd > t.maxDrawdown {
			t.maxDrawdown = dd
		}
	}

	t.drawdownCurve = append(t.drawdownCurve, t.maxDrawdown)
}
