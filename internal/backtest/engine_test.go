package backtest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"quantbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// series builds candles with the given closes, one day apart.
func series(closes ...float64) []domain.Candle {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			Symbol:    "TEST",
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func enterBuy() *domain.Signal {
	return &domain.Signal{Side: domain.SideBuy, Kind: domain.SignalEnter, Confidence: 1}
}

func exitSig(side domain.Side) *domain.Signal {
	return &domain.Signal{Side: side, Kind: domain.SignalExit, Confidence: 1}
}

// scriptStrategy returns pre-scripted signals (or errors) keyed by call index.
type scriptStrategy struct {
	lookback int
	signals  map[int]*domain.Signal
	errs     map[int]error
	calls    int
}

func (s *scriptStrategy) Name() string     { return "script" }
func (s *scriptStrategy) MinLookback() int { return s.lookback }

func (s *scriptStrategy) GenerateSignal(_ context.Context, _ []domain.Candle, _ float64) (*domain.Signal, error) {
	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return nil, err
	}
	return s.signals[i], nil
}

func TestRunInsufficientData(t *testing.T) {
	e := New(Config{InitialCapital: 10000}, testLogger())
	strat := &scriptStrategy{lookback: 5}

	result, err := e.Run(context.Background(), strat, series(100, 100, 100, 100), "TEST")
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Run error = %v, want ErrInsufficientData", err)
	}
	if result != nil {
		t.Errorf("Run returned partial result %+v, want nil", result)
	}
}

func TestRunRoundTrip(t *testing.T) {
	e := New(Config{InitialCapital: 10000, PositionFraction: 0.1}, testLogger())
	strat := &scriptStrategy{
		lookback: 2,
		signals: map[int]*domain.Signal{
			0: enterBuy(),              // bar at close 100
			1: exitSig(domain.SideBuy), // bar at close 110
		},
	}

	result, err := e.Run(context.Background(), strat, series(100, 100, 100, 110, 110), "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", result.TotalTrades)
	}
	tr := result.Trades[0]
	if math.Abs(tr.Quantity-10) > 1e-9 {
		t.Errorf("Quantity = %v, want 10", tr.Quantity)
	}
	if math.Abs(tr.RealizedPnL-100) > 1e-9 {
		t.Errorf("RealizedPnL = %v, want 100", tr.RealizedPnL)
	}
	if math.Abs(result.FinalCapital-10100) > 1e-9 {
		t.Errorf("FinalCapital = %v, want 10100", result.FinalCapital)
	}
	if math.Abs(result.TotalReturn-0.01) > 1e-9 {
		t.Errorf("TotalReturn = %v, want 0.01", result.TotalReturn)
	}
	if result.WinRate != 1 {
		t.Errorf("WinRate = %v, want 1", result.WinRate)
	}
	if !math.IsInf(result.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %v, want +Inf", result.ProfitFactor)
	}
	if result.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %v, want 0", result.MaxDrawdown)
	}

	wantEquity := []float64{10000, 10100, 10100}
	if len(result.EquityCurve) != len(wantEquity) {
		t.Fatalf("len(EquityCurve) = %d, want %d", len(result.EquityCurve), len(wantEquity))
	}
	for i, want := range wantEquity {
		if math.Abs(result.EquityCurve[i]-want) > 1e-9 {
			t.Errorf("EquityCurve[%d] = %v, want %v", i, result.EquityCurve[i], want)
		}
	}
}

func TestRunCapitalConservation(t *testing.T) {
	e := New(Config{
		InitialCapital:   10000,
		Commission:       0.001,
		Slippage:         0.002,
		PositionFraction: 0.1,
	}, testLogger())
	strat := &scriptStrategy{
		lookback: 2,
		signals: map[int]*domain.Signal{
			0: enterBuy(),
			2: exitSig(domain.SideBuy),
			3: enterBuy(),
			5: exitSig(domain.SideBuy),
		},
	}

	result, err := e.Run(context.Background(), strat, series(100, 101, 102, 103, 104, 105, 106, 107, 108), "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.TotalTrades != 2 {
		t.Fatalf("TotalTrades = %d, want 2", result.TotalTrades)
	}

	var pnl, commission float64
	for _, tr := range result.Trades {
		pnl += tr.RealizedPnL
		commission += tr.Commission
	}
	want := result.InitialCapital + pnl - commission
	if math.Abs(result.FinalCapital-want) > 1e-6 {
		t.Errorf("FinalCapital = %v, want initial + pnl - commission = %v", result.FinalCapital, want)
	}
}

func TestRunForceCloseAtEnd(t *testing.T) {
	e := New(Config{InitialCapital: 10000, PositionFraction: 0.1}, testLogger())
	strat := &scriptStrategy{
		lookback: 2,
		signals:  map[int]*domain.Signal{0: enterBuy()},
	}

	s := series(100, 100, 100, 105, 110)
	result, err := e.Run(context.Background(), strat, s, "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1 from forced liquidation", result.TotalTrades)
	}
	tr := result.Trades[0]
	if !tr.Timestamp.Equal(s[len(s)-1].Timestamp) {
		t.Errorf("liquidation timestamp = %v, want final bar %v", tr.Timestamp, s[len(s)-1].Timestamp)
	}
	if math.Abs(tr.RealizedPnL-100) > 1e-9 {
		t.Errorf("RealizedPnL = %v, want 100", tr.RealizedPnL)
	}
	if math.Abs(result.FinalCapital-10100) > 1e-9 {
		t.Errorf("FinalCapital = %v, want 10100", result.FinalCapital)
	}
}

func TestRunEnterWhileOpenIgnored(t *testing.T) {
	e := New(Config{InitialCapital: 10000, PositionFraction: 0.1}, testLogger())
	strat := &scriptStrategy{
		lookback: 2,
		signals: map[int]*domain.Signal{
			0: enterBuy(),
			1: enterBuy(), // already open, must be a no-op
			2: exitSig(domain.SideBuy),
		},
	}

	result, err := e.Run(context.Background(), strat, series(100, 100, 100, 120, 110, 110), "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", result.TotalTrades)
	}
	// Sizing must reflect the first entry at 100, not the ignored one at 120.
	if math.Abs(result.Trades[0].Quantity-10) > 1e-9 {
		t.Errorf("Quantity = %v, want 10 from first entry", result.Trades[0].Quantity)
	}
}

func TestRunExitSideMismatchIgnored(t *testing.T) {
	e := New(Config{InitialCapital: 10000, PositionFraction: 0.1}, testLogger())
	strat := &scriptStrategy{
		lookback: 2,
		signals: map[int]*domain.Signal{
			0: enterBuy(),
			1: exitSig(domain.SideSell), // wrong side, must be a no-op
		},
	}

	s := series(100, 100, 100, 105, 110)
	result, err := e.Run(context.Background(), strat, s, "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", result.TotalTrades)
	}
	tr := result.Trades[0]
	if tr.Side != domain.SideBuy {
		t.Errorf("Side = %q, want %q", tr.Side, domain.SideBuy)
	}
	// The mismatched exit at 105 was ignored, so the position rode to the
	// forced liquidation at the final bar.
	if !tr.Timestamp.Equal(s[len(s)-1].Timestamp) {
		t.Errorf("close timestamp = %v, want final bar %v", tr.Timestamp, s[len(s)-1].Timestamp)
	}
}

func TestRunSignalErrorTreatedAsHold(t *testing.T) {
	e := New(Config{InitialCapital: 10000, PositionFraction: 0.1}, testLogger())
	strat := &scriptStrategy{
		lookback: 2,
		errs:     map[int]error{0: errors.New("feature computation failed")},
		signals: map[int]*domain.Signal{
			1: enterBuy(),
			2: exitSig(domain.SideBuy),
		},
	}

	result, err := e.Run(context.Background(), strat, series(100, 100, 100, 100, 110, 110), "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v, want recovery from per-bar signal failure", err)
	}
	if result.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1", result.TotalTrades)
	}
	if math.Abs(result.FinalCapital-10100) > 1e-9 {
		t.Errorf("FinalCapital = %v, want 10100", result.FinalCapital)
	}
}

func TestRunFlatSeriesNoSignals(t *testing.T) {
	closes := make([]float64, 150)
	for i := range closes {
		closes[i] = 100
	}

	e := New(Config{InitialCapital: 10000}, testLogger())
	strat := &scriptStrategy{lookback: 0} // falls back to the 100-bar default

	result, err := e.Run(context.Background(), strat, series(closes...), "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.TotalTrades != 0 {
		t.Errorf("TotalTrades = %d, want 0", result.TotalTrades)
	}
	if result.FinalCapital != 10000 {
		t.Errorf("FinalCapital = %v, want 10000", result.FinalCapital)
	}
	for _, got := range []struct {
		name  string
		value float64
	}{
		{"TotalReturn", result.TotalReturn},
		{"WinRate", result.WinRate},
		{"MaxDrawdown", result.MaxDrawdown},
		{"SharpeRatio", result.SharpeRatio},
		{"SortinoRatio", result.SortinoRatio},
		{"ProfitFactor", result.ProfitFactor},
	} {
		if got.value != 0 {
			t.Errorf("%s = %v, want exactly 0", got.name, got.value)
		}
	}

	if len(result.EquityCurve) != 50 {
		t.Fatalf("len(EquityCurve) = %d, want 50", len(result.EquityCurve))
	}
	for i, eq := range result.EquityCurve {
		if eq != 10000 {
			t.Fatalf("EquityCurve[%d] = %v, want flat 10000", i, eq)
		}
	}
	for i, dd := range result.DrawdownCurve {
		if dd != 0 {
			t.Fatalf("DrawdownCurve[%d] = %v, want 0", i, dd)
		}
	}
}

func TestRunAlternatingSignals(t *testing.T) {
	signals := make(map[int]*domain.Signal)
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			signals[i] = enterBuy()
		} else {
			signals[i] = exitSig(domain.SideBuy)
		}
	}

	e := New(Config{InitialCapital: 10000, PositionFraction: 0.1}, testLogger())
	strat := &scriptStrategy{lookback: 2, signals: signals}

	closes := make([]float64, 12)
	for i := range closes {
		closes[i] = 100
	}
	result, err := e.Run(context.Background(), strat, series(closes...), "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.TotalTrades != 5 {
		t.Errorf("TotalTrades = %d, want 5", result.TotalTrades)
	}
	// Flat prices, zero costs: every round trip breaks even, and break-even
	// counts as a loss.
	if result.WinningTrades != 0 || result.LosingTrades != 5 {
		t.Errorf("winners/losers = %d/%d, want 0/5", result.WinningTrades, result.LosingTrades)
	}
	if result.WinRate != 0 {
		t.Errorf("WinRate = %v, want 0", result.WinRate)
	}
	if result.ProfitFactor != 0 {
		t.Errorf("ProfitFactor = %v, want 0", result.ProfitFactor)
	}
	if math.Abs(result.FinalCapital-10000) > 1e-9 {
		t.Errorf("FinalCapital = %v, want 10000", result.FinalCapital)
	}
}

func TestRunDrawdownMonotonic(t *testing.T) {
	e := New(Config{InitialCapital: 10000, PositionFraction: 0.1}, testLogger())
	strat := &scriptStrategy{
		lookback: 2,
		signals:  map[int]*domain.Signal{0: enterBuy()},
	}

	result, err := e.Run(context.Background(), strat,
		series(100, 100, 100, 90, 95, 80, 85, 120, 70, 75, 110), "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.MaxDrawdown <= 0 {
		t.Fatalf("MaxDrawdown = %v, want > 0 for a losing stretch", result.MaxDrawdown)
	}
	for i := 1; i < len(result.DrawdownCurve); i++ {
		if result.DrawdownCurve[i] < result.DrawdownCurve[i-1] {
			t.Fatalf("DrawdownCurve[%d] = %v < DrawdownCurve[%d] = %v, want non-decreasing",
				i, result.DrawdownCurve[i], i-1, result.DrawdownCurve[i-1])
		}
	}
	last := result.DrawdownCurve[len(result.DrawdownCurve)-1]
	if result.MaxDrawdown != last {
		t.Errorf("MaxDrawdown = %v, want final curve sample %v", result.MaxDrawdown, last)
	}
}

func TestRunSlippage(t *testing.T) {
	e := New(Config{InitialCapital: 10000, Slippage: 0.01, PositionFraction: 0.1}, testLogger())
	strat := &scriptStrategy{
		lookback: 2,
		signals: map[int]*domain.Signal{
			0: enterBuy(),
			1: exitSig(domain.SideBuy),
		},
	}

	result, err := e.Run(context.Background(), strat, series(100, 100, 100, 110, 110), "TEST")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", result.TotalTrades)
	}
	// Entry fills at 101, exit at 108.9, quantity 10.
	tr := result.Trades[0]
	if math.Abs(tr.Price-108.9) > 1e-9 {
		t.Errorf("exit Price = %v, want 108.9", tr.Price)
	}
	if math.Abs(tr.RealizedPnL-79) > 1e-9 {
		t.Errorf("RealizedPnL = %v, want 79", tr.RealizedPnL)
	}
	if math.Abs(result.FinalCapital-10079) > 1e-9 {
		t.Errorf("FinalCapital = %v, want 10079", result.FinalCapital)
	}
}

func TestRunReusable(t *testing.T) {
	e := New(Config{InitialCapital: 10000, PositionFraction: 0.1}, testLogger())
	s := series(100, 100, 100, 110, 110)

	run := func() *domain.BacktestResult {
		strat := &scriptStrategy{
			lookback: 2,
			signals: map[int]*domain.Signal{
				0: enterBuy(),
				1: exitSig(domain.SideBuy),
			},
		}
		result, err := e.Run(context.Background(), strat, s, "TEST")
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		return result
	}

	first := run()
	second := run()
	if first.FinalCapital != second.FinalCapital {
		t.Errorf("second run FinalCapital = %v, want %v (no residual state)",
			second.FinalCapital, first.FinalCapital)
	}
	if first.TotalTrades != second.TotalTrades {
		t.Errorf("second run TotalTrades = %d, want %d", second.TotalTrades, first.TotalTrades)
	}
}
