package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestEnumValues(t *testing.T) {
	if SideBuy != "buy" || SideSell != "sell" {
		t.Error("Side constants have unexpected values")
	}
	if SignalEnter != "enter" || SignalExit != "exit" || SignalHold != "hold" {
		t.Error("SignalKind constants have unexpected values")
	}
	if OrderTypeMarket != "market" {
		t.Errorf("OrderTypeMarket = %q, want %q", OrderTypeMarket, "market")
	}
	if OrderStatusFilled != "filled" {
		t.Errorf("OrderStatusFilled = %q, want %q", OrderStatusFilled, "filled")
	}
}

func TestPositionNotional(t *testing.T) {
	pos := Position{
		Symbol:     "BTC/USD",
		Side:       SideBuy,
		Quantity:   2,
		EntryPrice: 100,
		MarkPrice:  110,
	}
	if got := pos.Notional(); got != 220 {
		t.Errorf("Notional() = %v, want 220", got)
	}
}

func TestPositionMarkPnL(t *testing.T) {
	tests := []struct {
		name  string
		side  Side
		entry float64
		mark  float64
		qty   float64
		want  float64
	}{
		{name: "long gain", side: SideBuy, entry: 100, mark: 110, qty: 10, want: 100},
		{name: "long loss", side: SideBuy, entry: 100, mark: 95, qty: 10, want: -50},
		{name: "short gain", side: SideSell, entry: 100, mark: 90, qty: 10, want: 100},
		{name: "short loss", side: SideSell, entry: 100, mark: 105, qty: 10, want: -50},
		{name: "flat", side: SideBuy, entry: 100, mark: 100, qty: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := Position{Side: tt.side, EntryPrice: tt.entry, Quantity: tt.qty}
			got := pos.MarkPnL(tt.mark)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MarkPnL(%v) = %v, want %v", tt.mark, got, tt.want)
			}
		})
	}
}

func TestZeroValues(t *testing.T) {
	// Zero-value structs must be safely constructible.
	candle := Candle{}
	if candle.Symbol != "" || !candle.Timestamp.IsZero() {
		t.Error("expected empty zero-value Candle")
	}

	sig := Signal{
		Symbol:     "AAPL",
		Side:       SideBuy,
		Kind:       SignalEnter,
		Confidence: 0.85,
		Price:      192.5,
		Timestamp:  time.Now(),
		Strategy:   "sma-cross",
	}
	if sig.TakeProfit != 0 || sig.StopLoss != 0 || sig.Size != 0 {
		t.Error("optional Signal fields should default to zero")
	}

	result := BacktestResult{}
	if result.TotalTrades != 0 || len(result.Trades) != 0 {
		t.Error("expected empty zero-value BacktestResult")
	}
}

func TestBacktestResultMarshalJSON(t *testing.T) {
	r := BacktestResult{Strategy: "sma-cross", ProfitFactor: math.Inf(1)}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	pf, ok := decoded["profit_factor"].(float64)
	if !ok {
		t.Fatalf("profit_factor missing from %s", data)
	}
	if math.IsInf(pf, 1) || pf != math.MaxFloat64 {
		t.Errorf("profit_factor = %v, want clamped to MaxFloat64", pf)
	}
}
