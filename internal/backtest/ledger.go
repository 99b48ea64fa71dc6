package backtest

import (
	"fmt"
	"time"

	"quantbot/internal/domain"
)

// ledger owns the mutable run state: capital, the single open position (nil
// when flat), and the append-only trade history. Nothing outside the engine
// touches it.
//
// costBasis is the capital allocated to the open position at entry; it is
// debited from capital on open and credited back on close, so that
// finalCapital = initialCapital + sum(pnl) - sum(commission) holds exactly.
type ledger struct {
	capital        float64
	position       *domain.Position
	costBasis      float64
	openCommission float64
	trades         []domain.Trade
}

func newLedger(initialCapital float64) *ledger {
	return &ledger{capital: initialCapital}
}

// applySignal routes a non-hold signal to the execution model. Hold signals
// are filtered by the replay loop and never reach this point.
func (e *Engine) applySignal(sig *domain.Signal, price float64, ts time.Time, symbol string) {
	switch sig.Kind {
	case domain.SignalEnter:
		e.openPosition(sig, price, ts, symbol)
	case domain.SignalExit:
		e.closePosition(sig.Side, price, ts)
	}
}

// openPosition fills an enter signal. Entering while a position is already
// open is a silent no-op: at most one position exists per symbol.
func (e *Engine) openPosition(sig *domain.Signal, price float64, ts time.Time, symbol string) {
	l := e.ledger
	if l.position != nil {
		return
	}

	// Fixed-fraction sizing off current capital.
	notional := l.capital * e.cfg.PositionFraction
	quantity := notional / price

	// Entry slippage is adverse: buys fill higher, sells fill lower.
	execPrice := price * (1 + e.cfg.Slippage)
	if sig.Side == domain.SideSell {
		execPrice = price * (1 - e.cfg.Slippage)
	}

	commission := notional * e.cfg.Commission
	l.capital -= notional + commission
	l.costBasis = notional
	l.openCommission = commission

	l.position = &domain.Position{
		Symbol:     symbol,
		Side:       sig.Side,
		Quantity:   quantity,
		EntryPrice: execPrice,
		MarkPrice:  execPrice,
		TakeProfit: sig.TakeProfit,
		StopLoss:   sig.StopLoss,
		OpenedAt:   ts,
	}

	e.log.Debug("opened position",
		"side", sig.Side, "symbol", symbol,
		"quantity", quantity, "price", execPrice, "commission", commission)
}

// closePosition fills an exit signal. Closing while flat, or with a side that
// does not match the open position, is a silent no-op.
func (e *Engine) closePosition(side domain.Side, price float64, ts time.Time) {
	l := e.ledger
	pos := l.position
	if pos == nil || pos.Side != side {
		return
	}

	// Exit slippage runs opposite to entry: closing a buy fills lower,
	// closing a sell fills higher.
	execPrice := price * (1 - e.cfg.Slippage)
	if side == domain.SideSell {
		execPrice = price * (1 + e.cfg.Slippage)
	}

	var pnl float64
	if side == domain.SideBuy {
		pnl = (execPrice - pos.EntryPrice) * pos.Quantity
	} else {
		pnl = (pos.EntryPrice - execPrice) * pos.Quantity
	}

	// Commission on the mark value at the close bar; the capital allocated
	// at entry is returned alongside the realized P&L.
	commission := pos.Notional() * e.cfg.Commission
	l.capital += l.costBasis + pnl - commission

	seq := len(l.trades) + 1
	l.trades = append(l.trades, domain.Trade{
		ID:          fmt.Sprintf("trade_%d", seq),
		OrderID:     fmt.Sprintf("order_%d", seq),
		Symbol:      pos.Symbol,
		Side:        side,
		Quantity:    pos.Quantity,
		Price:       execPrice,
		Timestamp:   ts,
		Commission:  l.openCommission + commission,
		RealizedPnL: pnl,
	})

	e.log.Debug("closed position",
		"side", side, "symbol", pos.Symbol,
		"quantity", pos.Quantity, "price", execPrice, "pnl", pnl)

	l.position = nil
	l.costBasis = 0
	l.openCommission = 0
}

// forceClose liquidates the open position, if any, at the given price. Used
// at replay end; the close is a liquidation, not a strategy exit, so the side
// always matches.
func (e *Engine) forceClose(price float64, ts time.Time) {
	if pos := e.ledger.position; pos != nil {
		e.closePosition(pos.Side, price, ts)
	}
}
