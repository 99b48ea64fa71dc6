package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quantbot/internal/domain"
)

// RiskManager enforces pre-trade risk rules: a cap on single-position size
// and a daily loss limit that halts new entries. A zero limit disables the
// corresponding check.
type RiskManager struct {
	maxPositionPct  float64
	maxDailyLossPct float64

	mu        sync.Mutex
	day       time.Time // UTC midnight of the current session
	dayEquity float64   // equity observed at session start

	now func() time.Time // swappable in tests
}

// NewRiskManager creates a RiskManager with the given thresholds, both
// expressed as fractions of account equity.
func NewRiskManager(maxPositionPct, maxDailyLossPct float64) *RiskManager {
	return &RiskManager{
		maxPositionPct:  maxPositionPct,
		maxDailyLossPct: maxDailyLossPct,
		now:             time.Now,
	}
}

// CheckOrder evaluates a proposed entry against the configured limits. Sell
// orders always pass: closing a position never adds risk.
func (rm *RiskManager) CheckOrder(_ context.Context, order *domain.Order, account *domain.AccountInfo) error {
	if order.Side != domain.SideBuy {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	day := rm.now().UTC().Truncate(24 * time.Hour)
	if !day.Equal(rm.day) {
		rm.day = day
		rm.dayEquity = account.Equity
	}

	if rm.maxDailyLossPct > 0 && rm.dayEquity > 0 {
		loss := (rm.dayEquity - account.Equity) / rm.dayEquity
		if loss >= rm.maxDailyLossPct {
			return fmt.Errorf("daily loss %.2f%% at or beyond limit %.2f%%",
				loss*100, rm.maxDailyLossPct*100)
		}
	}

	if rm.maxPositionPct > 0 {
		notional := order.Quantity * order.Price
		if limit := account.Equity * rm.maxPositionPct; notional > limit {
			return fmt.Errorf("order notional %.2f exceeds position limit %.2f",
				notional, limit)
		}
	}

	return nil
}
