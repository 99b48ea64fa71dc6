package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quantbot/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements Broker for dry-run trading. Orders fill
// immediately at their stated price against an in-memory cash balance; no
// external calls are made.
type SimulatorBroker struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*domain.Position
	orders    map[string]*domain.Order
	seq       int
}

// NewSimulatorBroker creates a SimulatorBroker with the given starting cash.
func NewSimulatorBroker(initialCash float64) *SimulatorBroker {
	return &SimulatorBroker{
		cash:      initialCash,
		positions: make(map[string]*domain.Position),
		orders:    make(map[string]*domain.Order),
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string { return "simulator" }

// SubmitOrder fills the order immediately at order.Price. A buy opens a
// position (rejected if one is already open for the symbol or cash is
// insufficient); a sell closes the open position (rejected if none exists).
func (b *SimulatorBroker) SubmitOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	filled := *order
	if filled.ID == "" {
		b.seq++
		filled.ID = fmt.Sprintf("sim_%d", b.seq)
	}
	if filled.CreatedAt.IsZero() {
		filled.CreatedAt = time.Now().UTC()
	}

	switch order.Side {
	case domain.SideBuy:
		if _, open := b.positions[order.Symbol]; open {
			filled.Status = domain.OrderStatusRejected
			b.orders[filled.ID] = &filled
			return &filled, fmt.Errorf("position already open for %s", order.Symbol)
		}
		cost := order.Quantity * order.Price
		if cost > b.cash {
			filled.Status = domain.OrderStatusRejected
			b.orders[filled.ID] = &filled
			return &filled, fmt.Errorf("insufficient cash: need %.2f, have %.2f", cost, b.cash)
		}
		b.cash -= cost
		b.positions[order.Symbol] = &domain.Position{
			Symbol:     order.Symbol,
			Side:       domain.SideBuy,
			Quantity:   order.Quantity,
			EntryPrice: order.Price,
			MarkPrice:  order.Price,
			OpenedAt:   filled.CreatedAt,
		}

	case domain.SideSell:
		pos, open := b.positions[order.Symbol]
		if !open {
			filled.Status = domain.OrderStatusRejected
			b.orders[filled.ID] = &filled
			return &filled, fmt.Errorf("no open position for %s", order.Symbol)
		}
		b.cash += pos.Quantity * order.Price
		delete(b.positions, order.Symbol)

	default:
		filled.Status = domain.OrderStatusRejected
		b.orders[filled.ID] = &filled
		return &filled, fmt.Errorf("unknown order side %q", order.Side)
	}

	filled.Status = domain.OrderStatusFilled
	b.orders[filled.ID] = &filled
	return &filled, nil
}

// CancelOrder marks a pending order as cancelled. Filled orders cannot be
// cancelled.
func (b *SimulatorBroker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	if o.Status != domain.OrderStatusPending {
		return fmt.Errorf("order %s is %s, not cancellable", orderID, o.Status)
	}
	o.Status = domain.OrderStatusCancelled
	return nil
}

// GetPositions returns copies of all open positions.
func (b *SimulatorBroker) GetPositions(_ context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		positions = append(positions, *p)
	}
	return positions, nil
}

// GetAccount returns the simulated cash balance and mark-to-market equity.
func (b *SimulatorBroker) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for _, p := range b.positions {
		equity += p.Notional()
	}
	return &domain.AccountInfo{
		Cash:      b.cash,
		Equity:    equity,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// MarkPositions updates the mark price of any open position in the given
// symbol, keeping simulated equity current between fills.
func (b *SimulatorBroker) MarkPositions(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pos, ok := b.positions[symbol]; ok {
		pos.MarkPrice = price
		pos.UnrealizedPnL = pos.MarkPnL(price)
	}
}
