// Package broker abstracts order execution. Only the in-memory simulator is
// implemented; live brokerage execution is out of scope and signals are
// surfaced through notifications instead.
package broker

import (
	"context"

	"quantbot/internal/domain"
)

// Broker executes orders and reports account state.
type Broker interface {
	// Name returns the broker identifier (e.g. "simulator").
	Name() string

	// SubmitOrder sends an order for execution and returns the updated
	// order record.
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, orderID string) error

	// GetPositions returns all currently held positions.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// GetAccount returns a snapshot of the account's balances.
	GetAccount(ctx context.Context) (*domain.AccountInfo, error)
}
