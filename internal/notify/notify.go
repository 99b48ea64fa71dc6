// Package notify delivers outbound notifications (Telegram, email) for
// signals, trades, and finished backtest runs. Delivery is best-effort: a
// failed notification is logged and never fails the caller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quantbot/internal/domain"
	"quantbot/internal/util"
)

// ErrDisabled is returned by a notifier that was disabled at construction,
// typically because its credentials are missing.
var ErrDisabled = errors.New("notifier disabled")

// Notifier is a single delivery channel.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, message string) error
}

// Dispatcher fans a notification out to every enabled channel, pacing sends
// with a shared rate limiter.
type Dispatcher struct {
	notifiers []Notifier
	limiter   *util.RateLimiter
	log       *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given channels. ratePerMinute
// bounds total outbound sends across all channels.
func NewDispatcher(ratePerMinute int, log *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if ratePerMinute <= 0 {
		ratePerMinute = 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		notifiers: notifiers,
		limiter:   util.NewRateLimiter(ratePerMinute),
		log:       log.With("component", "notify"),
	}
}

// NotifySignal sends a formatted signal notification.
func (d *Dispatcher) NotifySignal(ctx context.Context, sig *domain.Signal) {
	d.send(ctx, FormatSignal(sig))
}

// NotifyTrade sends a formatted trade notification.
func (d *Dispatcher) NotifyTrade(ctx context.Context, trade *domain.Trade) {
	d.send(ctx, FormatTrade(trade))
}

// NotifyResult sends a formatted backtest summary notification.
func (d *Dispatcher) NotifyResult(ctx context.Context, result *domain.BacktestResult) {
	d.send(ctx, FormatResult(result))
}

func (d *Dispatcher) send(ctx context.Context, message string) {
	for _, n := range d.notifiers {
		if !n.Enabled() {
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.Warn("notification dropped", "notifier", n.Name(), "error", err)
			return
		}
		if err := n.Send(ctx, message); err != nil {
			d.log.Warn("notification failed", "notifier", n.Name(), "error", err)
			continue
		}
		d.log.Debug("notification sent", "notifier", n.Name())
	}
}

// FormatSignal renders a signal as a plain-text message.
func FormatSignal(sig *domain.Signal) string {
	return fmt.Sprintf(
		"Signal: %s\nSymbol: %s\nSide: %s\nType: %s\nPrice: %.2f\nConfidence: %.0f%%",
		sig.Strategy, sig.Symbol, strings.ToUpper(string(sig.Side)), sig.Kind,
		sig.Price, sig.Confidence*100)
}

// FormatTrade renders a closed trade as a plain-text message.
func FormatTrade(trade *domain.Trade) string {
	return fmt.Sprintf(
		"Trade: %s\nSymbol: %s\nSide: %s\nQuantity: %.4f\nPrice: %.2f\nP&L: %.2f",
		trade.ID, trade.Symbol, strings.ToUpper(string(trade.Side)),
		trade.Quantity, trade.Price, trade.RealizedPnL)
}

// FormatResult renders a backtest summary as a plain-text message.
func FormatResult(result *domain.BacktestResult) string {
	return fmt.Sprintf(
		"Backtest: %s on %s\nReturn: %.2f%%\nTrades: %d\nWin rate: %.0f%%\nMax drawdown: %.2f%%\nSharpe: %.2f\nFinal capital: %.2f",
		result.Strategy, result.Symbol, result.TotalReturn*100, result.TotalTrades,
		result.WinRate*100, result.MaxDrawdown*100, result.SharpeRatio,
		result.FinalCapital)
}
