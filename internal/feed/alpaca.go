package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantbot/internal/domain"
	"quantbot/internal/util"
)

var _ Connector = (*AlpacaConnector)(nil)

// AlpacaConnector serves prices and candles from the Alpaca market-data API.
// Calls are paced by a token-bucket rate limiter and retried with exponential
// backoff.
type AlpacaConnector struct {
	client     *marketdata.Client
	limiter    *util.RateLimiter
	maxRetries int
	log        *slog.Logger
	connected  bool
}

// NewAlpacaConnector creates an AlpacaConnector with the given credentials.
// dataURL overrides the default market-data endpoint when non-empty.
func NewAlpacaConnector(apiKey, apiSecret, dataURL string, rateLimitPerMin, maxRetries int, log *slog.Logger) *AlpacaConnector {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if log == nil {
		log = slog.Default()
	}

	return &AlpacaConnector{
		client:     marketdata.NewClient(opts),
		limiter:    util.NewRateLimiter(rateLimitPerMin),
		maxRetries: maxRetries,
		log:        log.With("connector", "alpaca"),
	}
}

func (a *AlpacaConnector) Name() string { return "alpaca" }

// Connect verifies the credentials with a probe request. The underlying
// client is plain HTTPS, so there is no session to establish beyond that.
func (a *AlpacaConnector) Connect(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.client.GetLatestTrade("SPY", marketdata.GetLatestTradeRequest{}); err != nil {
		return fmt.Errorf("alpaca probe: %w", err)
	}
	a.connected = true
	return nil
}

func (a *AlpacaConnector) Disconnect(_ context.Context) error {
	a.connected = false
	return nil
}

// Price returns the latest trade price for the symbol.
func (a *AlpacaConnector) Price(ctx context.Context, symbol string) (float64, error) {
	if !a.connected {
		return 0, ErrNotConnected
	}

	var price float64
	err := util.Retry(ctx, a.maxRetries, time.Second, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
		if err != nil {
			return fmt.Errorf("GetLatestTrade %s: %w", symbol, err)
		}
		price = trade.Price
		return nil
	})
	if err != nil {
		return 0, err
	}
	return price, nil
}

// Candles fetches up to limit bars for the symbol, oldest first.
func (a *AlpacaConnector) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	if !a.connected {
		return nil, ErrNotConnected
	}

	tf, err := alpacaTimeFrame(timeframe)
	if err != nil {
		return nil, err
	}

	// Reach back far enough to cover limit bars even across weekends and
	// market closures.
	start := time.Now().UTC().Add(-time.Duration(limit*4) * timeframeDuration(timeframe))

	var bars []marketdata.Bar
	err = util.Retry(ctx, a.maxRetries, time.Second, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		bars, err = a.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  tf,
			Start:      start,
			TotalLimit: limit,
			Feed:       "iex",
		})
		if err != nil {
			return fmt.Errorf("GetBars %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, domain.Candle{
			Symbol:    symbol,
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
			Timeframe: timeframe,
			Source:    a.Name(),
		})
	}
	return candles, nil
}

func alpacaTimeFrame(timeframe string) (marketdata.TimeFrame, error) {
	switch timeframe {
	case "1m":
		return marketdata.OneMin, nil
	case "5m":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15m":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "1h", "":
		return marketdata.OneHour, nil
	case "1d":
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
}
