package shared

import "context"

// Broker defines the requirements for routing orders.
type Broker interface {
	// PlaceLimitOrder places a buy limit order for the provided quantity.
	PlaceLimitOrder(ctx context.Context, ticker string, quantity int64, limitPrice float64) error
	// Liquidate sells the provided quantity of the holding.
	Liquidate(ctx context.Context, ticker string, quantity int64, tag string) error
	// LiquidateAll fully unwinds the holding.
	LiquidateAll(ctx context.Context, ticker string, tag string) error
}

// Portfolio defines the requirements for inspecting current holdings.
type Portfolio interface {
	// HoldingQuantity returns the currently held quantity for the ticker.
	HoldingQuantity(ticker string) int64
	// UnrealizedReturn returns the fractional unrealized return for the ticker.
	UnrealizedReturn(ticker string) float64
	// Invested checks whether the ticker is currently held.
	Invested(ticker string) bool
	// HoldingsValue returns the market value of the holding.
	HoldingsValue(ticker string) float64
	// TotalValue returns the total portfolio value.
	TotalValue() float64
}

// MarketSource defines the requirements for fetching market condition data.
type MarketSource interface {
	// VolatilityLevel fetches the current volatility index level.
	VolatilityLevel(ctx context.Context) (float64, error)
	// TrailingReturn fetches the fractional return of the symbol over the
	// provided number of trading days.
	TrailingReturn(ctx context.Context, symbol string, days int) (float64, error)
}
