package features

import (
	"context"

	"github.com/dnldd/dayone/shared"
	"github.com/rs/zerolog"
)

const (
	// BroadMarketSymbol is the broad index proxy used for market temperature
	// and trailing return readings.
	BroadMarketSymbol = "SPY"
	// DefaultSectorSymbol is the sector proxy used when a listing has no
	// dedicated sector fund.
	DefaultSectorSymbol = "QQQ"
	// trailingReturnDays is the lookback window for trailing returns.
	trailingReturnDays = 30
)

// LiveMarketFeatures derives the market conditions block from live data. Every
// fetch failure falls back to the block's neutral default rather than
// propagating, partial market data should not block scoring.
func LiveMarketFeatures(ctx context.Context, source shared.MarketSource, sectorSymbol string, sameWeekListings int, logger *zerolog.Logger) Market {
	market := DefaultMarket()

	if sectorSymbol == "" {
		sectorSymbol = DefaultSectorSymbol
	}

	volatility, err := source.VolatilityLevel(ctx)
	switch {
	case err != nil:
		logger.Warn().Msgf("fetching volatility level: %v", err)
	default:
		market.VolatilityLevel = volatility
	}

	broadReturn, err := source.TrailingReturn(ctx, BroadMarketSymbol, trailingReturnDays)
	switch {
	case err != nil:
		logger.Warn().Msgf("fetching %s trailing return: %v", BroadMarketSymbol, err)
	default:
		market.BroadReturn30D = broadReturn
		// The broad index trailing return doubles as the market temperature
		// proxy until first-day returns of recent listings are tracked.
		market.RecentIPOAvgReturn = broadReturn
	}

	sectorReturn, err := source.TrailingReturn(ctx, sectorSymbol, trailingReturnDays)
	switch {
	case err != nil:
		logger.Warn().Msgf("fetching %s trailing return: %v", sectorSymbol, err)
	default:
		market.SectorReturn30D = sectorReturn
	}

	if sameWeekListings > 0 {
		market.IPOsSameWeek = float64(sameWeekListings)
	}

	return market
}
