package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/dayone/shared"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// limitPremium prices entry limit orders 2% above the last trade, a
	// ceiling against adverse slippage that still lets cheaper fills occur.
	limitPremium = 1.02
	// profitTrimFraction is the fraction of the holding sold when the profit
	// target is hit.
	profitTrimFraction = 0.5
)

// ManagerConfig represents the position manager configuration.
type ManagerConfig struct {
	// ScoreThreshold is the minimum score to qualify for entry.
	ScoreThreshold float64
	// MaxPositions caps concurrent active tickers.
	MaxPositions int
	// MaxPositionSize bounds the per-position allocation fraction.
	MaxPositionSize float64
	// MaxIPOExposure bounds the aggregate allocation fraction across all
	// active positions.
	MaxIPOExposure float64
	// HoldingPeriodDays is the time-based exit horizon from entry.
	HoldingPeriodDays int
	// ProfitTarget is the return fraction triggering a partial exit.
	ProfitTarget float64
	// StopLoss is the (negative) return fraction triggering a full exit.
	StopLoss float64

	// Broker routes orders for the manager.
	Broker shared.Broker
	// Portfolio reports current holdings.
	Portfolio shared.Portfolio
	// MarketSource reports the prevailing volatility level.
	MarketSource shared.MarketSource
	// LastPrice fetches the last traded price for a ticker.
	LastPrice func(ticker string) (float64, error)
	// Notify sends the provided message.
	Notify func(message string)
	// PersistClosedPosition persists the provided closed position.
	PersistClosedPosition func(position *Position) error
	// Now fetches the current time.
	Now func() (time.Time, error)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.ScoreThreshold <= 0 || cfg.ScoreThreshold >= 1 {
		errs = errors.Join(errs, fmt.Errorf("score threshold must be in (0, 1): %f", cfg.ScoreThreshold))
	}
	if cfg.MaxPositions <= 0 {
		errs = errors.Join(errs, fmt.Errorf("max positions must be positive: %d", cfg.MaxPositions))
	}
	if cfg.MaxPositionSize <= 0 || cfg.MaxPositionSize > 1 {
		errs = errors.Join(errs, fmt.Errorf("max position size must be in (0, 1]: %f", cfg.MaxPositionSize))
	}
	if cfg.MaxIPOExposure <= 0 || cfg.MaxIPOExposure > 1 {
		errs = errors.Join(errs, fmt.Errorf("max ipo exposure must be in (0, 1]: %f", cfg.MaxIPOExposure))
	}
	if cfg.HoldingPeriodDays <= 0 {
		errs = errors.Join(errs, fmt.Errorf("holding period days must be positive: %d", cfg.HoldingPeriodDays))
	}
	if cfg.ProfitTarget <= 0 {
		errs = errors.Join(errs, fmt.Errorf("profit target must be positive: %f", cfg.ProfitTarget))
	}
	if cfg.StopLoss >= 0 {
		errs = errors.Join(errs, fmt.Errorf("stop loss must be negative: %f", cfg.StopLoss))
	}
	if cfg.Broker == nil {
		errs = errors.Join(errs, fmt.Errorf("broker cannot be nil"))
	}
	if cfg.Portfolio == nil {
		errs = errors.Join(errs, fmt.Errorf("portfolio cannot be nil"))
	}
	if cfg.MarketSource == nil {
		errs = errors.Join(errs, fmt.Errorf("market source cannot be nil"))
	}
	if cfg.LastPrice == nil {
		errs = errors.Join(errs, fmt.Errorf("last price function cannot be nil"))
	}
	if cfg.Notify == nil {
		errs = errors.Join(errs, fmt.Errorf("notify function cannot be nil"))
	}
	if cfg.PersistClosedPosition == nil {
		errs = errors.Join(errs, fmt.Errorf("persist closed position function cannot be nil"))
	}
	if cfg.Now == nil {
		errs = errors.Join(errs, fmt.Errorf("now function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager manages day-one listing positions through their lifecycles. It owns
// the active position set, all mutations happen synchronously within the
// scheduled CheckListings and ManagePositions invocations.
type Manager struct {
	cfg          *ManagerConfig
	positions    map[string]*Position
	pendingExits map[string]time.Time
	closed       map[string]struct{}
}

// NewManager initializes a new position manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating position manager config: %w", err)
	}

	mgr := &Manager{
		cfg:          cfg,
		positions:    make(map[string]*Position),
		pendingExits: make(map[string]time.Time),
		closed:       make(map[string]struct{}),
	}

	return mgr, nil
}

// ActiveCount returns the number of active positions.
func (m *Manager) ActiveCount() int {
	return len(m.positions)
}

// ActivePosition returns the active position for the provided ticker.
func (m *Manager) ActivePosition(ticker string) (*Position, bool) {
	pos, ok := m.positions[ticker]
	return pos, ok
}

// ipoExposure derives the aggregate listing exposure as a fraction of total
// portfolio value across the active set.
func (m *Manager) ipoExposure() float64 {
	totalValue := m.cfg.Portfolio.TotalValue()
	if totalValue <= 0 {
		return 0
	}

	var exposure float64
	for ticker := range m.positions {
		if !m.cfg.Portfolio.Invested(ticker) {
			continue
		}

		exposure += m.cfg.Portfolio.HoldingsValue(ticker) / totalValue
	}

	return exposure
}

// volatilityLevel fetches the prevailing volatility level, degrading to the
// neutral default when the source is unavailable.
func (m *Manager) volatilityLevel(ctx context.Context) float64 {
	level, err := m.cfg.MarketSource.VolatilityLevel(ctx)
	if err != nil {
		m.cfg.Logger.Warn().Msgf("fetching volatility level, using default: %v", err)
		return shared.DefaultVolatilityLevel
	}

	return level
}

// CheckListings evaluates the provided calendar records for day-one entries.
// Each rejection is independently checked and logged, and the first failing
// check short-circuits the rest for that ticker.
func (m *Manager) CheckListings(ctx context.Context, records []*shared.IPORecord) {
	now, err := m.cfg.Now()
	if err != nil {
		m.cfg.Logger.Error().Msgf("fetching current time: %v", err)
		return
	}

	for idx := range records {
		record := records[idx]

		if !record.ListingOn(now) {
			continue
		}

		if _, ok := m.positions[record.Ticker]; ok {
			continue
		}

		if _, ok := m.closed[record.Ticker]; ok {
			// No re-entry for a concluded ticker within a run.
			continue
		}

		if !record.ShouldTrade(m.cfg.ScoreThreshold) {
			m.cfg.Logger.Info().Msgf("listing %s score %.2f below threshold %.2f",
				record.Ticker, record.Score, m.cfg.ScoreThreshold)
			continue
		}

		if len(m.positions) >= m.cfg.MaxPositions {
			m.cfg.Logger.Info().Msgf("max positions (%d) reached, skipping %s",
				m.cfg.MaxPositions, record.Ticker)
			continue
		}

		exposure := m.ipoExposure()
		if exposure >= m.cfg.MaxIPOExposure {
			m.cfg.Logger.Info().Msgf("max ipo exposure (%.0f%%) reached, skipping %s",
				m.cfg.MaxIPOExposure*100, record.Ticker)
			continue
		}

		size := shared.PositionSize(record.Score, m.cfg.ScoreThreshold,
			m.cfg.MaxPositionSize, m.volatilityLevel(ctx))

		err := m.enterPosition(ctx, record, size, now)
		if err != nil {
			m.cfg.Logger.Error().Msgf("entering position for %s: %v", record.Ticker, err)
		}
	}
}

// enterPosition places a day-one entry for the provided listing record.
func (m *Manager) enterPosition(ctx context.Context, record *shared.IPORecord, size float64, now time.Time) error {
	lastPrice, err := m.cfg.LastPrice(record.Ticker)
	if err != nil {
		return fmt.Errorf("fetching last price: %w", err)
	}
	if lastPrice <= 0 {
		return fmt.Errorf("invalid last price: %f", lastPrice)
	}

	limitPrice := lastPrice * limitPremium
	targetValue := m.cfg.Portfolio.TotalValue() * size

	quantity := decimal.NewFromFloat(targetValue).
		Div(decimal.NewFromFloat(limitPrice)).IntPart()
	if quantity == 0 {
		m.cfg.Logger.Info().Msgf("calculated quantity is 0 for %s, skipping", record.Ticker)
		return nil
	}

	err = m.cfg.Broker.PlaceLimitOrder(ctx, record.Ticker, quantity, limitPrice)
	if err != nil {
		return fmt.Errorf("placing limit order: %w", err)
	}

	record.EntryPrice = limitPrice
	record.EntryTime = now
	record.ExitTargetDate = now.AddDate(0, 0, m.cfg.HoldingPeriodDays)

	pos, err := NewPosition(record, quantity, limitPrice, now, m.cfg.HoldingPeriodDays)
	if err != nil {
		return fmt.Errorf("creating position: %w", err)
	}

	m.positions[pos.Ticker] = pos
	m.pendingExits[pos.Ticker] = pos.ExitTargetDate

	msg := fmt.Sprintf("ENTRY: %s | Score: %.2f | Size: %.1f%% | Qty: %d | Limit: $%.2f | Hold until: %s",
		pos.Ticker, pos.Score, size*100, quantity, limitPrice,
		pos.ExitTargetDate.Format(shared.DateLayout))
	m.cfg.Notify(msg)

	return nil
}

// ManagePositions evaluates exits for all active positions. Checks run in
// profit, stop, time order and the first true condition short-circuits the
// remaining checks for that position on this cycle. A failure for one ticker
// never blocks the others.
func (m *Manager) ManagePositions(ctx context.Context) {
	now, err := m.cfg.Now()
	if err != nil {
		m.cfg.Logger.Error().Msgf("fetching current time: %v", err)
		return
	}

	// Snapshot the ticker set, exits mutate the active set while scanning.
	tickers := make([]string, 0, len(m.positions))
	for ticker := range m.positions {
		tickers = append(tickers, ticker)
	}

	for idx := range tickers {
		pos := m.positions[tickers[idx]]

		if !m.cfg.Portfolio.Invested(pos.Ticker) {
			continue
		}

		currentReturn := m.cfg.Portfolio.UnrealizedReturn(pos.Ticker)
		pos.UpdatePNLPercent(currentReturn)

		switch {
		case currentReturn >= m.cfg.ProfitTarget && !pos.ProfitTrimmed:
			reason := fmt.Sprintf("profit target %.0f%% hit", m.cfg.ProfitTarget*100)
			m.partialExit(ctx, pos, profitTrimFraction, reason)

		case currentReturn <= m.cfg.StopLoss:
			reason := fmt.Sprintf("stop loss %.0f%% hit", m.cfg.StopLoss*100)
			m.fullExit(ctx, pos, currentReturn, reason, now)

		case !now.Before(pos.ExitTargetDate):
			reason := fmt.Sprintf("holding period %d days reached", m.cfg.HoldingPeriodDays)
			m.fullExit(ctx, pos, currentReturn, reason, now)

		default:
			m.cfg.Logger.Debug().Msgf("HOLDING: %s | Days: %d | Return: %.1f%% | Target: %s",
				pos.Ticker, pos.DaysHeld(now), pos.PNLPercent,
				pos.ExitTargetDate.Format(shared.DateLayout))
		}
	}
}

// partialExit trims the provided fraction of the position's current holding.
// The trim happens at most once per position.
func (m *Manager) partialExit(ctx context.Context, pos *Position, fraction float64, reason string) {
	held := m.cfg.Portfolio.HoldingQuantity(pos.Ticker)

	sellQuantity := decimal.NewFromInt(held).
		Mul(decimal.NewFromFloat(fraction)).IntPart()
	if sellQuantity == 0 {
		return
	}

	err := m.cfg.Broker.Liquidate(ctx, pos.Ticker, sellQuantity, reason)
	if err != nil {
		m.cfg.Logger.Error().Msgf("trimming position for %s: %v", pos.Ticker, err)
		return
	}

	pos.MarkTrimmed(held - sellQuantity)

	msg := fmt.Sprintf("PARTIAL EXIT: %s | Sold %.0f%% | Return: %.1f%% | Reason: %s",
		pos.Ticker, fraction*100, pos.PNLPercent, reason)
	m.cfg.Notify(msg)
}

// fullExit fully liquidates the position and concludes its lifecycle.
func (m *Manager) fullExit(ctx context.Context, pos *Position, currentReturn float64, reason string, now time.Time) {
	err := m.cfg.Broker.LiquidateAll(ctx, pos.Ticker, reason)
	if err != nil {
		m.cfg.Logger.Error().Msgf("liquidating position for %s: %v", pos.Ticker, err)
		return
	}

	exitPrice := pos.EntryPrice * (1 + currentReturn)
	pos.Close(exitPrice, reason, now)

	err = m.cfg.PersistClosedPosition(pos)
	if err != nil {
		m.cfg.Logger.Error().Msgf("persisting closed position for %s: %v", pos.Ticker, err)
	}

	delete(m.positions, pos.Ticker)
	delete(m.pendingExits, pos.Ticker)
	m.closed[pos.Ticker] = struct{}{}

	msg := fmt.Sprintf("FULL EXIT: %s | Days held: %d | Return: %.1f%% | Reason: %s | Score was: %.2f",
		pos.Ticker, pos.DaysHeld(now), pos.PNLPercent, reason, pos.Score)
	m.cfg.Notify(msg)
}

// HandleOrderFill records an order fill notification for a managed ticker.
func (m *Manager) HandleOrderFill(ticker string, quantity int64, fillPrice float64) {
	pos, ok := m.positions[ticker]
	if !ok {
		m.cfg.Logger.Debug().Msgf("fill for unmanaged ticker %s ignored", ticker)
		return
	}

	m.cfg.Logger.Debug().Msgf("ORDER FILLED: %s | Qty: %d | Price: $%.2f | Status: %s",
		ticker, quantity, fillPrice, pos.Status.String())
}
