package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/dnldd/dayone/shared"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaperConfig represents the paper broker configuration.
type PaperConfig struct {
	// InitialCash is the starting cash balance.
	InitialCash float64
	// NotifyFill relays simulated order fills, sells carry a negative
	// quantity. Optional.
	NotifyFill func(ticker string, quantity int64, fillPrice float64)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// holding tracks a filled lot for a ticker.
type holding struct {
	quantity     int64
	averagePrice decimal.Decimal
}

// Paper is an in-memory broker and portfolio used for backtests. Fills are
// simulated against marks supplied via SetMarkPrice, a limit buy fills at the
// better of the mark and the limit.
type Paper struct {
	cfg      *PaperConfig
	cash     decimal.Decimal
	holdings map[string]*holding
	marks    map[string]decimal.Decimal
	mtx      sync.RWMutex
}

// Ensure the paper broker implements the Broker and Portfolio interfaces.
var _ shared.Broker = (*Paper)(nil)
var _ shared.Portfolio = (*Paper)(nil)

// NewPaper initializes a new paper broker.
func NewPaper(cfg *PaperConfig) (*Paper, error) {
	if cfg.InitialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive: %f", cfg.InitialCash)
	}

	paper := &Paper{
		cfg:      cfg,
		cash:     decimal.NewFromFloat(cfg.InitialCash),
		holdings: make(map[string]*holding),
		marks:    make(map[string]decimal.Decimal),
	}

	return paper, nil
}

// SetMarkPrice sets the current mark for the provided ticker.
func (p *Paper) SetMarkPrice(ticker string, price float64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.marks[ticker] = decimal.NewFromFloat(price)
}

// LastPrice returns the current mark for the provided ticker.
func (p *Paper) LastPrice(ticker string) (float64, error) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	mark, ok := p.marks[ticker]
	if !ok {
		return 0, fmt.Errorf("no mark price set for %s", ticker)
	}

	return mark.InexactFloat64(), nil
}

// PlaceLimitOrder places a buy limit order, filling immediately at the better
// of the mark and the limit. Fills above the limit are rejected.
func (p *Paper) PlaceLimitOrder(ctx context.Context, ticker string, quantity int64, limitPrice float64) error {
	if quantity <= 0 {
		return fmt.Errorf("order quantity for %s must be positive: %d", ticker, quantity)
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	mark, ok := p.marks[ticker]
	if !ok {
		return fmt.Errorf("no mark price set for %s", ticker)
	}

	limit := decimal.NewFromFloat(limitPrice)
	fillPrice := mark
	if fillPrice.GreaterThan(limit) {
		// The mark is through the limit, the order rests unfilled. Treated as
		// a rejection so the caller retries on a later cycle.
		return fmt.Errorf("mark %s for %s above limit %s", mark.String(), ticker, limit.String())
	}

	cost := fillPrice.Mul(decimal.NewFromInt(quantity))
	if cost.GreaterThan(p.cash) {
		return fmt.Errorf("insufficient cash for %s: need %s, have %s",
			ticker, cost.String(), p.cash.String())
	}

	p.cash = p.cash.Sub(cost)

	lot, ok := p.holdings[ticker]
	switch {
	case ok:
		held := decimal.NewFromInt(lot.quantity)
		bought := decimal.NewFromInt(quantity)
		totalCost := lot.averagePrice.Mul(held).Add(cost)
		lot.quantity += quantity
		lot.averagePrice = totalCost.Div(held.Add(bought))
	default:
		p.holdings[ticker] = &holding{quantity: quantity, averagePrice: fillPrice}
	}

	p.cfg.Logger.Debug().Msgf("filled buy %d %s @ %s", quantity, ticker, fillPrice.String())

	if p.cfg.NotifyFill != nil {
		p.cfg.NotifyFill(ticker, quantity, fillPrice.InexactFloat64())
	}

	return nil
}

// Liquidate sells the provided quantity of the holding at the current mark.
func (p *Paper) Liquidate(ctx context.Context, ticker string, quantity int64, tag string) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return p.sell(ticker, quantity, tag)
}

// LiquidateAll fully unwinds the holding at the current mark.
func (p *Paper) LiquidateAll(ctx context.Context, ticker string, tag string) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	lot, ok := p.holdings[ticker]
	if !ok {
		return fmt.Errorf("no holding for %s", ticker)
	}

	return p.sell(ticker, lot.quantity, tag)
}

// sell executes a sale against the holding. Callers must hold the lock.
func (p *Paper) sell(ticker string, quantity int64, tag string) error {
	if quantity <= 0 {
		return fmt.Errorf("sale quantity for %s must be positive: %d", ticker, quantity)
	}

	lot, ok := p.holdings[ticker]
	if !ok {
		return fmt.Errorf("no holding for %s", ticker)
	}
	if quantity > lot.quantity {
		return fmt.Errorf("sale quantity %d for %s exceeds holding %d", quantity, ticker, lot.quantity)
	}

	mark, ok := p.marks[ticker]
	if !ok {
		return fmt.Errorf("no mark price set for %s", ticker)
	}

	proceeds := mark.Mul(decimal.NewFromInt(quantity))
	p.cash = p.cash.Add(proceeds)

	lot.quantity -= quantity
	if lot.quantity == 0 {
		delete(p.holdings, ticker)
	}

	p.cfg.Logger.Debug().Msgf("filled sell %d %s @ %s (%s)", quantity, ticker, mark.String(), tag)

	if p.cfg.NotifyFill != nil {
		p.cfg.NotifyFill(ticker, -quantity, mark.InexactFloat64())
	}

	return nil
}

// HoldingQuantity returns the currently held quantity for the ticker.
func (p *Paper) HoldingQuantity(ticker string) int64 {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	lot, ok := p.holdings[ticker]
	if !ok {
		return 0
	}

	return lot.quantity
}

// UnrealizedReturn returns the fractional unrealized return for the ticker.
func (p *Paper) UnrealizedReturn(ticker string) float64 {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	lot, ok := p.holdings[ticker]
	if !ok {
		return 0
	}

	mark, ok := p.marks[ticker]
	if !ok || lot.averagePrice.IsZero() {
		return 0
	}

	ret := mark.Sub(lot.averagePrice).Div(lot.averagePrice)

	return ret.InexactFloat64()
}

// Invested checks whether the ticker is currently held.
func (p *Paper) Invested(ticker string) bool {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	lot, ok := p.holdings[ticker]

	return ok && lot.quantity > 0
}

// HoldingsValue returns the market value of the holding.
func (p *Paper) HoldingsValue(ticker string) float64 {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	lot, ok := p.holdings[ticker]
	if !ok {
		return 0
	}

	mark, ok := p.marks[ticker]
	if !ok {
		return 0
	}

	return mark.Mul(decimal.NewFromInt(lot.quantity)).InexactFloat64()
}

// TotalValue returns the total portfolio value, cash plus marked holdings.
func (p *Paper) TotalValue() float64 {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	total := p.cash
	for ticker := range p.holdings {
		mark, ok := p.marks[ticker]
		if !ok {
			continue
		}

		total = total.Add(mark.Mul(decimal.NewFromInt(p.holdings[ticker].quantity)))
	}

	return total.InexactFloat64()
}
