package position

import (
	"fmt"
	"time"

	"github.com/dnldd/dayone/shared"
	"github.com/google/uuid"
)

// Status represents the lifecycle status of a position.
type Status int

const (
	Entered Status = iota
	PartiallyExited
	Closed
)

// String stringifies the provided position status.
func (s *Status) String() string {
	switch *s {
	case Entered:
		return "entered"
	case PartiallyExited:
		return "partially exited"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Position represents a filled day-one listing position under management.
type Position struct {
	ID             string
	Ticker         string
	CompanyName    string
	Sector         string
	Score          float64
	Quantity       int64
	EntryPrice     float64
	EntryTime      time.Time
	ExitTargetDate time.Time
	ProfitTrimmed  bool
	PNLPercent     float64
	ExitPrice      float64
	ExitReason     string
	Status         Status
	CreatedOn      uint64
	ClosedOn       uint64
}

// NewPosition initializes a new position from the provided listing record.
func NewPosition(record *shared.IPORecord, quantity int64, entryPrice float64, entryTime time.Time, holdingPeriodDays int) (*Position, error) {
	if record == nil {
		return nil, fmt.Errorf("listing record cannot be nil")
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity for %s must be positive: %d", record.Ticker, quantity)
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("entry price for %s must be positive: %f", record.Ticker, entryPrice)
	}

	pos := &Position{
		ID:             uuid.New().String(),
		Ticker:         record.Ticker,
		CompanyName:    record.CompanyName,
		Sector:         record.Sector,
		Score:          record.Score,
		Quantity:       quantity,
		EntryPrice:     entryPrice,
		EntryTime:      entryTime,
		ExitTargetDate: entryTime.AddDate(0, 0, holdingPeriodDays),
		Status:         Entered,
		CreatedOn:      uint64(entryTime.Unix()),
	}

	return pos, nil
}

// UpdatePNLPercent updates the percentage change of the position given the
// fractional unrealized return reported for its holding.
func (p *Position) UpdatePNLPercent(unrealizedReturn float64) float64 {
	p.PNLPercent = unrealizedReturn * 100

	return p.PNLPercent
}

// DaysHeld returns the number of whole days the position has been held.
func (p *Position) DaysHeld(now time.Time) int {
	return int(now.Sub(p.EntryTime).Hours() / 24)
}

// MarkTrimmed records the one-time profit trim on the position.
func (p *Position) MarkTrimmed(remaining int64) {
	p.ProfitTrimmed = true
	p.Quantity = remaining
	p.Status = PartiallyExited
}

// Close closes the position using the provided exit details.
func (p *Position) Close(exitPrice float64, reason string, now time.Time) Status {
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.Status = Closed
	p.ClosedOn = uint64(now.Unix())

	return p.Status
}
