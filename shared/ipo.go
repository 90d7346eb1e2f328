package shared

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultVolatilityLevel is the neutral volatility index reading used when
	// live data is unavailable.
	DefaultVolatilityLevel = float64(15)
	// HighVolatilityLevel is the volatility index level above which position
	// sizes are reduced.
	HighVolatilityLevel = float64(20)
	// ExtremeVolatilityLevel is the volatility index level above which position
	// sizes are halved.
	ExtremeVolatilityLevel = float64(30)
	// highVolatilityFactor is the sizing multiplier applied above the high
	// volatility level.
	highVolatilityFactor = float64(0.75)
	// extremeVolatilityFactor is the sizing multiplier applied above the
	// extreme volatility level.
	extremeVolatilityFactor = float64(0.5)
)

// IPORecord represents a prospective listing under tracking.
type IPORecord struct {
	Ticker        string
	CompanyName   string
	ListingDate   time.Time
	Score         float64
	OfferPrice    float64
	SharesOffered int64
	Sector        string

	// Entry fields, unset until a position is filled.
	EntryPrice     float64
	EntryTime      time.Time
	ExitTargetDate time.Time
}

// NewIPORecord initializes a new ipo record.
func NewIPORecord(ticker string, companyName string, listingDate time.Time, score float64,
	offerPrice float64, sharesOffered int64, sector string) (*IPORecord, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker cannot be an empty string")
	}
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("score for %s out of range: %f", ticker, score)
	}
	if offerPrice <= 0 {
		return nil, fmt.Errorf("offer price for %s must be positive: %f", ticker, offerPrice)
	}

	record := &IPORecord{
		Ticker:        ticker,
		CompanyName:   companyName,
		ListingDate:   listingDate,
		Score:         score,
		OfferPrice:    offerPrice,
		SharesOffered: sharesOffered,
		Sector:        sector,
	}

	return record, nil
}

// ShouldTrade checks whether the record's score clears the provided threshold.
func (r *IPORecord) ShouldTrade(threshold float64) bool {
	return r.Score >= threshold
}

// ListingOn checks whether the record lists on the day of the provided time.
func (r *IPORecord) ListingOn(now time.Time) bool {
	ly, lm, ld := r.ListingDate.Date()
	ny, nm, nd := now.Date()

	return ly == ny && lm == nm && ld == nd
}

// PositionSize derives a fractional allocation from the provided score and the
// prevailing volatility level, bounded above by the base size.
//
// The score is interpolated linearly across [threshold, 1] into a confidence
// factor in [0, 1] and blended evenly with a flat baseline. Volatility bands
// are checked in increasing order so the last matching band's multiplier
// applies.
func PositionSize(score float64, threshold float64, baseSize float64, volatilityLevel float64) float64 {
	var confidence float64
	if threshold < 1 {
		confidence = (score - threshold) / (1 - threshold)
	}

	volatilityFactor := 1.0
	if volatilityLevel > HighVolatilityLevel {
		volatilityFactor = highVolatilityFactor
	}
	if volatilityLevel > ExtremeVolatilityLevel {
		volatilityFactor = extremeVolatilityFactor
	}

	size := baseSize * (0.5 + 0.5*confidence) * volatilityFactor

	return math.Min(size, baseSize)
}
