package shared

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the format layout for parsing calendar dates.
	DateLayout = "2006-01-02"

	// locality is the locale used for fetching time.
	locality = "America/New_York"
)

// NewYorkTime returns the current time in new york (EST/EDT adjusted automatically).
func NewYorkTime() (time.Time, *time.Location, error) {
	loc, err := time.LoadLocation(locality)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("loading new york timezone: %w", err)
	}

	now := time.Now().In(loc)

	return now, loc, nil
}
