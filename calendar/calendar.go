package calendar

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dnldd/dayone/shared"
	"github.com/rs/zerolog"
)

const (
	// expected csv columns: date,ticker,company_name,score,offer_price,shares_offered,sector.
	columnCount = 7

	columnDate = iota - 1
	columnTicker
	columnCompanyName
	columnScore
	columnOfferPrice
	columnSharesOffered
	columnSector
)

// Config represents the calendar source configuration.
type Config struct {
	// FilePath is the filepath to a local calendar csv, used in backtests.
	FilePath string
	// URL is the remote calendar csv endpoint, used in live mode.
	URL string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Calendar represents the upcoming listings feed with precomputed scores.
type Calendar struct {
	cfg     *Config
	httpc   http.Client
	records map[string]*shared.IPORecord
}

// NewCalendar initializes a new calendar source.
func NewCalendar(cfg *Config) (*Calendar, error) {
	if cfg.FilePath == "" && cfg.URL == "" {
		return nil, fmt.Errorf("calendar requires a file path or a url")
	}

	calendar := &Calendar{
		cfg:     cfg,
		httpc:   http.Client{Timeout: time.Second * 5},
		records: make(map[string]*shared.IPORecord),
	}

	return calendar, nil
}

// parseRow parses a single calendar row into an ipo record.
func parseRow(row []string) (*shared.IPORecord, error) {
	if len(row) < columnCount {
		return nil, fmt.Errorf("expected %d columns, got %d", columnCount, len(row))
	}

	listingDate, err := time.Parse(shared.DateLayout, row[columnDate])
	if err != nil {
		return nil, fmt.Errorf("parsing listing date: %w", err)
	}

	score, err := strconv.ParseFloat(row[columnScore], 64)
	if err != nil {
		return nil, fmt.Errorf("parsing score: %w", err)
	}

	offerPrice, err := strconv.ParseFloat(row[columnOfferPrice], 64)
	if err != nil {
		return nil, fmt.Errorf("parsing offer price: %w", err)
	}

	sharesOffered, err := strconv.ParseInt(row[columnSharesOffered], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing shares offered: %w", err)
	}

	return shared.NewIPORecord(row[columnTicker], row[columnCompanyName], listingDate,
		score, offerPrice, sharesOffered, row[columnSector])
}

// parse loads calendar rows from the provided reader. Malformed rows are
// skipped individually, a bad row never aborts the load.
func (c *Calendar) parse(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var line int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}

		line++

		if err != nil {
			// Structural errors (bad quoting) are scoped to the row, the
			// reader resumes at the next record.
			c.cfg.Logger.Warn().Msgf("skipping calendar row %d: %v", line, err)
			continue
		}

		record, err := parseRow(row)
		if err != nil {
			// The header row is skipped here along with malformed rows.
			c.cfg.Logger.Warn().Msgf("skipping calendar row %d: %v", line, err)
			continue
		}

		c.records[record.Ticker] = record
	}

	return nil
}

// Load loads the calendar from its configured source, the remote endpoint when
// set and the local file otherwise.
func (c *Calendar) Load(ctx context.Context) error {
	switch {
	case c.cfg.URL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
		if err != nil {
			return fmt.Errorf("creating calendar request: %w", err)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("fetching calendar from '%s': %w", c.cfg.URL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetching calendar from '%s': status %d", c.cfg.URL, resp.StatusCode)
		}

		return c.parse(resp.Body)

	default:
		file, err := os.Open(c.cfg.FilePath)
		if err != nil {
			return fmt.Errorf("opening calendar file with path '%s': %w", c.cfg.FilePath, err)
		}
		defer file.Close()

		return c.parse(file)
	}
}

// Records returns all loaded calendar records.
func (c *Calendar) Records() []*shared.IPORecord {
	records := make([]*shared.IPORecord, 0, len(c.records))
	for ticker := range c.records {
		records = append(records, c.records[ticker])
	}

	return records
}

// Record returns the calendar record for the provided ticker.
func (c *Calendar) Record(ticker string) (*shared.IPORecord, bool) {
	record, ok := c.records[ticker]
	return record, ok
}

// ListingsOn returns the records listing on the day of the provided time.
func (c *Calendar) ListingsOn(now time.Time) []*shared.IPORecord {
	listings := make([]*shared.IPORecord, 0)
	for ticker := range c.records {
		if c.records[ticker].ListingOn(now) {
			listings = append(listings, c.records[ticker])
		}
	}

	return listings
}

// SameWeekCount returns the number of calendar listings sharing the iso week
// of the provided time, a supply saturation reading for the market features.
func (c *Calendar) SameWeekCount(now time.Time) int {
	year, week := now.ISOWeek()

	var count int
	for ticker := range c.records {
		ly, lw := c.records[ticker].ListingDate.ISOWeek()
		if ly == year && lw == week {
			count++
		}
	}

	return count
}
