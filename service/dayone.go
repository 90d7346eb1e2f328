package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dnldd/dayone/broker"
	"github.com/dnldd/dayone/calendar"
	"github.com/dnldd/dayone/database"
	"github.com/dnldd/dayone/features"
	"github.com/dnldd/dayone/fetch"
	"github.com/dnldd/dayone/position"
	"github.com/dnldd/dayone/shared"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// Scheduled job times, New York. Entries are evaluated an hour after the
	// open once the opening auction has settled, exits an hour later.
	entryCheckHour   = 10
	entryCheckMinute = 30
	manageHour       = 11
	manageMinute     = 30
	filingExtension  = ".json"
)

// DayOneConfig represents the configuration struct for the day one service.
type DayOneConfig struct {
	// ScoreThreshold is the minimum score to qualify for entry.
	ScoreThreshold float64
	// MaxPositions caps concurrent active tickers.
	MaxPositions int
	// MaxPositionSize bounds the per-position allocation fraction.
	MaxPositionSize float64
	// MaxIPOExposure bounds the aggregate allocation fraction.
	MaxIPOExposure float64
	// HoldingPeriodDays is the time-based exit horizon from entry.
	HoldingPeriodDays int
	// ProfitTarget is the return fraction triggering a partial exit.
	ProfitTarget float64
	// StopLoss is the (negative) return fraction triggering a full exit.
	StopLoss float64

	// CalendarPath is the filepath to a local listings calendar csv.
	CalendarPath string
	// CalendarURL is the remote listings calendar csv endpoint.
	CalendarURL string
	// FilingsDir is the directory holding per-ticker filing json, used to
	// score listings the calendar carries unscored.
	FilingsDir string
	// ModelPath is the filepath to the serialized scoring model.
	ModelPath string
	// OnnxLibPath is the filepath to the onnx runtime shared library.
	OnnxLibPath string
	// SectorETF is the sector proxy symbol for market condition readings.
	SectorETF string
	// FMPAPIKey is the FMP service API Key.
	FMPAPIKey string
	// InitialCash is the starting balance for the simulated account.
	InitialCash float64
	// Backtest is the backtesting flag.
	Backtest bool
	// DBEndpoint represents the database connection endpoint. Optional, closed
	// positions are only logged when unset.
	DBEndpoint string
	// DBUser is the database user.
	DBUser string
	// DBPass is the database user pass.
	DBPass string
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *DayOneConfig) Validate() error {
	var errs error

	if cfg.CalendarPath == "" && cfg.CalendarURL == "" {
		errs = errors.Join(errs, fmt.Errorf("a calendar path or url must be provided"))
	}
	if cfg.InitialCash <= 0 {
		errs = errors.Join(errs, fmt.Errorf("initial cash must be positive: %f", cfg.InitialCash))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}
	if !cfg.Backtest {
		if cfg.FMPAPIKey == "" {
			errs = errors.Join(errs, fmt.Errorf("fmp api key cannot be an empty string"))
		}
	} else {
		if cfg.CalendarPath == "" {
			errs = errors.Join(errs, fmt.Errorf("backtests require a local calendar path"))
		}
	}

	return errs
}

// DayOne represents the day one listing trading service.
type DayOne struct {
	cfg             *DayOneConfig
	calendar        *calendar.Calendar
	fmp             *fetch.FMPClient
	model           *features.Model
	paper           *broker.Paper
	db              *database.Database
	positionManager *position.Manager
	clock           time.Time
	logger          *zerolog.Logger
}

// NewDayOne initializes a new day one service.
func NewDayOne(ctx context.Context, cfg *DayOneConfig) (*DayOne, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating day one service config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "dayone").Logger()

	calendarLogger := logger.With().Str("component", "calendar").Logger()
	cal, err := calendar.NewCalendar(&calendar.Config{
		FilePath: cfg.CalendarPath,
		URL:      cfg.CalendarURL,
		Logger:   &calendarLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating calendar: %w", err)
	}

	err = cal.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading calendar: %w", err)
	}

	fmp := fetch.NewFMPClient(&fetch.FMPConfig{APIKey: cfg.FMPAPIKey, BaseURL: fetch.BaseURL})

	var model *features.Model
	if cfg.ModelPath != "" {
		model, err = features.NewModel(&features.ModelConfig{
			Path:        cfg.ModelPath,
			LibraryPath: cfg.OnnxLibPath,
		})
		if err != nil {
			return nil, fmt.Errorf("creating scoring model: %w", err)
		}
	}

	var positionMgr *position.Manager

	notifyFillFunc := func(ticker string, quantity int64, fillPrice float64) {
		if positionMgr != nil {
			positionMgr.HandleOrderFill(ticker, quantity, fillPrice)
		}
	}

	brokerLogger := logger.With().Str("component", "paperbroker").Logger()
	paper, err := broker.NewPaper(&broker.PaperConfig{
		InitialCash: cfg.InitialCash,
		NotifyFill:  notifyFillFunc,
		Logger:      &brokerLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating paper broker: %w", err)
	}

	var db *database.Database
	if cfg.DBEndpoint != "" {
		dbLogger := logger.With().Str("component", "database").Logger()
		db, err = database.NewDatabase(ctx, &database.DatabaseConfig{
			Endpoint: cfg.DBEndpoint,
			User:     cfg.DBUser,
			Pass:     cfg.DBPass,
			Logger:   &dbLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating database: %w", err)
		}
	}

	service := &DayOne{
		cfg:      cfg,
		calendar: cal,
		fmp:      fmp,
		model:    model,
		paper:    paper,
		db:       db,
		logger:   &logger,
	}

	positionMgrLogger := logger.With().Str("component", "positionmanager").Logger()
	positionMgr, err = position.NewManager(&position.ManagerConfig{
		ScoreThreshold:        cfg.ScoreThreshold,
		MaxPositions:          cfg.MaxPositions,
		MaxPositionSize:       cfg.MaxPositionSize,
		MaxIPOExposure:        cfg.MaxIPOExposure,
		HoldingPeriodDays:     cfg.HoldingPeriodDays,
		ProfitTarget:          cfg.ProfitTarget,
		StopLoss:              cfg.StopLoss,
		Broker:                paper,
		Portfolio:             paper,
		MarketSource:          fmp,
		LastPrice:             service.lastPrice,
		Notify:                service.notify,
		PersistClosedPosition: service.persistClosedPosition,
		Now:                   service.now,
		Logger:                &positionMgrLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating position manager: %w", err)
	}

	service.positionManager = positionMgr

	return service, nil
}

// now fetches the current service time, the simulated clock during backtests.
func (d *DayOne) now() (time.Time, error) {
	if d.cfg.Backtest {
		return d.clock, nil
	}

	now, _, err := shared.NewYorkTime()
	return now, err
}

// lastPrice fetches the last traded price for the provided ticker. Live quotes
// are marked on the paper account so fills and valuations track the market.
func (d *DayOne) lastPrice(ticker string) (float64, error) {
	if d.cfg.Backtest {
		return d.paper.LastPrice(ticker)
	}

	price, err := d.fmp.FetchQuote(context.Background(), ticker)
	if err != nil {
		return 0, err
	}

	d.paper.SetMarkPrice(ticker, price)

	return price, nil
}

// notify relays the provided lifecycle message.
func (d *DayOne) notify(message string) {
	d.logger.Info().Msg(message)
}

// persistClosedPosition stores the provided closed position when a database is
// configured.
func (d *DayOne) persistClosedPosition(pos *position.Position) error {
	if d.db == nil {
		d.logger.Info().Msgf("closed position %s (%s): %.1f%%", pos.Ticker, pos.ExitReason, pos.PNLPercent)
		return nil
	}

	return d.db.PersistClosedPosition(context.Background(), pos)
}

// scoreListings scores unscored calendar records listing on the provided day
// from their filing data. Records already carrying a calendar score keep it.
func (d *DayOne) scoreListings(ctx context.Context, now time.Time) {
	if d.cfg.FilingsDir == "" {
		return
	}

	listings := d.calendar.ListingsOn(now)
	for idx := range listings {
		record := listings[idx]
		if record.Score > 0 {
			continue
		}

		path := filepath.Join(d.cfg.FilingsDir, strings.ToLower(record.Ticker)+filingExtension)
		filing, err := features.LoadRecord(path)
		if err != nil {
			d.logger.Warn().Msgf("loading filing for %s: %v", record.Ticker, err)
			continue
		}

		if !d.cfg.Backtest {
			filing.Market = features.LiveMarketFeatures(ctx, d.fmp, d.cfg.SectorETF,
				d.calendar.SameWeekCount(now), d.logger)
		}

		vector := features.Extract(filing, now)
		score, err := d.model.Score(vector)
		if err != nil {
			d.logger.Error().Msgf("scoring %s: %v", record.Ticker, err)
			continue
		}

		record.Score = score
		d.logger.Info().Msgf("scored %s from filing data: %.2f", record.Ticker, score)
	}
}

// checkEntries is the scheduled entry evaluation pass.
func (d *DayOne) checkEntries(ctx context.Context) {
	now, err := d.now()
	if err != nil {
		d.logger.Error().Msgf("fetching current time: %v", err)
		return
	}

	d.scoreListings(ctx, now)
	d.positionManager.CheckListings(ctx, d.calendar.ListingsOn(now))
}

// managePositions is the scheduled exit evaluation pass.
func (d *DayOne) managePositions(ctx context.Context) {
	d.positionManager.ManagePositions(ctx)
}

// backtestDays derives the ordered set of days the backtest must step through,
// spanning the first listing through the holding horizon of the last.
func (d *DayOne) backtestDays() []time.Time {
	records := d.calendar.Records()
	if len(records) == 0 {
		return nil
	}

	first, last := records[0].ListingDate, records[0].ListingDate
	for idx := range records {
		if records[idx].ListingDate.Before(first) {
			first = records[idx].ListingDate
		}
		if records[idx].ListingDate.After(last) {
			last = records[idx].ListingDate
		}
	}

	end := last.AddDate(0, 0, d.cfg.HoldingPeriodDays)
	days := make([]time.Time, 0)
	for day := first; !day.After(end); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}

	return days
}

// runBacktest drives the scheduled passes synchronously over the calendar
// dates. Listing-day marks are seeded at the offer price, exits then play out
// on the configured horizon unless marks are updated externally.
func (d *DayOne) runBacktest(ctx context.Context) {
	days := d.backtestDays()

	for idx := range days {
		day := days[idx]

		listings := d.calendar.ListingsOn(day)
		for k := range listings {
			d.paper.SetMarkPrice(listings[k].Ticker, listings[k].OfferPrice)
		}

		d.clock = day.Add(time.Hour*entryCheckHour + time.Minute*entryCheckMinute)
		d.checkEntries(ctx)

		d.clock = day.Add(time.Hour*manageHour + time.Minute*manageMinute)
		d.managePositions(ctx)
	}

	d.logger.Info().Msgf("backtest done: %d days, %d active positions remaining",
		len(days), d.positionManager.ActiveCount())
}

// Run handles the lifecycle processes of the day one service.
func (d *DayOne) Run(ctx context.Context) {
	defer d.model.Close()

	if d.cfg.Backtest {
		d.runBacktest(ctx)
		d.cfg.Cancel()
		return
	}

	_, loc, err := shared.NewYorkTime()
	if err != nil {
		d.logger.Error().Msgf("fetching new york location: %v", err)
		d.cfg.Cancel()
		return
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		d.logger.Error().Msgf("creating job scheduler: %v", err)
		d.cfg.Cancel()
		return
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(entryCheckHour, entryCheckMinute, 0))),
		gocron.NewTask(func() { d.checkEntries(ctx) }),
	)
	if err != nil {
		d.logger.Error().Msgf("scheduling entry check job: %v", err)
		d.cfg.Cancel()
		return
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(manageHour, manageMinute, 0))),
		gocron.NewTask(func() { d.managePositions(ctx) }),
	)
	if err != nil {
		d.logger.Error().Msgf("scheduling position management job: %v", err)
		d.cfg.Cancel()
		return
	}

	scheduler.Start()
	d.logger.Info().Msg("day one service started")

	<-ctx.Done()

	err = scheduler.Shutdown()
	if err != nil {
		d.logger.Error().Msgf("shutting down job scheduler: %v", err)
	}
}
