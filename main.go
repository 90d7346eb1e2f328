package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/dnldd/dayone/service"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceCfg := service.DayOneConfig{
		ScoreThreshold:    cfg.ScoreThreshold,
		MaxPositions:      cfg.MaxPositions,
		MaxPositionSize:   cfg.MaxPositionSize,
		MaxIPOExposure:    cfg.MaxIPOExposure,
		HoldingPeriodDays: cfg.HoldingPeriodDays,
		ProfitTarget:      cfg.ProfitTarget,
		StopLoss:          cfg.StopLoss,
		CalendarPath:      cfg.CalendarPath,
		CalendarURL:       cfg.CalendarURL,
		FilingsDir:        cfg.FilingsDir,
		ModelPath:         cfg.ModelPath,
		OnnxLibPath:       cfg.OnnxLibPath,
		SectorETF:         cfg.SectorETF,
		FMPAPIKey:         cfg.FMPAPIKey,
		InitialCash:       cfg.InitialCash,
		Backtest:          cfg.Backtest,
		DBEndpoint:        cfg.DBEndpoint,
		DBUser:            cfg.DBUser,
		DBPass:            cfg.DBPass,
		Cancel:            cancel,
	}
	dayOne, err := service.NewDayOne(ctx, &serviceCfg)
	if err != nil {
		log.Printf("creating day one service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	dayOne.Run(ctx)
}
