package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Strategy policy defaults applied for unset fields.
const (
	defaultScoreThreshold    = 0.70
	defaultMaxPositions      = 5
	defaultMaxPositionSize   = 0.15
	defaultMaxIPOExposure    = 0.40
	defaultHoldingPeriodDays = 30
	defaultProfitTarget      = 0.30
	defaultStopLoss          = -0.20
	defaultInitialCash       = float64(100_000)
)

// Config is the configuration struct for the service.
type Config struct {
	// ScoreThreshold is the minimum listing score to qualify for entry.
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
	// FilingsDir is the directory holding per-ticker filing json.
	FilingsDir string
	// ModelPath is the filepath to the serialized scoring model.
	ModelPath string
	// OnnxLibPath is the filepath to the onnx runtime shared library.
	OnnxLibPath string
	// SectorETF is the sector proxy symbol for market condition readings.
	SectorETF string
	// FMPAPIkey is the FMP service API Key.
	FMPAPIKey string
	// InitialCash is the starting balance for the simulated account.
	InitialCash float64
	// Backtest is the backtesting flag.
	Backtest bool
	// DBEndpoint represents the database connection endpoint.
	DBEndpoint string
	// DBUser is the database user.
	DBUser string
	// DBPass is the database user pass.
	DBPass string

	registeredFlags map[string]bool
}

// applyDefaults fills unset policy fields with the strategy defaults. A zero
// value is indistinguishable from unset here, so zero always means "use the
// default"; none of the policy fields accept zero as a meaningful setting.
func (cfg *Config) applyDefaults() {
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = defaultScoreThreshold
	}
	if cfg.MaxPositions == 0 {
		cfg.MaxPositions = defaultMaxPositions
	}
	if cfg.MaxPositionSize == 0 {
		cfg.MaxPositionSize = defaultMaxPositionSize
	}
	if cfg.MaxIPOExposure == 0 {
		cfg.MaxIPOExposure = defaultMaxIPOExposure
	}
	if cfg.HoldingPeriodDays == 0 {
		cfg.HoldingPeriodDays = defaultHoldingPeriodDays
	}
	if cfg.ProfitTarget == 0 {
		cfg.ProfitTarget = defaultProfitTarget
	}
	if cfg.StopLoss == 0 {
		cfg.StopLoss = defaultStopLoss
	}
	if cfg.InitialCash == 0 {
		cfg.InitialCash = defaultInitialCash
	}
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.CalendarPath == "" && cfg.CalendarURL == "" {
		errs = errors.Join(errs, fmt.Errorf("a calendar path or url must be provided"))
	}

	switch cfg.Backtest {
	case true:
		if cfg.CalendarPath == "" {
			errs = errors.Join(errs, fmt.Errorf("backtests require a local calendar path"))
		}
	case false:
		if cfg.FMPAPIKey == "" {
			errs = errors.Join(errs, fmt.Errorf("fmp api key cannot be an empty string"))
		}
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Float64:
		var def float64
		if defValue != "" {
			def, _ = strconv.ParseFloat(defValue, 64)
		}
		flag.Float64Var(value.(*float64), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	flags := []struct {
		name  string
		value interface{}
		usage string
	}{
		{"scorethreshold", &cfg.ScoreThreshold, "the minimum listing score to qualify for entry"},
		{"maxpositions", &cfg.MaxPositions, "the maximum number of concurrent positions"},
		{"maxpositionsize", &cfg.MaxPositionSize, "the per-position allocation fraction cap"},
		{"maxipoexposure", &cfg.MaxIPOExposure, "the aggregate allocation fraction cap"},
		{"holdingperioddays", &cfg.HoldingPeriodDays, "the holding period in days"},
		{"profittarget", &cfg.ProfitTarget, "the partial exit profit target fraction"},
		{"stoploss", &cfg.StopLoss, "the full exit stop loss fraction"},
		{"calendarpath", &cfg.CalendarPath, "the local listings calendar csv filepath"},
		{"calendarurl", &cfg.CalendarURL, "the remote listings calendar csv endpoint"},
		{"filingsdir", &cfg.FilingsDir, "the per-ticker filing json directory"},
		{"modelpath", &cfg.ModelPath, "the serialized scoring model filepath"},
		{"onnxlibpath", &cfg.OnnxLibPath, "the onnx runtime shared library filepath"},
		{"sectoretf", &cfg.SectorETF, "the sector proxy symbol"},
		{"fmpapikey", &cfg.FMPAPIKey, "the FMP api key"},
		{"initialcash", &cfg.InitialCash, "the simulated account starting balance"},
		{"backtest", &cfg.Backtest, "the backtest flag"},
		{"dbendpoint", &cfg.DBEndpoint, "the database connection endpoint"},
		{"dbuser", &cfg.DBUser, "the database user"},
		{"dbpass", &cfg.DBPass, "the database user pass"},
	}

	for idx := range flags {
		err = cfg.registerFlag(flags[idx].name, flags[idx].value, flags[idx].usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	cfg.applyDefaults()

	return cfg.Validate()
}
