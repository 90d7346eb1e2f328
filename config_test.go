package main

import (
	"flag"
	"os"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []string
	}{
		{
			name: "valid config, not backtest",
			cfg: Config{
				CalendarURL: "https://example.com/calendar.csv",
				FMPAPIKey:   "apikey",
				Backtest:    false,
			},
			wantErr: nil,
		},
		{
			name: "missing calendar source",
			cfg: Config{
				FMPAPIKey: "apikey",
				Backtest:  false,
			},
			wantErr: []string{"a calendar path or url must be provided"},
		},
		{
			name: "missing FMPAPIKey, not backtest",
			cfg: Config{
				CalendarURL: "https://example.com/calendar.csv",
				FMPAPIKey:   "",
				Backtest:    false,
			},
			wantErr: []string{"fmp api key cannot be an empty string"},
		},
		{
			name: "missing both calendar and FMPAPIKey, not backtest",
			cfg:  Config{Backtest: false},
			wantErr: []string{
				"a calendar path or url must be provided",
				"fmp api key cannot be an empty string",
			},
		},
		{
			name: "backtest true, valid local calendar",
			cfg: Config{
				Backtest:     true,
				CalendarPath: "/tmp/ipo_scores.csv",
			},
			wantErr: nil,
		},
		{
			name: "backtest true, remote calendar only",
			cfg: Config{
				Backtest:    true,
				CalendarURL: "https://example.com/calendar.csv",
			},
			wantErr: []string{"backtests require a local calendar path"},
		},
		{
			name: "backtest true, api key not required",
			cfg: Config{
				Backtest:     true,
				CalendarPath: "/tmp/ipo_scores.csv",
				FMPAPIKey:    "",
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("expected error(s) %v, got none", tt.wantErr)
					return
				}
				for _, want := range tt.wantErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.ScoreThreshold != defaultScoreThreshold {
		t.Errorf("ScoreThreshold: got %v, want %v", cfg.ScoreThreshold, defaultScoreThreshold)
	}
	if cfg.MaxPositions != defaultMaxPositions {
		t.Errorf("MaxPositions: got %v, want %v", cfg.MaxPositions, defaultMaxPositions)
	}
	if cfg.MaxPositionSize != defaultMaxPositionSize {
		t.Errorf("MaxPositionSize: got %v, want %v", cfg.MaxPositionSize, defaultMaxPositionSize)
	}
	if cfg.MaxIPOExposure != defaultMaxIPOExposure {
		t.Errorf("MaxIPOExposure: got %v, want %v", cfg.MaxIPOExposure, defaultMaxIPOExposure)
	}
	if cfg.HoldingPeriodDays != defaultHoldingPeriodDays {
		t.Errorf("HoldingPeriodDays: got %v, want %v", cfg.HoldingPeriodDays, defaultHoldingPeriodDays)
	}
	if cfg.ProfitTarget != defaultProfitTarget {
		t.Errorf("ProfitTarget: got %v, want %v", cfg.ProfitTarget, defaultProfitTarget)
	}
	if cfg.StopLoss != defaultStopLoss {
		t.Errorf("StopLoss: got %v, want %v", cfg.StopLoss, defaultStopLoss)
	}
	if cfg.InitialCash != defaultInitialCash {
		t.Errorf("InitialCash: got %v, want %v", cfg.InitialCash, defaultInitialCash)
	}

	// Ensure explicit values survive defaulting.
	cfg = Config{ScoreThreshold: 0.85, MaxPositions: 2}
	cfg.applyDefaults()
	if cfg.ScoreThreshold != 0.85 {
		t.Errorf("ScoreThreshold: got %v, want 0.85", cfg.ScoreThreshold)
	}
	if cfg.MaxPositions != 2 {
		t.Errorf("MaxPositions: got %v, want 2", cfg.MaxPositions)
	}
}

func TestLoadConfig(t *testing.T) {
	// Save and restore original os.Args and environment
	origArgs := os.Args
	origEnv := os.Environ()
	defer func() {
		os.Args = origArgs
		for _, kv := range origEnv {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				os.Setenv(parts[0], parts[1])
			}
		}
	}()

	tests := []struct {
		name        string
		env         map[string]string
		args        []string
		expectErr   bool
		expectInErr []string
		expectCfg   Config
	}{
		{
			name: "all from env, not backtest",
			env: map[string]string{
				"calendarurl": "https://example.com/calendar.csv",
				"fmpapikey":   "apikey",
				"backtest":    "false",
			},
			args:      []string{"cmd"},
			expectErr: false,
			expectCfg: Config{
				CalendarURL:    "https://example.com/calendar.csv",
				FMPAPIKey:      "apikey",
				Backtest:       false,
				ScoreThreshold: defaultScoreThreshold,
			},
		},
		{
			name:      "all from flags, not backtest",
			env:       map[string]string{},
			args:      []string{"cmd", "-calendarurl=https://example.com/calendar.csv", "-fmpapikey=apikey", "-backtest=false"},
			expectErr: false,
			expectCfg: Config{
				CalendarURL:    "https://example.com/calendar.csv",
				FMPAPIKey:      "apikey",
				Backtest:       false,
				ScoreThreshold: defaultScoreThreshold,
			},
		},
		{
			name: "policy overrides from flags",
			env:  map[string]string{},
			args: []string{"cmd", "-calendarurl=https://example.com/calendar.csv", "-fmpapikey=apikey",
				"-scorethreshold=0.8", "-maxpositions=3", "-stoploss=-0.1"},
			expectErr: false,
			expectCfg: Config{
				CalendarURL:    "https://example.com/calendar.csv",
				FMPAPIKey:      "apikey",
				ScoreThreshold: 0.8,
			},
		},
		{
			name:        "missing calendar and fmpapikey",
			env:         map[string]string{},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"a calendar path or url must be provided", "fmp api key cannot be an empty string"},
		},
		{
			name: "backtest true, missing local calendar",
			env: map[string]string{
				"backtest": "true",
			},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"backtests require a local calendar path"},
		},
		{
			name: "backtest true, calendar path from flag",
			env: map[string]string{
				"backtest": "true",
			},
			args:      []string{"cmd", "-calendarpath=/tmp/ipo_scores.csv"},
			expectErr: false,
			expectCfg: Config{
				Backtest:       true,
				CalendarPath:   "/tmp/ipo_scores.csv",
				ScoreThreshold: defaultScoreThreshold,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags for each test
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			// Set environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Set command-line arguments
			os.Args = tt.args

			var cfg Config
			err := loadConfig(&cfg, "") // don't load .env file

			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				for _, want := range tt.expectInErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
			} else {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				// Only check fields that are set in expectCfg
				if tt.expectCfg.CalendarURL != "" && cfg.CalendarURL != tt.expectCfg.CalendarURL {
					t.Errorf("CalendarURL: got %v, want %v", cfg.CalendarURL, tt.expectCfg.CalendarURL)
				}
				if tt.expectCfg.CalendarPath != "" && cfg.CalendarPath != tt.expectCfg.CalendarPath {
					t.Errorf("CalendarPath: got %v, want %v", cfg.CalendarPath, tt.expectCfg.CalendarPath)
				}
				if tt.expectCfg.FMPAPIKey != "" && cfg.FMPAPIKey != tt.expectCfg.FMPAPIKey {
					t.Errorf("FMPAPIKey: got %v, want %v", cfg.FMPAPIKey, tt.expectCfg.FMPAPIKey)
				}
				if cfg.Backtest != tt.expectCfg.Backtest {
					t.Errorf("Backtest: got %v, want %v", cfg.Backtest, tt.expectCfg.Backtest)
				}
				if tt.expectCfg.ScoreThreshold != 0 && cfg.ScoreThreshold != tt.expectCfg.ScoreThreshold {
					t.Errorf("ScoreThreshold: got %v, want %v", cfg.ScoreThreshold, tt.expectCfg.ScoreThreshold)
				}
			}

			// Clean up env
			for k := range tt.env {
				os.Unsetenv(k)
			}
		})
	}
}
