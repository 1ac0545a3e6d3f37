package config

import (
	"testing"

	"github.com/aristath/risk-engine/internal/modules/risk"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8010 {
		t.Errorf("Expected default port 8010, got %d", cfg.Port)
	}
	if cfg.InitialCapital != 1_000_000 {
		t.Errorf("Expected default capital 1000000, got %.0f", cfg.InitialCapital)
	}
	if cfg.Risk.MaxPositionSizePct != 2.0 {
		t.Errorf("Expected default max position size 2.0, got %.2f", cfg.Risk.MaxPositionSizePct)
	}
	if len(cfg.Risk.RiskRewardRatios) == 0 {
		t.Error("Expected default risk/reward ratios")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("INITIAL_CAPITAL", "500000")
	t.Setenv("RISK_STOP_LOSS_PCT", "2.5")
	t.Setenv("RISK_FORCE_CLOSE_TIME", "15:45")
	t.Setenv("RISK_REWARD_RATIOS", "1, 2.5, 4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Port)
	}
	if cfg.InitialCapital != 500_000 {
		t.Errorf("Expected capital 500000, got %.0f", cfg.InitialCapital)
	}
	if cfg.Risk.StopLossPct != 2.5 {
		t.Errorf("Expected stop loss 2.5, got %.2f", cfg.Risk.StopLossPct)
	}
	if cfg.Risk.ForceCloseTime != "15:45" {
		t.Errorf("Expected force close 15:45, got %s", cfg.Risk.ForceCloseTime)
	}

	want := []float64{1, 2.5, 4}
	if len(cfg.Risk.RiskRewardRatios) != len(want) {
		t.Fatalf("Expected %d ratios, got %v", len(want), cfg.Risk.RiskRewardRatios)
	}
	for i, v := range want {
		if cfg.Risk.RiskRewardRatios[i] != v {
			t.Errorf("Ratio %d: expected %.1f, got %.1f", i, v, cfg.Risk.RiskRewardRatios[i])
		}
	}
}

func TestLoad_MalformedForceCloseTimeFails(t *testing.T) {
	t.Setenv("RISK_FORCE_CLOSE_TIME", "banana")

	if _, err := Load(); err == nil {
		t.Fatal("Expected Load to reject a malformed force close time")
	}
}

func TestLoad_MalformedRatiosFallBack(t *testing.T) {
	t.Setenv("RISK_REWARD_RATIOS", "not,numbers,-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Risk.RiskRewardRatios) == 0 {
		t.Error("Expected fallback to default ratios")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing database path", func(c *Config) { c.DatabasePath = "" }, true},
		{"non-positive capital", func(c *Config) { c.InitialCapital = 0 }, true},
		{"non-positive history bars", func(c *Config) { c.HistoryBars = -1 }, true},
		{"malformed force close time", func(c *Config) { c.Risk.ForceCloseTime = "late afternoon" }, true},
		{"out-of-range force close time", func(c *Config) { c.Risk.ForceCloseTime = "25:70" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DatabasePath:   "./data/prices.db",
				InitialCapital: 1000,
				HistoryBars:    100,
				Risk:           risk.DefaultParameters(),
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
