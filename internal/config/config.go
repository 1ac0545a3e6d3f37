package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/aristath/risk-engine/internal/modules/risk"
)

// Config holds application configuration
type Config struct {
	Port            int
	DevMode         bool
	DatabasePath    string
	LogLevel        string
	InitialCapital  float64
	HistoryBars     int    // bars loaded per symbol for analytics
	RefreshSchedule string // cron spec for the analysis refresh job
	Risk            risk.Parameters
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8010),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		DatabasePath:    getEnv("DATABASE_PATH", "./data/prices.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		InitialCapital:  getEnvAsFloat("INITIAL_CAPITAL", 1_000_000),
		HistoryBars:     getEnvAsInt("HISTORY_BARS", 300),
		RefreshSchedule: getEnv("ANALYSIS_REFRESH_SCHEDULE", "0 */15 * * * *"),
		Risk:            loadRiskParameters(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive")
	}
	if c.HistoryBars <= 0 {
		return fmt.Errorf("HISTORY_BARS must be positive")
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("RISK_FORCE_CLOSE_TIME: %w", err)
	}
	return nil
}

// loadRiskParameters applies RISK_* env overrides on top of the defaults
func loadRiskParameters() risk.Parameters {
	p := risk.DefaultParameters()

	p.MaxPositionSizePct = getEnvAsFloat("RISK_MAX_POSITION_SIZE_PCT", p.MaxPositionSizePct)
	p.MaxDailyLossPct = getEnvAsFloat("RISK_MAX_DAILY_LOSS_PCT", p.MaxDailyLossPct)
	p.StopLossPct = getEnvAsFloat("RISK_STOP_LOSS_PCT", p.StopLossPct)
	p.ATRMultiplier = getEnvAsFloat("RISK_ATR_MULTIPLIER", p.ATRMultiplier)
	p.TrailingStopPct = getEnvAsFloat("RISK_TRAILING_STOP_PCT", p.TrailingStopPct)
	p.MaxPositions = getEnvAsInt("RISK_MAX_POSITIONS", p.MaxPositions)
	p.ForceCloseTime = getEnv("RISK_FORCE_CLOSE_TIME", p.ForceCloseTime)

	if raw := os.Getenv("RISK_REWARD_RATIOS"); raw != "" {
		var ratios []float64
		for _, part := range strings.Split(raw, ",") {
			if v, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil && v > 0 {
				ratios = append(ratios, v)
			}
		}
		if len(ratios) > 0 {
			p.RiskRewardRatios = ratios
		}
	}

	return p
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
