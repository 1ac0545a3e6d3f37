package risk

import (
	"math"
	"testing"
	"time"

	"github.com/aristath/risk-engine/internal/modules/marketdata"
	"github.com/aristath/risk-engine/pkg/logger"
)

func stopTestManager(atr ATRFunc) *Manager {
	return NewManager(ManagerConfig{
		Params:         DefaultParameters(),
		InitialCapital: 1_000_000,
		Log:            logger.New(logger.Config{Level: "error", Pretty: false}),
		ATR:            atr,
		Now:            func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) },
	})
}

func flatBars(n int, low, high float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Date:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02"),
			Open:  (low + high) / 2,
			High:  high,
			Low:   low,
			Close: (low + high) / 2,
		}
	}
	return bars
}

func TestCalculateStopLoss_FixedPercentage(t *testing.T) {
	m := stopTestManager(fixedATR(20))

	long := m.CalculateStopLoss(nil, 1000, SideLong, StopFixedPercentage)
	if math.Abs(long-960) > 1e-9 { // 4% default
		t.Errorf("Expected 960, got %.4f", long)
	}

	short := m.CalculateStopLoss(nil, 1000, SideShort, StopFixedPercentage)
	if math.Abs(short-1040) > 1e-9 {
		t.Errorf("Expected 1040, got %.4f", short)
	}
}

func TestCalculateStopLoss_ATRBased(t *testing.T) {
	m := stopTestManager(fixedATR(20))

	long := m.CalculateStopLoss(nil, 1000, SideLong, StopATRBased)
	if math.Abs(long-960) > 1e-9 { // 1000 - 20*2
		t.Errorf("Expected 960, got %.4f", long)
	}

	short := m.CalculateStopLoss(nil, 1000, SideShort, StopATRBased)
	if math.Abs(short-1040) > 1e-9 {
		t.Errorf("Expected 1040, got %.4f", short)
	}
}

func TestCalculateStopLoss_ATRFallsBackToFixed(t *testing.T) {
	m := stopTestManager(noATR)

	got := m.CalculateStopLoss(nil, 1000, SideLong, StopATRBased)
	if math.Abs(got-960) > 1e-9 { // fixed 4%
		t.Errorf("Expected fixed-percentage fallback 960, got %.4f", got)
	}
}

func TestCalculateStopLoss_SupportResistance(t *testing.T) {
	tests := []struct {
		name     string
		bars     []marketdata.Bar
		side     Side
		entry    float64
		expected float64
	}{
		{
			name:     "long support above fixed level wins",
			bars:     flatBars(25, 980, 1005),
			side:     SideLong,
			entry:    1000,
			expected: 980, // rolling low 980 > fixed 960
		},
		{
			name:     "long support below fixed level loses to fixed",
			bars:     flatBars(25, 900, 1005),
			side:     SideLong,
			entry:    1000,
			expected: 960,
		},
		{
			name:     "short resistance below fixed level wins",
			bars:     flatBars(25, 995, 1020),
			side:     SideShort,
			entry:    1000,
			expected: 1020, // rolling high 1020 < fixed 1040
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := stopTestManager(fixedATR(20))

			got := m.CalculateStopLoss(tt.bars, tt.entry, tt.side, StopSupportResistance)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Expected %.2f, got %.4f", tt.expected, got)
			}
		})
	}
}

func TestCalculateStopLoss_SupportResistanceFallsBackToATR(t *testing.T) {
	m := stopTestManager(fixedATR(15))

	// only 10 bars, below the 20-bar window
	got := m.CalculateStopLoss(flatBars(10, 980, 1005), 1000, SideLong, StopSupportResistance)
	if math.Abs(got-970) > 1e-9 { // 1000 - 15*2
		t.Errorf("Expected ATR fallback 970, got %.4f", got)
	}
}

func TestCalculateStopLoss_UnknownTypeFallsBackToFixed(t *testing.T) {
	m := stopTestManager(fixedATR(20))

	got := m.CalculateStopLoss(nil, 1000, SideLong, StopType("made_up"))
	if math.Abs(got-960) > 1e-9 {
		t.Errorf("Expected fixed-percentage fallback 960, got %.4f", got)
	}
}
