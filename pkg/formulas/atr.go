package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateATR calculates the Average True Range series for OHLC data
//
// ATR Formula:
//   TR = max(high - low, |high - prevClose|, |low - prevClose|)
//   ATR = Wilder-smoothed moving average of TR over N periods
//
// Args:
//   highs, lows, closes: aligned OHLC arrays
//   period: ATR period (typically 14)
//
// Returns:
//   Full ATR series (leading values are zero until the period warms up),
//   or nil if there is not enough data
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	if len(closes) <= period || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}

	return talib.Atr(highs, lows, closes, period)
}

// LatestATR returns the most recent ATR value, or nil if unavailable.
// Only the trailing value is consulted by stop-loss placement.
func LatestATR(highs, lows, closes []float64, period int) *float64 {
	atr := CalculateATR(highs, lows, closes, period)
	if len(atr) == 0 {
		return nil
	}

	last := atr[len(atr)-1]
	if isNaN(last) || last <= 0 {
		return nil
	}

	return &last
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
