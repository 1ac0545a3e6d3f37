package formulas

// CalculateMaxDrawdown calculates the maximum drawdown of a value series
//
// Drawdown Formula:
//   Drawdown = (Peak Value - Current Value) / Peak Value
//   Max Drawdown = Maximum of all drawdowns
//
// Returns the maximum drawdown as a positive fraction (0.25 = 25% decline
// from peak) or nil if there is insufficient data.
func CalculateMaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}

		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// RollingLow returns the minimum of the last `window` values, or nil if the
// series is shorter than the window.
func RollingLow(values []float64, window int) *float64 {
	if window <= 0 || len(values) < window {
		return nil
	}

	tail := values[len(values)-window:]
	low := tail[0]
	for _, v := range tail {
		if v < low {
			low = v
		}
	}

	return &low
}

// RollingHigh returns the maximum of the last `window` values, or nil if the
// series is shorter than the window.
func RollingHigh(values []float64, window int) *float64 {
	if window <= 0 || len(values) < window {
		return nil
	}

	tail := values[len(values)-window:]
	high := tail[0]
	for _, v := range tail {
		if v > high {
			high = v
		}
	}

	return &high
}
