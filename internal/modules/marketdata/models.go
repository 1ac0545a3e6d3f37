package marketdata

// Bar represents a daily OHLCV price point, ordered chronologically within a
// series.
type Bar struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume *int64  `json:"volume,omitempty"`
}

// History maps a symbol to its chronologically ordered bar series.
type History map[string][]Bar

// Closes extracts the closing prices from a bar series.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Highs extracts the high prices from a bar series.
func Highs(bars []Bar) []float64 {
	highs := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
	}
	return highs
}

// Lows extracts the low prices from a bar series.
func Lows(bars []Bar) []float64 {
	lows := make([]float64, len(bars))
	for i, b := range bars {
		lows[i] = b.Low
	}
	return lows
}
