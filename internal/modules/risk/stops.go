package risk

import (
	"github.com/aristath/risk-engine/internal/modules/marketdata"
	"github.com/aristath/risk-engine/pkg/formulas"
)

// CalculateStopLoss computes a stop price for the given entry and side. Each
// variant degrades explicitly when its inputs are unavailable:
//
//	support/resistance -> atr_based -> fixed_percentage
//
// A usable stop price is always returned; the fallbacks never fail. Any
// unrecognized stop type resolves as fixed_percentage.
func (m *Manager) CalculateStopLoss(bars []marketdata.Bar, entryPrice float64, side Side, stopType StopType) float64 {
	switch stopType {
	case StopATRBased:
		if stop, ok := m.atrStop(bars, entryPrice, side); ok {
			return stop
		}
		return m.fixedPercentageStop(entryPrice, side)

	case StopSupportResistance:
		if stop, ok := m.supportResistanceStop(bars, entryPrice, side); ok {
			return stop
		}
		if stop, ok := m.atrStop(bars, entryPrice, side); ok {
			return stop
		}
		return m.fixedPercentageStop(entryPrice, side)

	default:
		return m.fixedPercentageStop(entryPrice, side)
	}
}

// fixedPercentageStop places the stop StopLossPct away from entry
func (m *Manager) fixedPercentageStop(entryPrice float64, side Side) float64 {
	if side == SideLong {
		return entryPrice * (1 - m.params.StopLossPct/100.0)
	}
	return entryPrice * (1 + m.params.StopLossPct/100.0)
}

// atrStop places the stop ATRMultiplier true-ranges away from entry, using
// only the most recent ATR value
func (m *Manager) atrStop(bars []marketdata.Bar, entryPrice float64, side Side) (float64, bool) {
	atr := m.atr(bars, atrPeriod)
	if atr == nil {
		return 0, false
	}

	distance := *atr * m.params.ATRMultiplier
	if side == SideLong {
		return entryPrice - distance, true
	}
	return entryPrice + distance, true
}

// supportResistanceStop anchors the stop at the rolling 20-period extreme.
// When both the extreme and the fixed-percentage level are available, the
// tighter (less risky) of the two wins: max for LONG, min for SHORT.
// Requires at least 20 bars.
func (m *Manager) supportResistanceStop(bars []marketdata.Bar, entryPrice float64, side Side) (float64, bool) {
	if len(bars) < supportResistanceWindow {
		return 0, false
	}

	fixed := m.fixedPercentageStop(entryPrice, side)

	if side == SideLong {
		support := formulas.RollingLow(marketdata.Lows(bars), supportResistanceWindow)
		if support == nil {
			return 0, false
		}
		if *support > fixed {
			return *support, true
		}
		return fixed, true
	}

	resistance := formulas.RollingHigh(marketdata.Highs(bars), supportResistanceWindow)
	if resistance == nil {
		return 0, false
	}
	if *resistance < fixed {
		return *resistance, true
	}
	return fixed, true
}
