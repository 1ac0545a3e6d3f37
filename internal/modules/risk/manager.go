package risk

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/modules/marketdata"
	"github.com/aristath/risk-engine/pkg/formulas"
)

const (
	// LotSize is the share rounding unit for position sizing
	LotSize = 100

	// CommissionRate is applied to (entry + exit) notional on close
	CommissionRate = 0.001

	// atrPeriod is the lookback for ATR-based stops
	atrPeriod = 14

	// supportResistanceWindow is the lookback for rolling extremes
	supportResistanceWindow = 20
)

// ATRFunc returns the latest Average True Range value for a bar series, or
// nil when the series is too short to produce one.
type ATRFunc func(bars []marketdata.Bar, period int) *float64

// DefaultATR computes ATR from the series' own OHLC data via talib.
func DefaultATR(bars []marketdata.Bar, period int) *float64 {
	return formulas.LatestATR(marketdata.Highs(bars), marketdata.Lows(bars), marketdata.Closes(bars), period)
}

// Manager owns the live position set and capital ledger. It computes sizing
// and exit levels, evaluates per-position exit conditions, and mutates
// capital on close. A Manager instance assumes a single logical owner;
// callers serialize access.
type Manager struct {
	params         Parameters
	capital        float64
	initialCapital float64
	dailyPnL       float64
	positions      map[string]*Position
	tradeHistory   []TradeRecord
	atr            ATRFunc
	nowFn          func() time.Time
	log            zerolog.Logger
}

// ManagerConfig holds construction options for a Manager
type ManagerConfig struct {
	Params         Parameters
	InitialCapital float64
	Log            zerolog.Logger
	ATR            ATRFunc          // defaults to DefaultATR
	Now            func() time.Time // defaults to time.Now, injectable for tests
}

// NewManager creates a risk manager with the given parameters and capital
func NewManager(cfg ManagerConfig) *Manager {
	atr := cfg.ATR
	if atr == nil {
		atr = DefaultATR
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &Manager{
		params:         cfg.Params,
		capital:        cfg.InitialCapital,
		initialCapital: cfg.InitialCapital,
		positions:      make(map[string]*Position),
		atr:            atr,
		nowFn:          nowFn,
		log:            cfg.Log.With().Str("component", "risk").Logger(),
	}
}

// Params returns the manager's immutable risk parameters
func (m *Manager) Params() Parameters {
	return m.params
}

// Capital returns current capital
func (m *Manager) Capital() float64 {
	return m.capital
}

// OpenPositions returns a snapshot copy of the live position set. The
// analyzer consumes this; the copies keep it from mutating manager state.
func (m *Manager) OpenPositions() []Position {
	out := make([]Position, 0, len(m.positions))

	symbols := make([]string, 0, len(m.positions))
	for symbol := range m.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		out = append(out, *m.positions[symbol])
	}
	return out
}

// CalculatePositionSize computes a lot-rounded share count for a trade whose
// risk geometry is defined by entry and stop. The risk budget is
// MaxPositionSizePct of current capital. Returns 0 (not an error) when the
// geometry is invalid or the concurrent position cap is reached.
func (m *Manager) CalculatePositionSize(symbol string, entryPrice, stopLoss float64, side Side) int {
	var perShareRisk float64
	switch side {
	case SideLong:
		perShareRisk = entryPrice - stopLoss
	case SideShort:
		perShareRisk = stopLoss - entryPrice
	}
	if perShareRisk <= 0 {
		m.log.Debug().Str("symbol", symbol).Msg("Invalid risk geometry, sizing to zero")
		return 0
	}

	if len(m.positions) >= m.params.MaxPositions {
		m.log.Debug().Str("symbol", symbol).Int("open", len(m.positions)).Msg("Position cap reached")
		return 0
	}

	riskBudget := m.capital * m.params.MaxPositionSizePct / 100.0
	size := int(math.Floor(riskBudget / perShareRisk))

	// Round down to the nearest lot
	return (size / LotSize) * LotSize
}

// CalculateTakeProfits builds the take-profit ladder from the configured
// risk:reward ratios, preserving their order.
func (m *Manager) CalculateTakeProfits(entryPrice, stopLoss float64, side Side) []float64 {
	riskAmount := math.Abs(entryPrice - stopLoss)

	levels := make([]float64, 0, len(m.params.RiskRewardRatios))
	for _, ratio := range m.params.RiskRewardRatios {
		if side == SideLong {
			levels = append(levels, entryPrice+riskAmount*ratio)
		} else {
			levels = append(levels, entryPrice-riskAmount*ratio)
		}
	}
	return levels
}

// UpdateTrailingStop ratchets the trailing stop toward the current price.
// For LONG positions the stop only ever moves up; for SHORT only down. No-op
// if the symbol has no open position.
func (m *Manager) UpdateTrailingStop(symbol string, currentPrice float64) {
	pos, ok := m.positions[symbol]
	if !ok {
		return
	}

	var candidate float64
	switch pos.Side {
	case SideLong:
		candidate = currentPrice * (1 - m.params.TrailingStopPct/100.0)
		if pos.TrailingStop == nil || candidate > *pos.TrailingStop {
			pos.TrailingStop = &candidate
		}
	case SideShort:
		candidate = currentPrice * (1 + m.params.TrailingStopPct/100.0)
		if pos.TrailingStop == nil || candidate < *pos.TrailingStop {
			pos.TrailingStop = &candidate
		}
	}
}

// CheckExitConditions evaluates the per-position exit state machine in fixed
// order: hard stop, trailing stop, take-profit ladder, forced time-of-day
// close, daily loss limit. First match wins.
func (m *Manager) CheckExitConditions(symbol string, currentPrice float64, now time.Time) ExitSignal {
	pos, ok := m.positions[symbol]
	if !ok {
		return ExitSignal{ShouldExit: false, Reason: ReasonNoPosition}
	}

	long := pos.Side == SideLong

	// 1. Hard stop-loss breach
	if (long && currentPrice <= pos.StopLoss) || (!long && currentPrice >= pos.StopLoss) {
		return ExitSignal{ShouldExit: true, Reason: ReasonStopLoss, ExitPrice: pos.StopLoss}
	}

	// 2. Trailing-stop breach, only once a trailing stop has been set
	if pos.TrailingStop != nil {
		ts := *pos.TrailingStop
		if (long && currentPrice <= ts) || (!long && currentPrice >= ts) {
			return ExitSignal{ShouldExit: true, Reason: ReasonTrailingStop, ExitPrice: ts}
		}
	}

	// 3. Take-profit ladder, reporting which rung triggered
	for i, tp := range pos.TakeProfits {
		if (long && currentPrice >= tp) || (!long && currentPrice <= tp) {
			return ExitSignal{
				ShouldExit: true,
				Reason:     takeProfitReason(i),
				ExitPrice:  tp,
			}
		}
	}

	// 4. Forced close at end of session
	if closeMinutes, err := m.params.forceCloseMinutes(); err == nil {
		nowMinutes := now.Hour()*60 + now.Minute()
		if nowMinutes >= closeMinutes {
			return ExitSignal{ShouldExit: true, Reason: ReasonForceClose, ExitPrice: currentPrice}
		}
	}

	// 5. Daily loss limit
	if m.dailyPnL <= -m.capital*m.params.MaxDailyLossPct/100.0 {
		return ExitSignal{ShouldExit: true, Reason: ReasonDailyLossLimit, ExitPrice: currentPrice}
	}

	return ExitSignal{ShouldExit: false}
}

// OpenPosition sizes (unless quantity > 0 is supplied), computes exit levels,
// and inserts a new position. Returns false with no mutation when the symbol
// is already open, the computed quantity is zero, or the exit geometry is
// invalid.
func (m *Manager) OpenPosition(symbol string, side Side, entryPrice float64, bars []marketdata.Bar, quantity int) bool {
	if _, exists := m.positions[symbol]; exists {
		m.log.Warn().Str("symbol", symbol).Msg("Position already open")
		return false
	}

	stopLoss := m.CalculateStopLoss(bars, entryPrice, side, StopATRBased)

	if quantity <= 0 {
		quantity = m.CalculatePositionSize(symbol, entryPrice, stopLoss, side)
	}
	if quantity == 0 {
		m.log.Debug().Str("symbol", symbol).Msg("Sized to zero, not opening")
		return false
	}

	pos := &Position{
		Symbol:      symbol,
		Side:        side,
		EntryPrice:  entryPrice,
		Quantity:    quantity,
		EntryTime:   m.nowFn(),
		StopLoss:    stopLoss,
		TakeProfits: m.CalculateTakeProfits(entryPrice, stopLoss, side),
	}

	if err := pos.Validate(); err != nil {
		m.log.Warn().Err(err).Str("symbol", symbol).Msg("Rejecting position with invalid exit geometry")
		return false
	}

	m.positions[symbol] = pos
	m.tradeHistory = append(m.tradeHistory, TradeRecord{
		Symbol:    symbol,
		Side:      side,
		Action:    "open",
		Quantity:  quantity,
		Price:     entryPrice,
		Timestamp: pos.EntryTime,
	})

	m.log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Int("quantity", quantity).
		Float64("entry", entryPrice).
		Float64("stop_loss", stopLoss).
		Msg("Opened position")

	return true
}

// ClosePosition realizes P&L net of commission, updates capital and daily
// P&L, removes the position, and appends a close record. This is the only
// place capital changes. Returns false if the symbol has no open position.
func (m *Manager) ClosePosition(symbol string, exitPrice float64, reason string) bool {
	pos, ok := m.positions[symbol]
	if !ok {
		m.log.Debug().Str("symbol", symbol).Msg("No open position to close")
		return false
	}

	qty := float64(pos.Quantity)

	var gross float64
	if pos.Side == SideLong {
		gross = (exitPrice - pos.EntryPrice) * qty
	} else {
		gross = (pos.EntryPrice - exitPrice) * qty
	}

	commission := (pos.EntryPrice + exitPrice) * qty * CommissionRate
	net := gross - commission

	m.capital += net
	m.dailyPnL += net

	now := m.nowFn()
	m.tradeHistory = append(m.tradeHistory, TradeRecord{
		Symbol:    symbol,
		Side:      pos.Side,
		Action:    "close",
		Quantity:  pos.Quantity,
		Price:     exitPrice,
		Timestamp: now,
		PnL:       &net,
		Holding:   now.Sub(pos.EntryTime),
		Reason:    reason,
	})

	delete(m.positions, symbol)

	m.log.Info().
		Str("symbol", symbol).
		Float64("exit", exitPrice).
		Float64("pnl", net).
		Str("reason", reason).
		Msg("Closed position")

	return true
}

// UpdatePositions is the batch mutation entry point: for every open position
// with a price present in the map it refreshes price and unrealized P&L,
// advances the trailing stop, evaluates exit conditions, and closes through
// ClosePosition when triggered.
func (m *Manager) UpdatePositions(prices map[string]float64) {
	now := m.nowFn()

	// Snapshot symbols first; closes mutate the map during the pass
	symbols := make([]string, 0, len(m.positions))
	for symbol := range m.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok {
			continue
		}

		pos := m.positions[symbol]
		p := price
		pos.CurrentPrice = &p

		var unrealized float64
		if pos.Side == SideLong {
			unrealized = (price - pos.EntryPrice) * float64(pos.Quantity)
		} else {
			unrealized = (pos.EntryPrice - price) * float64(pos.Quantity)
		}
		pos.UnrealizedPnL = &unrealized

		m.UpdateTrailingStop(symbol, price)

		if sig := m.CheckExitConditions(symbol, price, now); sig.ShouldExit {
			m.ClosePosition(symbol, sig.ExitPrice, sig.Reason)
		}
	}
}

// ResetDailyPnL zeroes the daily ledger at the start of a session
func (m *Manager) ResetDailyPnL() {
	m.dailyPnL = 0
}

// TradeHistory returns a copy of the append-only trade record log
func (m *Manager) TradeHistory() []TradeRecord {
	out := make([]TradeRecord, len(m.tradeHistory))
	copy(out, m.tradeHistory)
	return out
}

// GetPortfolioSummary snapshots capital, P&L, and per-symbol detail. Pure
// read.
func (m *Manager) GetPortfolioSummary() Summary {
	summary := Summary{
		Capital:        m.capital,
		InitialCapital: m.initialCapital,
		DailyPnL:       m.dailyPnL,
		TotalPnL:       m.capital - m.initialCapital,
		OpenPositions:  len(m.positions),
		Positions:      make([]PositionDetail, 0, len(m.positions)),
	}

	for _, pos := range m.OpenPositions() {
		if pos.UnrealizedPnL != nil {
			summary.UnrealizedPnL += *pos.UnrealizedPnL
		}
		summary.Positions = append(summary.Positions, PositionDetail{
			Symbol:        pos.Symbol,
			Side:          pos.Side,
			Quantity:      pos.Quantity,
			EntryPrice:    pos.EntryPrice,
			CurrentPrice:  pos.CurrentPrice,
			StopLoss:      pos.StopLoss,
			TrailingStop:  pos.TrailingStop,
			UnrealizedPnL: pos.UnrealizedPnL,
		})
	}

	return summary
}

func takeProfitReason(rung int) string {
	// rungs are reported 1-based
	return ReasonTakeProfit + "_" + strconv.Itoa(rung+1)
}
