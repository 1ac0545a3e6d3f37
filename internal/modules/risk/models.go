package risk

import (
	"fmt"
	"time"
)

// Side identifies the direction of a position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// StopType selects the stop-loss placement method
type StopType string

const (
	StopFixedPercentage   StopType = "fixed_percentage"
	StopATRBased          StopType = "atr_based"
	StopSupportResistance StopType = "support_resistance"
)

// Exit reasons reported by CheckExitConditions. Take-profit exits append the
// rung index, e.g. "take_profit_2".
const (
	ReasonStopLoss       = "stop_loss"
	ReasonTrailingStop   = "trailing_stop"
	ReasonTakeProfit     = "take_profit"
	ReasonForceClose     = "force_close"
	ReasonDailyLossLimit = "daily_loss_limit"
	ReasonNoPosition     = "no_position"
)

// Parameters holds the risk configuration, immutable for the lifetime of a
// Manager.
type Parameters struct {
	MaxPositionSizePct float64   `json:"max_position_size_pct"` // risk budget as % of capital per trade
	MaxDailyLossPct    float64   `json:"max_daily_loss_pct"`    // forced exits once daily loss exceeds this % of capital
	StopLossPct        float64   `json:"stop_loss_pct"`         // fixed-percentage stop distance
	ATRMultiplier      float64   `json:"atr_multiplier"`        // ATR-based stop distance multiplier
	TrailingStopPct    float64   `json:"trailing_stop_pct"`     // trailing-stop distance
	RiskRewardRatios   []float64 `json:"risk_reward_ratios"`    // ordered take-profit ladder multipliers
	MaxPositions       int       `json:"max_positions"`         // concurrent position cap
	ForceCloseTime     string    `json:"force_close_time"`      // HH:MM time-of-day forcing exit
}

// DefaultParameters returns the standard risk configuration.
func DefaultParameters() Parameters {
	return Parameters{
		MaxPositionSizePct: 2.0,
		MaxDailyLossPct:    5.0,
		StopLossPct:        4.0,
		ATRMultiplier:      2.0,
		TrailingStopPct:    3.0,
		RiskRewardRatios:   []float64{1.0, 1.5, 2.0, 3.0},
		MaxPositions:       5,
		ForceCloseTime:     "15:20",
	}
}

// Validate rejects parameters the exit checks cannot act on. A malformed
// force-close time would otherwise silently disable the forced exit.
func (p Parameters) Validate() error {
	if _, err := p.forceCloseMinutes(); err != nil {
		return err
	}
	return nil
}

// forceCloseMinutes parses ForceCloseTime into minutes since midnight.
func (p Parameters) forceCloseMinutes() (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(p.ForceCloseTime, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid force_close_time %q: %w", p.ForceCloseTime, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid force_close_time %q", p.ForceCloseTime)
	}
	return hour*60 + minute, nil
}

// Position is a single open trade with its computed exit levels. It is owned
// and mutated only by the Manager.
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	EntryPrice    float64   `json:"entry_price"`
	Quantity      int       `json:"quantity"`
	EntryTime     time.Time `json:"entry_time"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfits   []float64 `json:"take_profits"`
	TrailingStop  *float64  `json:"trailing_stop,omitempty"`
	CurrentPrice  *float64  `json:"current_price,omitempty"`
	UnrealizedPnL *float64  `json:"unrealized_pnl,omitempty"`
}

// Validate checks the exit-level geometry: for LONG positions the stop must
// sit below entry and every take-profit above it; SHORT reverses both.
func (p *Position) Validate() error {
	switch p.Side {
	case SideLong:
		if p.StopLoss >= p.EntryPrice {
			return fmt.Errorf("long %s: stop loss %.4f must be below entry %.4f", p.Symbol, p.StopLoss, p.EntryPrice)
		}
		for _, tp := range p.TakeProfits {
			if tp <= p.EntryPrice {
				return fmt.Errorf("long %s: take profit %.4f must be above entry %.4f", p.Symbol, tp, p.EntryPrice)
			}
		}
	case SideShort:
		if p.StopLoss <= p.EntryPrice {
			return fmt.Errorf("short %s: stop loss %.4f must be above entry %.4f", p.Symbol, p.StopLoss, p.EntryPrice)
		}
		for _, tp := range p.TakeProfits {
			if tp >= p.EntryPrice {
				return fmt.Errorf("short %s: take profit %.4f must be below entry %.4f", p.Symbol, tp, p.EntryPrice)
			}
		}
	default:
		return fmt.Errorf("position %s: unknown side %q", p.Symbol, p.Side)
	}

	if p.Quantity <= 0 {
		return fmt.Errorf("position %s: quantity must be positive", p.Symbol)
	}

	return nil
}

// TradeRecord is an immutable entry in the trade history
type TradeRecord struct {
	Symbol    string        `json:"symbol"`
	Side      Side          `json:"side"`
	Action    string        `json:"action"` // "open" or "close"
	Quantity  int           `json:"quantity"`
	Price     float64       `json:"price"`
	Timestamp time.Time     `json:"timestamp"`
	PnL       *float64      `json:"pnl,omitempty"`            // net of commission, close only
	Holding   time.Duration `json:"holding_period,omitempty"` // close only
	Reason    string        `json:"reason,omitempty"`         // close only
}

// ExitSignal is the result of evaluating exit conditions for one position
type ExitSignal struct {
	ShouldExit bool    `json:"should_exit"`
	Reason     string  `json:"reason,omitempty"`
	ExitPrice  float64 `json:"exit_price,omitempty"`
}

// PositionDetail is the per-symbol slice of a portfolio summary
type PositionDetail struct {
	Symbol        string   `json:"symbol"`
	Side          Side     `json:"side"`
	Quantity      int      `json:"quantity"`
	EntryPrice    float64  `json:"entry_price"`
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	StopLoss      float64  `json:"stop_loss"`
	TrailingStop  *float64 `json:"trailing_stop,omitempty"`
	UnrealizedPnL *float64 `json:"unrealized_pnl,omitempty"`
}

// Summary is a pure-read snapshot of the manager's ledger
type Summary struct {
	Capital        float64          `json:"capital"`
	InitialCapital float64          `json:"initial_capital"`
	DailyPnL       float64          `json:"daily_pnl"`
	TotalPnL       float64          `json:"total_pnl"`
	UnrealizedPnL  float64          `json:"unrealized_pnl"`
	OpenPositions  int              `json:"open_positions"`
	Positions      []PositionDetail `json:"positions"`
}
