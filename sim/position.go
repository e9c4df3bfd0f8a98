package sim

import (
	"math"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
)

// Position is an open long. Entry is the slippage and fee adjusted price.
// Peak and Stop only ever move up.
type Position struct {
	TradeID    string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	Qty        float64   `json:"qty"`
	Entry      float64   `json:"entry"`
	Stake      float64   `json:"stake"`
	Peak       float64   `json:"peak"`
	Stop       float64   `json:"stop"`
	TakeProfit float64   `json:"tp_price"`
	OpenTime   time.Time `json:"open_time"`

	TrailingEnabled     bool    `json:"trailing_enabled"`
	ActivationProfitPct float64 `json:"activation_profit_pct"`
	BreakevenTriggerPct float64 `json:"breakeven_trigger_pct"`
	TrailingStopPct     float64 `json:"trailing_stop_pct"`
	ATRTrailMultiplier  float64 `json:"atr_trail_multiplier"`
	ATRPct              float64 `json:"atr_pct"`
	TrailActive         bool    `json:"trail_active"`

	// Meta is the entry request as the strategy made it.
	Meta broker.OrderMeta `json:"meta"`
}

// UpdateTrailing folds a new price observation into the position: the peak,
// trail activation, the breakeven ratchet and the trailing stop.
func (p *Position) UpdateTrailing(price float64) {
	if price > p.Peak {
		p.Peak = price
	}

	if !p.TrailActive && price >= p.Entry*(1+p.ActivationProfitPct) {
		p.TrailActive = true
	}

	if p.BreakevenTriggerPct > 0 && price >= p.Entry*(1+p.BreakevenTriggerPct) {
		p.Stop = math.Max(p.Stop, p.Entry)
	}

	if !p.TrailingEnabled || !p.TrailActive {
		return
	}
	if dist := p.trailDistance(); dist > 0 {
		p.Stop = math.Max(p.Stop, p.Peak*(1-dist))
	}
}

// trailDistance prefers the ATR based distance and falls back to the fixed
// trailing percentage.
func (p *Position) trailDistance() float64 {
	if p.ATRPct > 0 && p.ATRTrailMultiplier > 0 {
		return p.ATRPct * p.ATRTrailMultiplier
	}
	return p.TrailingStopPct
}

func (p *Position) hitTakeProfit(price float64) bool {
	return p.TakeProfit > 0 && price >= p.TakeProfit
}

func (p *Position) hitStop(price float64) bool {
	return price <= p.Stop
}

// UnrealizedPnL is the mark to market PnL at price, before exit costs.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return p.Qty * (price - p.Entry)
}

// RealizedPnL is the PnL of closing qty units bought at entry and sold at exit.
func RealizedPnL(qty, entry, exit float64) float64 {
	return qty * (exit - entry)
}
