package risk

import "math"

type StakeInputs struct {
	Balance   float64
	SymbolPnL []float64 // rolling realized PnL for the symbol
	DailyPnL  float64
	SLPct     float64 // requested stop distance, 0 = use the base stop
}

// Stake sizes a new position in quote currency.
//
//	base = balance * tradable_ratio * stake_ratio
//	x positive/negative expectancy multiplier
//	x negative PnL multiplier when today is red
//	x base_sl / requested_sl
//
// The result is capped at the balance and never negative.
func Stake(p Policy, in StakeInputs) float64 {
	stake := in.Balance * p.TradableBalanceRatio * p.StakePerTradeRatio

	if len(in.SymbolPnL) > 0 {
		switch e := Expectancy(in.SymbolPnL); {
		case e > 0 && p.PositiveExpectancyMultiplier > 0:
			stake *= p.PositiveExpectancyMultiplier
		case e < 0 && p.NegativeExpectancyMultiplier > 0:
			stake *= p.NegativeExpectancyMultiplier
		}
	}

	if in.DailyPnL < 0 && p.NegativePnLMultiplier > 0 {
		stake *= p.NegativePnLMultiplier
	}

	if in.SLPct > 0 && p.BaseStopLossPct > 0 {
		stake *= p.BaseStopLossPct / in.SLPct
	}

	stake = math.Min(stake, in.Balance)
	if stake < 0 || math.IsNaN(stake) {
		return 0
	}
	return stake
}
