package strategies

import "github.com/Quaser41/Autonomous-Trader/market"

const momentumLookback = 3

// Momentum returns the fractional change of the last close over the close
// three bars earlier. ok is false when there are not enough bars.
func Momentum(bars market.Bars) (m float64, ok bool) {
	if len(bars) < momentumLookback+1 {
		return 0, false
	}
	base := bars[len(bars)-1-momentumLookback].Close
	if base <= 0 {
		return 0, false
	}
	return bars[len(bars)-1].Close/base - 1, true
}

// ApplyMomentumEntry upgrades a HOLD to a BUY when short-term momentum
// reaches pct. A HOLD that stays a HOLD carries the momentum as its score.
// BUY signals and a disabled threshold pass through untouched.
func ApplyMomentumEntry(bars market.Bars, sig Signal, pct float64) Signal {
	if sig.Kind != Hold || pct <= 0 {
		return sig
	}
	m, ok := Momentum(bars)
	if !ok {
		return sig
	}
	if m >= pct {
		return Signal{Kind: Buy, Score: m, ATRPct: sig.ATRPct}
	}
	sig.Score = m
	return sig
}
