package sim

import (
	"time"

	"github.com/Quaser41/Autonomous-Trader/risk"
)

// Trailing configures the breakeven ratchet and trailing stop of a position.
type Trailing struct {
	Enabled             bool
	ActivationProfitPct float64 // 0 = active from entry
	BreakevenTriggerPct float64
	TrailingStopPct     float64
	ATRTrailMultiplier  float64 // 0 = fixed percentage trail only
}

// Settings is everything the paper broker needs from configuration.
type Settings struct {
	Policy risk.Policy

	DryRunWallet     float64
	ResetBalance     bool
	Cooldown         time.Duration
	ExpectancyWindow int

	SlippagePct float64
	FeePct      float64

	StopLossPct   float64
	TakeProfitPct float64

	Trailing          Trailing
	TrailingOverrides map[string]Trailing
}

func DefaultSettings() Settings {
	return Settings{
		Policy:           risk.DefaultPolicy(),
		DryRunWallet:     1000,
		Cooldown:         30 * time.Minute,
		ExpectancyWindow: 20,
		StopLossPct:      0.006,
		TakeProfitPct:    0.006,
		Trailing: Trailing{
			Enabled:             true,
			BreakevenTriggerPct: 0.003,
			TrailingStopPct:     0.004,
		},
	}
}

func (s Settings) trailingFor(symbol string) Trailing {
	if t, ok := s.TrailingOverrides[symbol]; ok {
		return t
	}
	return s.Trailing
}
