package strategies

// Filters are the pre-trade gates applied before scoring.
// ADX gating is off unless both ADXPeriod and MinADX are positive.
type Filters struct {
	MinATRPct       float64 `json:"min_atr_pct" yaml:"min_atr_pct"`
	MaxATRPct       float64 `json:"max_atr_pct" yaml:"max_atr_pct"`
	AvgVolumePeriod int     `json:"avg_volume_period" yaml:"avg_volume_period"`
	MinAvgVolume    float64 `json:"min_avg_volume" yaml:"min_avg_volume"`
	ADXPeriod       int     `json:"adx_period" yaml:"adx_period"`
	MinADX          float64 `json:"min_adx" yaml:"min_adx"`
}

// Risk turns volatility into stop and target hints.
type Risk struct {
	ATRStopMultiplier float64 `json:"atr_stop_multiplier" yaml:"atr_stop_multiplier"`
	RRRatio           float64 `json:"rr_ratio" yaml:"rr_ratio"`
}

type Config struct {
	Filters           Filters `json:"filters" yaml:"filters"`
	Risk              Risk    `json:"risk" yaml:"risk"`
	BuyScoreThreshold float64 `json:"buy_score_threshold" yaml:"buy_score_threshold"`

	// MomentumPct enables the momentum override when > 0.
	MomentumPct float64 `json:"momentum_pct" yaml:"momentum_pct"`
}

func ConfigDefaults() Config {
	return Config{
		Filters: Filters{
			MinATRPct:       0.002,
			MaxATRPct:       0.06,
			AvgVolumePeriod: 20,
		},
		Risk: Risk{
			ATRStopMultiplier: 1.5,
			RRRatio:           2.0,
		},
		BuyScoreThreshold: 1.5,
	}
}
