package strategies

import (
	"math"

	"github.com/Quaser41/Autonomous-Trader/indicators"
	"github.com/Quaser41/Autonomous-Trader/market"
)

const (
	MinBars = 60

	volumeWindow    = 20
	volumeSpike     = 1.2
	breakoutWindow  = 20
	breakoutBuffer  = 1.001
	rsiLow, rsiHigh = 50.0, 70.0
	stretchLimit    = 0.02
	maxScore        = 1.5
	minSLPct        = 0.001
	maxSLPct        = 0.05
)

// Score weights.
const (
	weightTrend    = 0.6
	weightFlip     = 0.5
	weightRSI      = 0.2
	weightBreakout = 0.4
	weightVolume   = 0.2
)

func (c Config) withDefaults() Config {
	if c.Filters.MaxATRPct <= 0 {
		c.Filters.MaxATRPct = 0.06
	}
	if c.Filters.AvgVolumePeriod <= 0 {
		c.Filters.AvgVolumePeriod = 20
	}
	if c.Risk.ATRStopMultiplier <= 0 {
		c.Risk.ATRStopMultiplier = 1.5
	}
	if c.Risk.RRRatio <= 0 {
		c.Risk.RRRatio = 2.0
	}
	return c
}

// GenerateSignal runs the combo pipeline over bars: volatility, volume floor
// and optional ADX gates, then trend + momentum confirmation and a weighted
// score. The first failing gate ends evaluation with a HOLD naming it.
func GenerateSignal(bars market.Bars, cfg Config) Signal {
	if len(bars) < MinBars {
		return hold(ReasonWarmup, 0)
	}
	cfg = cfg.withDefaults()

	closes := bars.Closes()
	highs := bars.Highs()
	lows := bars.Lows()
	volumes := bars.Volumes()

	ema20 := indicators.EMA(closes, 20)
	ema50 := indicators.EMA(closes, 50)
	ema200 := indicators.EMA(closes, 200)
	rsi := indicators.RSI(closes, 14)
	atr := indicators.ATR(highs, lows, closes, 14)
	volMA := indicators.RollingMean(volumes, volumeWindow)
	_, _, hist := indicators.MACD(closes, 12, 26, 9)
	hh := indicators.RollingMax(highs, breakoutWindow)

	close := indicators.Last(closes)

	atrPct := 0.0
	if close > 0 {
		atrPct = indicators.Last(atr) / close
	}
	if math.IsNaN(atrPct) || math.IsInf(atrPct, 0) {
		atrPct = 0
	}

	if atrPct < cfg.Filters.MinATRPct || atrPct > cfg.Filters.MaxATRPct {
		return hold(ReasonATRRange, 0)
	}

	avgVol := indicators.Mean(volumes, cfg.Filters.AvgVolumePeriod)
	if math.IsNaN(avgVol) || avgVol < cfg.Filters.MinAvgVolume {
		return hold(ReasonAvgVolume, 0)
	}

	if cfg.Filters.ADXPeriod > 0 && cfg.Filters.MinADX > 0 {
		adx := indicators.Last(indicators.ADX(highs, lows, closes, cfg.Filters.ADXPeriod))
		if adx < cfg.Filters.MinADX {
			return hold(ReasonADX, 0)
		}
	}

	trendOK := indicators.Last(ema50) > indicators.Last(ema200) &&
		indicators.Last(ema50) > indicators.Prev(ema50) &&
		indicators.Last(ema200) >= indicators.Prev(ema200)

	lastVol := indicators.Last(volumes)
	vma := indicators.Last(volMA)
	if math.IsNaN(vma) || !(lastVol > volumeSpike*vma) {
		return hold(ReasonVolume, 0)
	}

	flip := indicators.Prev(hist) <= 0 && indicators.Last(hist) > 0

	// The breakout level is the 20-bar high ending at the prior bar.
	priorHigh := indicators.Prev(hh)
	breakout := !math.IsNaN(priorHigh) && close > priorHigh*breakoutBuffer

	r := indicators.Last(rsi)
	rsiOK := r >= rsiLow && r <= rsiHigh

	score := 0.0
	if trendOK {
		score += weightTrend
	}
	if flip {
		score += weightFlip
	}
	if rsiOK {
		score += weightRSI
	}
	if breakout {
		score += weightBreakout
	}
	score += weightVolume

	if close > 0 {
		stretch := (close - indicators.Last(ema20)) / close
		if stretch > stretchLimit {
			score -= math.Min(0.3, stretch*5)
		}
	}
	score = math.Max(0, math.Min(maxScore, score))

	switch {
	case !trendOK:
		return Signal{Kind: Hold, Score: score, FailedFilter: ReasonTrend, ATRPct: atrPct}
	case !(flip || breakout):
		return Signal{Kind: Hold, Score: score, FailedFilter: ReasonMomentum, ATRPct: atrPct}
	case score < cfg.BuyScoreThreshold:
		return Signal{Kind: Hold, Score: score, FailedFilter: ReasonScore, ATRPct: atrPct}
	}

	sl := math.Max(minSLPct, math.Min(maxSLPct, atrPct*cfg.Risk.ATRStopMultiplier))
	tp := sl * cfg.Risk.RRRatio
	return Signal{
		Kind:   Buy,
		Score:  score,
		SLPct:  &sl,
		TPPct:  &tp,
		ATRPct: atrPct,
	}
}
