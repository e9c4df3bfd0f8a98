package strategies

import "fmt"

type Kind string

const (
	Buy  Kind = "BUY"
	Hold Kind = "HOLD"
)

// Gate names reported on a HOLD.
const (
	ReasonWarmup    = "warmup"
	ReasonATRRange  = "atr_range"
	ReasonAvgVolume = "avg_volume"
	ReasonADX       = "adx"
	ReasonVolume    = "volume"
	ReasonTrend     = "trend"
	ReasonMomentum  = "momentum"
	ReasonScore     = "score"
)

// Signal is the outcome of evaluating a bar series.
//
// FailedFilter is only set on a HOLD produced by a gate. SLPct and TPPct are
// only set on a BUY and are fractional distances from the entry price.
type Signal struct {
	Kind         Kind
	Score        float64
	FailedFilter string
	SLPct        *float64
	TPPct        *float64

	// ATRPct is ATR/close on the last bar; the broker uses it as the trail basis.
	ATRPct float64
}

func (s Signal) IsBuy() bool { return s.Kind == Buy }

func (s Signal) String() string {
	switch {
	case s.Kind == Buy && s.SLPct != nil && s.TPPct != nil:
		return fmt.Sprintf("BUY score=%.3f sl=%.4f tp=%.4f", s.Score, *s.SLPct, *s.TPPct)
	case s.FailedFilter != "":
		return fmt.Sprintf("%s score=%.3f (%s)", s.Kind, s.Score, s.FailedFilter)
	default:
		return fmt.Sprintf("%s score=%.3f", s.Kind, s.Score)
	}
}

func hold(reason string, score float64) Signal {
	return Signal{Kind: Hold, Score: score, FailedFilter: reason}
}
