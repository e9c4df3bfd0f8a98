package market

import "time"

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bars is an ascending, timestamp-unique series of candles.
type Bars []Bar

func (b Bars) Len() int { return len(b) }

// Last returns the newest bar, or false when the series is empty.
func (b Bars) Last() (Bar, bool) {
	if len(b) == 0 {
		return Bar{}, false
	}
	return b[len(b)-1], true
}

func (b Bars) Highs() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.High
	}
	return out
}

func (b Bars) Lows() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Low
	}
	return out
}

func (b Bars) Closes() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Close
	}
	return out
}

func (b Bars) Volumes() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Volume
	}
	return out
}

// Tail returns at most the last n bars. The result shares storage with b.
func (b Bars) Tail(n int) Bars {
	if n <= 0 {
		return nil
	}
	if n >= len(b) {
		return b
	}
	return b[len(b)-n:]
}

// Chronological reports whether timestamps are strictly increasing.
// Bars without timestamps are ignored.
func (b Bars) Chronological() bool {
	var prev time.Time
	for _, bar := range b {
		if bar.Time.IsZero() {
			continue
		}
		if !prev.IsZero() && !bar.Time.After(prev) {
			return false
		}
		prev = bar.Time
	}
	return true
}
