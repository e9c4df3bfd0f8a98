package indicators

import "math"

// TrueRange returns max(h-l, |h-prevC|, |l-prevC|) per bar. The first bar
// has no previous close, so its range is h-l.
func TrueRange(high, low, close []float64) []float64 {
	n := minLen(high, low, close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		out[i] = max3(hl, math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1]))
	}
	return out
}

// ATR is the average true range smoothed with alpha = 1/period.
func ATR(high, low, close []float64, period int) []float64 {
	if period <= 0 {
		panic("ATR period must be > 0")
	}
	return ewm(TrueRange(high, low, close), 1.0/float64(period))
}

func minLen(a, b, c []float64) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(c) < n {
		n = len(c)
	}
	return n
}
