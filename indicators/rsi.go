package indicators

import "math"

const lossFloor = 1e-12

// RSI is the relative strength index with Wilder smoothing (alpha = 1/period).
// Index 0 is NaN since the first close has no delta.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 {
		panic("RSI period must be > 0")
	}
	n := len(closes)
	gains := nanSeries(n)
	losses := nanSeries(n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		gains[i] = math.Max(d, 0)
		losses[i] = math.Max(-d, 0)
	}

	alpha := 1.0 / float64(period)
	up := ewm(gains, alpha)
	down := ewm(losses, alpha)

	out := nanSeries(n)
	for i := range out {
		if math.IsNaN(up[i]) || math.IsNaN(down[i]) {
			continue
		}
		dn := down[i]
		if dn == 0 {
			dn = lossFloor
		}
		rs := up[i] / dn
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
