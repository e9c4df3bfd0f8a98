package indicators

import "math"

// EMA is the exponential moving average with alpha = 2/(span+1), seeded
// with the first value of the series.
func EMA(s []float64, span int) []float64 {
	if span <= 0 {
		panic("EMA span must be > 0")
	}
	return ewm(s, 2.0/float64(span+1))
}

// RollingMean is the simple moving average over window values. The first
// window-1 positions are NaN.
func RollingMean(s []float64, window int) []float64 {
	out := nanSeries(len(s))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range s {
		sum += v
		if i >= window {
			sum -= s[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingMax is the highest value over the trailing window.
func RollingMax(s []float64, window int) []float64 {
	return rolling(s, window, math.Max)
}

func rolling(s []float64, window int, pick func(a, b float64) float64) []float64 {
	out := nanSeries(len(s))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(s); i++ {
		v := s[i-window+1]
		for _, x := range s[i-window+2 : i+1] {
			v = pick(v, x)
		}
		out[i] = v
	}
	return out
}
