// Package indicators computes technical indicator series over float slices.
//
// Every function is pure: the output has the same length as the input and
// positions that are not yet defined hold NaN.
package indicators

import "math"

// Last returns the final element of s, or NaN for an empty series.
func Last(s []float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// Prev returns the element before the last, or NaN when there is none.
func Prev(s []float64) float64 {
	if len(s) < 2 {
		return math.NaN()
	}
	return s[len(s)-2]
}

// Mean averages the last n values of s, skipping NaN. It returns NaN when
// nothing is left to average.
func Mean(s []float64, n int) float64 {
	if n <= 0 || len(s) == 0 {
		return math.NaN()
	}
	if n > len(s) {
		n = len(s)
	}
	sum, count := 0.0, 0
	for _, v := range s[len(s)-n:] {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// ewm smooths s with a fixed alpha, seeded with the first defined value.
// Leading NaN stay NaN; an interior NaN carries the previous smoothed value.
func ewm(s []float64, alpha float64) []float64 {
	out := nanSeries(len(s))
	seeded := false
	prev := 0.0
	for i, v := range s {
		switch {
		case math.IsNaN(v) && !seeded:
			continue
		case math.IsNaN(v):
			out[i] = prev
		case !seeded:
			prev = v
			seeded = true
			out[i] = v
		default:
			prev = alpha*v + (1-alpha)*prev
			out[i] = prev
		}
	}
	return out
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
